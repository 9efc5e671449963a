// Package report renders a decision.Evaluation for people: Markdown and HTML reports, CSV
// exports and the plain-text tables the bot and the CLI print.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/models"
)

// ErrNonFinite is returned by the JSON rendering when a value overflowed to an infinity, which
// JSON cannot carry. The other formats print such values literally.
var ErrNonFinite = errors.New("result contains non-finite values (the payoffs are too large to combine)")

// Format selects a rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name; "md" and "txt" are shorthands.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (use markdown, html, csv, text or json)", s)
	}
}

// ContentType is the MIME type of the rendering.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces ev in the requested format.
func Render(ev *decision.Evaluation, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(ev)), nil
	case FormatHTML:
		return HTML(ev), nil
	case FormatCSV:
		out, err := CSV(ev)
		return []byte(out), err
	case FormatText:
		return []byte(Text(ev)), nil
	case FormatJSON:
		out, err := json.MarshalIndent(ev, "", "  ")
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return nil, fmt.Errorf("%w: %s", ErrNonFinite, unsupported.Str)
		}
		return out, err
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// FormatNumber groups thousands with commas and rounds to the given number of decimals.
// NaN and infinities are spelled out.
func FormatNumber(v float64, decimals int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 9 {
		decimals = 9
	}
	// humanize goes through int64
	if math.Abs(v) >= 1e15 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if math.Round(v*math.Pow10(decimals)) == 0 {
		v = 0
	}
	return humanize.FormatFloat("#,###."+strings.Repeat("#", decimals), v)
}

// Number formats values that are whole at two decimals without decimals, and everything else
// with two.
func Number(v float64) string {
	if r := math.Round(v*100) / 100; r == math.Trunc(r) {
		return FormatNumber(v, 0)
	}
	return FormatNumber(v, 2)
}

// Probability formats a probability in its shortest exact form.
func Probability(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// Verdict is the one-line conclusion of a recommendation.
func Verdict(rec decision.Recommendation) string {
	if !rec.Applicable {
		return "not applicable without probabilities"
	}
	extreme := "largest"
	if rec.Minimized {
		extreme = "smallest"
	}
	s := fmt.Sprintf("choose %s: its %s value %s is the %s", rec.Option, rec.Criterion.Label(), Number(rec.Value), extreme)
	if len(rec.TiedWith) > 0 {
		s += fmt.Sprintf(" (tied with %s)", strings.Join(rec.TiedWith, ", "))
	}
	return s
}

// ObjectiveLine describes the sense and alpha of the analysis.
func ObjectiveLine(res *decision.Result) string {
	goal := "maximize profit"
	if res.Sense == models.Minimize {
		goal = "minimize cost"
	}
	return fmt.Sprintf("Objective: %s, Hurwicz alpha = %g", goal, res.Alpha)
}

type column struct {
	criterion decision.Criterion
	header    string
	values    []float64
}

// criterionColumns returns every criterion column of res in report order. values is nil for
// criteria that do not apply.
func criterionColumns(res *decision.Result) []column {
	criteria := decision.Criteria()
	cols := make([]column, 0, len(criteria))
	for _, c := range criteria {
		values, ok := c.Values(res)
		if !ok {
			values = nil
		}
		cols = append(cols, column{criterion: c, header: header(c, res.Alpha), values: values})
	}
	return cols
}

func header(c decision.Criterion, alpha float64) string {
	if c == decision.CriterionHurwicz {
		return fmt.Sprintf("Hurwicz (alpha = %g)", alpha)
	}
	return c.Label()
}
