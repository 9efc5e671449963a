package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
)

// Summary lists one verdict per criterion, followed by EVPI when it is known.
func Summary(ev *decision.Evaluation) string {
	var b strings.Builder
	for _, rec := range ev.Recommendations {
		fmt.Fprintf(&b, "%s: %s\n", header(rec.Criterion, ev.Result.Alpha), Verdict(rec))
	}
	if ev.Information != nil {
		fmt.Fprintf(&b, "EVPI: %s\n", Number(ev.Information.EVPI))
	}
	return b.String()
}

// Table is the result table aligned for a monospace display.
func Table(ev *decision.Evaluation) string {
	res := ev.Result
	cols := criterionColumns(res)

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)

	heads := append([]string{"Option"}, res.States...)
	for _, c := range cols {
		heads = append(heads, shortHeader(c.criterion))
	}
	writeCells(tw, heads)

	for i, row := range res.Rows {
		cells := []string{row.Option}
		for _, v := range row.Payoffs {
			cells = append(cells, Number(v))
		}
		for _, c := range cols {
			if c.values == nil {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, Number(c.values[i]))
		}
		writeCells(tw, cells)
	}
	tw.Flush()
	return b.String()
}

// CriterionSummary is the view of a single criterion: its value for every option, the chosen
// option marked with an asterisk, and the verdict.
func CriterionSummary(ev *decision.Evaluation, c decision.Criterion) string {
	res := ev.Result
	rec := decision.RecommendBy(res, c)

	var b strings.Builder
	b.WriteString(header(c, res.Alpha) + "\n")
	values, ok := c.Values(res)
	if !ok {
		b.WriteString(Verdict(rec) + "\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, row := range res.Rows {
		mark := ""
		if i == rec.Index {
			mark = "*"
		}
		writeCells(tw, []string{row.Option, Number(values[i]), mark})
	}
	tw.Flush()
	b.WriteString(Verdict(rec) + "\n")
	return b.String()
}

// Text is the whole report as plain text.
func Text(ev *decision.Evaluation) string {
	var b strings.Builder
	b.WriteString(ObjectiveLine(ev.Result) + "\n")
	for _, w := range ev.Warnings {
		b.WriteString("Warning: " + w + "\n")
	}
	b.WriteString("\n" + Summary(ev) + "\n" + Table(ev))
	return b.String()
}

func shortHeader(c decision.Criterion) string {
	switch c {
	case decision.CriterionOptimistic:
		return "Opt"
	case decision.CriterionPessimistic:
		return "Pess"
	case decision.CriterionAverage:
		return "Avg"
	case decision.CriterionHurwicz:
		return "Hurwicz"
	case decision.CriterionEMV:
		return "EMV"
	case decision.CriterionMinimaxRegret:
		return "Regret"
	case decision.CriterionEOL:
		return "EOL"
	default:
		return string(c)
	}
}

func writeCells(tw *tabwriter.Writer, cells []string) {
	fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
}
