// Package parser turns user-supplied tables into payoff matrices.
//
// The accepted layout is the one people paste from a spreadsheet: a header row naming the states,
// one row per option, and an optional probability row labelled "Pro":
//
//	Option	Boom	Normal	Bust
//	Pro	0.5	0.3	0.2
//	A	50,000	20,000	-10,000
//	B	80,000	22,000	-20,000
//
// The same layout is read from pasted text, CSV files and the first sheet of an XLSX workbook.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Harry10012003/decision-support-tool/internal/models"
)

var (
	ErrEmptyTable      = errors.New("table has no options or no states")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrRowLength       = errors.New("row length does not match the header")
	ErrDuplicateName   = errors.New("duplicate name")
	ErrEmptyName       = errors.New("empty name")
	ErrTooLarge        = errors.New("table is too large")
)

// Table is a parsed payoff matrix plus the probability row. Probabilities is nil when the
// table had no probability row.
type Table struct {
	Matrix        models.PayoffMatrix
	Probabilities []float64
}

// CheckLimits rejects tables with more options or states than allowed. A limit <= 0 is ignored.
func (t *Table) CheckLimits(maxOptions, maxStates int) error {
	if maxOptions > 0 && len(t.Matrix.Options) > maxOptions {
		return fmt.Errorf("%w: %d options, at most %d allowed", ErrTooLarge, len(t.Matrix.Options), maxOptions)
	}
	if maxStates > 0 && len(t.Matrix.States) > maxStates {
		return fmt.Errorf("%w: %d states, at most %d allowed", ErrTooLarge, len(t.Matrix.States), maxStates)
	}
	return nil
}

// ParseText parses a pasted table. The delimiter is taken from the first non-empty line:
// tab if present, else semicolon, else runs of whitespace. Commas are thousands separators.
func ParseText(text string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var delim string
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if delim == "" {
			delim = detectDelimiter(line)
		}
		rows = append(rows, splitLine(line, delim))
	}
	return ParseRows(rows)
}

// ParseRows builds a table from already split cells. The first row is the header unless its
// first cell is a probability label, in which case states are named S1..Sn.
func ParseRows(rows [][]string) (*Table, error) {
	cleaned := make([][]string, 0, len(rows))
	for _, row := range rows {
		row = trimRow(row)
		if len(row) > 0 {
			cleaned = append(cleaned, row)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrEmptyTable
	}

	var states []string
	body := cleaned
	headerLines := 0
	if isProbabilityLabel(cleaned[0][0]) {
		states = make([]string, len(cleaned[0])-1)
		for j := range states {
			states[j] = fmt.Sprintf("S%d", j+1)
		}
	} else {
		states = cleaned[0][1:]
		body = cleaned[1:]
		headerLines = 1
	}
	if len(states) == 0 {
		return nil, ErrEmptyTable
	}
	if err := checkNames("state", states); err != nil {
		return nil, err
	}

	table := &Table{Matrix: models.PayoffMatrix{States: states}}
	seen := make(map[string]bool)
	for r, row := range body {
		line := r + 1 + headerLines

		label := row[0]
		cells := row[1:]
		if len(cells) != len(states) {
			return nil, fmt.Errorf("%w: row %d (%q) has %d values, expected %d", ErrRowLength, line, label, len(cells), len(states))
		}

		values := make([]float64, len(cells))
		for j, cell := range cells {
			v, err := ParseNumber(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: %w", line, j+2, err)
			}
			values[j] = v
		}

		if isProbabilityLabel(label) {
			if table.Probabilities != nil {
				return nil, fmt.Errorf("%w: more than one probability row", ErrDuplicateName)
			}
			table.Probabilities = values
			continue
		}

		if label == "" {
			return nil, fmt.Errorf("%w: row %d has no option name", ErrEmptyName, line)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: option %q", ErrDuplicateName, label)
		}
		seen[label] = true
		table.Matrix.Options = append(table.Matrix.Options, label)
		table.Matrix.Values = append(table.Matrix.Values, values)
	}

	if len(table.Matrix.Options) == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}

// ParseNumber reads one numeric cell. Thousands separators (comma, underscore, spaces) are
// dropped and a trailing percent sign divides by 100. NaN and infinities are rejected.
func ParseNumber(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 100
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '_', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty cell", ErrInvalidNumber)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, cell)
	}
	return v / scale, nil
}

// ExampleTable is the four-option investment example, in the paste format.
func ExampleTable() string {
	return "Option\tS1\tS2\tS3\n" +
		"Pro\t0.5\t0.3\t0.2\n" +
		"A\t50000\t20000\t-10000\n" +
		"B\t80000\t22000\t-20000\n" +
		"C\t100000\t30000\t-40000\n" +
		"D\t300000\t25000\t-100000"
}

func isProbabilityLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pro", "prob", "probability", "probabilities":
		return true
	}
	return false
}

func detectDelimiter(line string) string {
	switch {
	case strings.Contains(line, "\t"):
		return "\t"
	case strings.Contains(line, ";"):
		return ";"
	default:
		return " "
	}
}

func splitLine(line, delim string) []string {
	if delim == " " {
		return strings.Fields(line)
	}
	return strings.Split(line, delim)
}

// trimRow trims every cell and drops trailing empty cells, which spreadsheets like to emit.
func trimRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func checkNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for j, name := range names {
		if name == "" {
			return fmt.Errorf("%w: %s %d has no name", ErrEmptyName, kind, j+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, kind, name)
		}
		seen[name] = true
	}
	return nil
}
