// Package models defines the core domain entities for the decision-support tool.
// These models represent payoff tables, the objective sense of an analysis, and
// the per-chat preferences the bot remembers between messages.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology (matching classical decision analysis):
//   - Option: an alternative the decision maker can choose. One row of the table.
//   - State: a state of nature, an uncertain condition outside the decision maker's control. One column.
//   - Payoff: the outcome of choosing an option when a state occurs.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// PayoffMatrix is a dense table of payoffs indexed by (option, state).
// Values[i][j] is the payoff of Options[i] under States[j].
type PayoffMatrix struct {
	Options []string    `json:"options"`
	States  []string    `json:"states"`
	Values  [][]float64 `json:"values"`
}

// Validate checks that the matrix is non-empty, dense and uniquely labelled.
func (m *PayoffMatrix) Validate() error {
	if len(m.Options) == 0 {
		return errors.New("payoff matrix must have at least one option")
	}
	if len(m.States) == 0 {
		return errors.New("payoff matrix must have at least one state")
	}
	if len(m.Values) != len(m.Options) {
		return fmt.Errorf("payoff matrix has %d rows for %d options", len(m.Values), len(m.Options))
	}
	for i, row := range m.Values {
		if len(row) != len(m.States) {
			return fmt.Errorf("option %q has %d payoffs, expected %d", m.Options[i], len(row), len(m.States))
		}
	}
	if err := uniqueNames("option", m.Options); err != nil {
		return err
	}
	return uniqueNames("state", m.States)
}

// Column returns a copy of the payoffs for state j in option order.
func (m *PayoffMatrix) Column(j int) []float64 {
	col := make([]float64, len(m.Values))
	for i, row := range m.Values {
		col[i] = row[j]
	}
	return col
}

// Clone returns a deep copy of the matrix.
func (m *PayoffMatrix) Clone() *PayoffMatrix {
	values := make([][]float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = append([]float64(nil), row...)
	}
	return &PayoffMatrix{
		Options: append([]string(nil), m.Options...),
		States:  append([]string(nil), m.States...),
		Values:  values,
	}
}

func uniqueNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s name must not be empty", kind)
		}
		if seen[name] {
			return fmt.Errorf("duplicate %s name: %s", kind, name)
		}
		seen[name] = true
	}
	return nil
}
