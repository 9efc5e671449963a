// Package decision computes the classical decision-theory criteria over a payoff matrix.
//
// Analyze derives, for every option (row), the per-row criteria:
//
//	optimistic  = best payoff of the row under the objective sense (maximax / minimin)
//	pessimistic = worst payoff of the row (maximin / minimax)
//	average     = unweighted mean of the row (Laplace, equally likely)
//	hurwicz     = alpha*optimistic + (1-alpha)*pessimistic
//	emv         = row · probabilities
//	regret      = max over states of the opportunity loss
//
// together with the opportunity-loss matrix, where loss(o,s) = |payoff(o,s) - best(s)| and best(s)
// is the column optimum under the sense. ComputePerfectInformation and ExpectedOpportunityLoss derive the
// probability-weighted aggregates from that output, Recommend picks one option per criterion, and
// Evaluate runs the whole analysis once.
//
// Everything in this package is pure: inputs are never mutated and no state is shared between calls.
// Sums accumulate left to right in the original column order so repeated calls are bit-identical.
package decision

import (
	"errors"
	"fmt"
	"math"

	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// DefaultAlpha is the Hurwicz realism coefficient used when the caller does not choose one.
const DefaultAlpha = 0.6

var (
	// ErrEmptyMatrix is returned when the payoff matrix has no options or no states.
	ErrEmptyMatrix = errors.New("payoff matrix is empty")

	// ErrShape is returned when a row or the probability vector does not match the state count.
	ErrShape = errors.New("input shape mismatch")

	// ErrNoProbabilities is returned by aggregates that cannot be computed without probabilities.
	ErrNoProbabilities = errors.New("probabilities are required")
)

// Row is one option of the result table: its original payoffs plus every derived criterion.
// EMV and EOL are nil when no probabilities were supplied.
type Row struct {
	Option        string    `json:"option"`
	Payoffs       []float64 `json:"payoffs"`
	Optimistic    float64   `json:"optimistic"`
	Pessimistic   float64   `json:"pessimistic"`
	Average       float64   `json:"average"`
	Hurwicz       float64   `json:"hurwicz"`
	EMV           *float64  `json:"emv"`
	MinimaxRegret float64   `json:"minimax_regret"`
	EOL           *float64  `json:"eol"`
}

// LossMatrix has the same shape and labels as the payoff matrix it was derived from.
type LossMatrix struct {
	Options []string    `json:"options"`
	States  []string    `json:"states"`
	Values  [][]float64 `json:"values"`
}

// Result is the augmented table produced by Analyze.
type Result struct {
	Sense  models.Sense `json:"sense"`
	Alpha  float64      `json:"alpha"`
	States []string     `json:"states"`
	Rows   []Row        `json:"rows"`
	Loss   *LossMatrix  `json:"opportunity_loss"`
}

// HasEMV reports whether the result was computed with probabilities.
func (r *Result) HasEMV() bool {
	return len(r.Rows) > 0 && r.Rows[0].EMV != nil
}

// Analyze computes the result table and the opportunity-loss matrix for m.
// probabilities may be nil, in which case EMV is left unset. alpha is applied as given;
// range checks belong to the caller.
func Analyze(m *models.PayoffMatrix, probabilities []float64, sense models.Sense, alpha float64) (*Result, error) {
	if err := checkShape(m, probabilities); err != nil {
		return nil, err
	}

	loss := OpportunityLoss(m, sense)

	rows := make([]Row, len(m.Options))
	for i, option := range m.Options {
		payoffs := append([]float64(nil), m.Values[i]...)

		hi, lo := floats.Max(payoffs), floats.Min(payoffs)
		optimistic, pessimistic := hi, lo
		if sense == models.Minimize {
			optimistic, pessimistic = lo, hi
		}

		average, err := stats.Mean(payoffs)
		if err != nil {
			return nil, fmt.Errorf("mean of option %q: %w", option, err)
		}

		row := Row{
			Option:        option,
			Payoffs:       payoffs,
			Optimistic:    optimistic,
			Pessimistic:   pessimistic,
			Average:       average,
			Hurwicz:       alpha*optimistic + (1-alpha)*pessimistic,
			MinimaxRegret: floats.Max(loss.Values[i]),
		}
		if probabilities != nil {
			emv := dot(payoffs, probabilities)
			row.EMV = &emv
		}
		rows[i] = row
	}

	return &Result{
		Sense:  sense,
		Alpha:  alpha,
		States: append([]string(nil), m.States...),
		Rows:   rows,
		Loss:   loss,
	}, nil
}

// OpportunityLoss builds the regret matrix from the original payoffs of m.
// The matrix must already have a valid shape.
func OpportunityLoss(m *models.PayoffMatrix, sense models.Sense) *LossMatrix {
	best := BestPerState(m, sense)

	values := make([][]float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]float64, len(row))
		for j, v := range row {
			values[i][j] = math.Abs(v - best[j])
		}
	}

	return &LossMatrix{
		Options: append([]string(nil), m.Options...),
		States:  append([]string(nil), m.States...),
		Values:  values,
	}
}

// BestPerState returns the column optimum for every state: max under Maximize, min under Minimize.
func BestPerState(m *models.PayoffMatrix, sense models.Sense) []float64 {
	best := make([]float64, len(m.States))
	for j := range m.States {
		col := m.Column(j)
		if sense == models.Minimize {
			best[j] = floats.Min(col)
		} else {
			best[j] = floats.Max(col)
		}
	}
	return best
}

func checkShape(m *models.PayoffMatrix, probabilities []float64) error {
	if m == nil || len(m.Options) == 0 || len(m.States) == 0 {
		return ErrEmptyMatrix
	}
	if len(m.Values) != len(m.Options) {
		return fmt.Errorf("%w: %d rows for %d options", ErrShape, len(m.Values), len(m.Options))
	}
	for i, row := range m.Values {
		if len(row) != len(m.States) {
			return fmt.Errorf("%w: option %q has %d payoffs for %d states", ErrShape, m.Options[i], len(row), len(m.States))
		}
	}
	if probabilities != nil && len(probabilities) != len(m.States) {
		return fmt.Errorf("%w: %d probabilities for %d states", ErrShape, len(probabilities), len(m.States))
	}
	return nil
}

// dot accumulates strictly left to right; floats.Dot uses unrolled kernels whose
// summation order differs from the column order.
func dot(x, p []float64) float64 {
	var sum float64
	for i := range x {
		sum += x[i] * p[i]
	}
	return sum
}
