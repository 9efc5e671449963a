package decision

import (
	"fmt"

	"github.com/Harry10012003/decision-support-tool/internal/models"
	"gonum.org/v1/gonum/floats"
)

// PerfectInformation holds the expected value of perfect information and its parts.
//
// EVPI is reported signed: EVwPI - EVwoPI. Under Maximize it is never negative and is the most
// worth paying for a perfect forecast; under Minimize it is never positive and its magnitude is
// the expected cost saved by one.
type PerfectInformation struct {
	BestPerState []float64 `json:"best_per_state"`
	EVwPI        float64   `json:"ev_with_perfect_information"`
	EVwoPI       float64   `json:"ev_without_perfect_information"`
	EVPI         float64   `json:"evpi"`
	BestOption   string    `json:"best_emv_option"`
}

// ComputePerfectInformation derives EVwPI, EVwoPI and EVPI for the payoffs in res.
func ComputePerfectInformation(res *Result, probabilities []float64) (*PerfectInformation, error) {
	if probabilities == nil {
		return nil, ErrNoProbabilities
	}
	m := res.payoffMatrix()
	if err := checkShape(m, probabilities); err != nil {
		return nil, err
	}

	best := BestPerState(m, res.Sense)

	emvs := make([]float64, len(m.Values))
	for i, row := range m.Values {
		emvs[i] = dot(row, probabilities)
	}
	idx := selectIndex(emvs, res.Sense == models.Minimize)

	evwpi := dot(best, probabilities)
	return &PerfectInformation{
		BestPerState: best,
		EVwPI:        evwpi,
		EVwoPI:       emvs[idx],
		EVPI:         evwpi - emvs[idx],
		BestOption:   m.Options[idx],
	}, nil
}

// ExpectedOpportunityLoss returns, per option, the opportunity-loss row weighted by probabilities.
func ExpectedOpportunityLoss(loss *LossMatrix, probabilities []float64) ([]float64, error) {
	if probabilities == nil {
		return nil, ErrNoProbabilities
	}
	if len(probabilities) != len(loss.States) {
		return nil, fmt.Errorf("%w: %d probabilities for %d states", ErrShape, len(probabilities), len(loss.States))
	}

	eol := make([]float64, len(loss.Values))
	for i, row := range loss.Values {
		eol[i] = dot(row, probabilities)
	}
	return eol, nil
}

// WeightedLoss returns the opportunity-loss matrix with each cell multiplied by its state probability.
// Row sums of the result equal ExpectedOpportunityLoss.
func WeightedLoss(loss *LossMatrix, probabilities []float64) (*LossMatrix, error) {
	if probabilities == nil {
		return nil, ErrNoProbabilities
	}
	if len(probabilities) != len(loss.States) {
		return nil, fmt.Errorf("%w: %d probabilities for %d states", ErrShape, len(probabilities), len(loss.States))
	}

	values := make([][]float64, len(loss.Values))
	for i, row := range loss.Values {
		weighted := make([]float64, len(row))
		copy(weighted, row)
		floats.Mul(weighted, probabilities)
		values[i] = weighted
	}

	return &LossMatrix{
		Options: append([]string(nil), loss.Options...),
		States:  append([]string(nil), loss.States...),
		Values:  values,
	}, nil
}

// payoffMatrix rebuilds the original payoff matrix from the result rows.
func (r *Result) payoffMatrix() *models.PayoffMatrix {
	m := &models.PayoffMatrix{
		Options: make([]string, len(r.Rows)),
		States:  r.States,
		Values:  make([][]float64, len(r.Rows)),
	}
	for i, row := range r.Rows {
		m.Options[i] = row.Option
		m.Values[i] = row.Payoffs
	}
	return m
}
