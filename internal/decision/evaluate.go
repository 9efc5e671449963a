package decision

import (
	"errors"
	"fmt"
	"math"

	"github.com/Harry10012003/decision-support-tool/internal/models"
)

// DefaultProbabilityTolerance is how far the probability sum may drift from 1 before Evaluate warns.
const DefaultProbabilityTolerance = 1e-6

var (
	// ErrAlphaRange is returned by Evaluate when alpha lies outside [0, 1].
	ErrAlphaRange = errors.New("alpha must be between 0 and 1")

	// ErrNegativeProbability is returned by Evaluate when a probability is negative.
	ErrNegativeProbability = errors.New("probabilities must not be negative")
)

// Request is one full analysis as asked for by a caller surface.
type Request struct {
	Matrix        *models.PayoffMatrix
	Probabilities []float64
	Sense         models.Sense
	Alpha         float64
	// Tolerance bounds |sum(probabilities) - 1| before a warning is attached. Zero means the default.
	Tolerance float64
}

// Evaluation is everything a report needs, derived from a single Analyze call.
// Information and WeightedLoss are nil when the request had no probabilities.
type Evaluation struct {
	Result          *Result             `json:"result"`
	Probabilities   []float64           `json:"probabilities"`
	WeightedLoss    *LossMatrix         `json:"weighted_opportunity_loss,omitempty"`
	Information     *PerfectInformation `json:"perfect_information,omitempty"`
	Recommendations []Recommendation    `json:"recommendations"`
	Warnings        []string            `json:"warnings,omitempty"`
}

// Evaluate validates the caller-side constraints the engine leaves open, runs Analyze once and
// derives EOL, perfect information and one recommendation per criterion from that result.
func Evaluate(req Request) (*Evaluation, error) {
	if math.IsNaN(req.Alpha) || req.Alpha < 0 || req.Alpha > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrAlphaRange, req.Alpha)
	}
	for i, p := range req.Probabilities {
		if p < 0 {
			return nil, fmt.Errorf("%w: probability %d is %v", ErrNegativeProbability, i+1, p)
		}
	}

	res, err := Analyze(req.Matrix, req.Probabilities, req.Sense, req.Alpha)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Result:        res,
		Probabilities: append([]float64(nil), req.Probabilities...),
	}

	if req.Probabilities != nil {
		eol, err := ExpectedOpportunityLoss(res.Loss, req.Probabilities)
		if err != nil {
			return nil, err
		}
		for i := range res.Rows {
			v := eol[i]
			res.Rows[i].EOL = &v
		}

		if ev.WeightedLoss, err = WeightedLoss(res.Loss, req.Probabilities); err != nil {
			return nil, err
		}
		if ev.Information, err = ComputePerfectInformation(res, req.Probabilities); err != nil {
			return nil, err
		}

		tolerance := req.Tolerance
		if tolerance <= 0 {
			tolerance = DefaultProbabilityTolerance
		}
		var sum float64
		for _, p := range req.Probabilities {
			sum += p
		}
		if math.Abs(sum-1) > tolerance {
			ev.Warnings = append(ev.Warnings, fmt.Sprintf("probabilities sum to %g, not 1; values are used as given", sum))
		}
	} else {
		ev.Probabilities = nil
		ev.Warnings = append(ev.Warnings, "no probabilities supplied; EMV, EOL and EVPI are not applicable")
	}

	ev.Recommendations = Recommend(res)
	return ev, nil
}

// RecommendationFor returns the recommendation for c, or false if c is unknown.
func (e *Evaluation) RecommendationFor(c Criterion) (Recommendation, bool) {
	for _, rec := range e.Recommendations {
		if rec.Criterion == c {
			return rec, true
		}
	}
	return Recommendation{}, false
}
