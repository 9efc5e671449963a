package decision

import (
	"fmt"
	"strings"

	"github.com/Harry10012003/decision-support-tool/internal/models"
	"gonum.org/v1/gonum/floats"
)

// Criterion names one column of the result table that a choice can be based on.
type Criterion string

const (
	CriterionOptimistic    Criterion = "optimistic"
	CriterionPessimistic   Criterion = "pessimistic"
	CriterionAverage       Criterion = "average"
	CriterionHurwicz       Criterion = "hurwicz"
	CriterionEMV           Criterion = "emv"
	CriterionMinimaxRegret Criterion = "minimax_regret"
	CriterionEOL           Criterion = "eol"
)

// Criteria lists every criterion in report order.
func Criteria() []Criterion {
	return []Criterion{
		CriterionOptimistic,
		CriterionPessimistic,
		CriterionAverage,
		CriterionHurwicz,
		CriterionEMV,
		CriterionMinimaxRegret,
		CriterionEOL,
	}
}

// ParseCriterion accepts the canonical names plus the common textbook aliases.
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "optimistic", "maximax", "minimin":
		return CriterionOptimistic, nil
	case "pessimistic", "maximin", "minimax", "wald":
		return CriterionPessimistic, nil
	case "average", "laplace", "equally_likely", "mean":
		return CriterionAverage, nil
	case "hurwicz", "realism":
		return CriterionHurwicz, nil
	case "emv", "expected_value":
		return CriterionEMV, nil
	case "minimax_regret", "regret", "savage":
		return CriterionMinimaxRegret, nil
	case "eol", "expected_opportunity_loss":
		return CriterionEOL, nil
	default:
		return "", fmt.Errorf("unknown criterion %q", s)
	}
}

// Label is the human-readable name of c.
func (c Criterion) Label() string {
	switch c {
	case CriterionOptimistic:
		return "Optimistic"
	case CriterionPessimistic:
		return "Pessimistic"
	case CriterionAverage:
		return "Equally Likely"
	case CriterionHurwicz:
		return "Hurwicz"
	case CriterionEMV:
		return "EMV"
	case CriterionMinimaxRegret:
		return "Minimax Regret"
	case CriterionEOL:
		return "Expected Opportunity Loss"
	default:
		return string(c)
	}
}

// Minimized reports whether the chosen option has the smallest value of c under sense.
// Regret and loss are always minimized; every other criterion follows the sense.
func (c Criterion) Minimized(sense models.Sense) bool {
	if c == CriterionMinimaxRegret || c == CriterionEOL {
		return true
	}
	return sense == models.Minimize
}

// Values extracts the column of c from res. ok is false when the column is not applicable.
func (c Criterion) Values(res *Result) (values []float64, ok bool) {
	if c == CriterionEMV && !res.HasEMV() {
		return nil, false
	}
	values = make([]float64, len(res.Rows))
	for i, row := range res.Rows {
		switch c {
		case CriterionOptimistic:
			values[i] = row.Optimistic
		case CriterionPessimistic:
			values[i] = row.Pessimistic
		case CriterionAverage:
			values[i] = row.Average
		case CriterionHurwicz:
			values[i] = row.Hurwicz
		case CriterionMinimaxRegret:
			values[i] = row.MinimaxRegret
		case CriterionEMV:
			values[i] = *row.EMV
		case CriterionEOL:
			if row.EOL == nil {
				return nil, false
			}
			values[i] = *row.EOL
		default:
			return nil, false
		}
	}
	return values, len(values) > 0
}

// Recommendation is the option chosen by one criterion.
type Recommendation struct {
	Criterion  Criterion `json:"criterion"`
	Applicable bool      `json:"applicable"`
	Option     string    `json:"option,omitempty"`
	Index      int       `json:"index"`
	Value      float64   `json:"value"`
	Minimized  bool      `json:"minimized"`
	// TiedWith lists later options that reach the same value; the first one in row order wins.
	TiedWith []string `json:"tied_with,omitempty"`
}

// Recommend picks one option per criterion. Criteria without data (EMV and EOL when no
// probabilities were supplied) are returned with Applicable=false.
func Recommend(res *Result) []Recommendation {
	criteria := Criteria()
	recs := make([]Recommendation, 0, len(criteria))
	for _, c := range criteria {
		recs = append(recs, RecommendBy(res, c))
	}
	return recs
}

// RecommendBy picks the option that c selects.
func RecommendBy(res *Result, c Criterion) Recommendation {
	rec := Recommendation{
		Criterion: c,
		Index:     -1,
		Minimized: c.Minimized(res.Sense),
	}

	values, ok := c.Values(res)
	if !ok {
		return rec
	}

	idx := selectIndex(values, rec.Minimized)
	rec.Applicable = true
	rec.Index = idx
	rec.Option = res.Rows[idx].Option
	rec.Value = values[idx]
	for i := idx + 1; i < len(values); i++ {
		if values[i] == values[idx] {
			rec.TiedWith = append(rec.TiedWith, res.Rows[i].Option)
		}
	}
	return rec
}

// selectIndex returns the index of the extreme value, preferring the first on ties.
func selectIndex(values []float64, minimize bool) int {
	if minimize {
		return floats.MinIdx(values)
	}
	return floats.MaxIdx(values)
}
