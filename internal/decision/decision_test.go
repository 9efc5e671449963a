package decision

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harry10012003/decision-support-tool/internal/models"
)

const delta = 1e-6

func investmentMatrix() *models.PayoffMatrix {
	return &models.PayoffMatrix{
		Options: []string{"A", "B", "C", "D"},
		States:  []string{"S1", "S2", "S3"},
		Values: [][]float64{
			{50000, 20000, -10000},
			{80000, 22000, -20000},
			{100000, 30000, -40000},
			{300000, 25000, -100000},
		},
	}
}

var investmentProbabilities = []float64{0.5, 0.3, 0.2}

func column(res *Result, pick func(Row) float64) []float64 {
	out := make([]float64, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = pick(row)
	}
	return out
}

func TestAnalyze_InvestmentExample(t *testing.T) {
	res, err := Analyze(investmentMatrix(), investmentProbabilities, models.Maximize, DefaultAlpha)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	assert.Equal(t, []float64{50000, 80000, 100000, 300000}, column(res, func(r Row) float64 { return r.Optimistic }))
	assert.Equal(t, []float64{-10000, -20000, -40000, -100000}, column(res, func(r Row) float64 { return r.Pessimistic }))
	assert.InDeltaSlice(t, []float64{20000, 82000.0 / 3, 30000, 75000}, column(res, func(r Row) float64 { return r.Average }), delta)
	assert.InDeltaSlice(t, []float64{26000, 40000, 44000, 140000}, column(res, func(r Row) float64 { return r.Hurwicz }), delta)
	assert.InDeltaSlice(t, []float64{29000, 42600, 51000, 137500}, column(res, func(r Row) float64 { return *r.EMV }), delta)
	assert.Equal(t, []float64{250000, 220000, 200000, 90000}, column(res, func(r Row) float64 { return r.MinimaxRegret }))

	expectedLoss := [][]float64{
		{250000, 10000, 0},
		{220000, 8000, 10000},
		{200000, 0, 30000},
		{0, 5000, 90000},
	}
	assert.Equal(t, expectedLoss, res.Loss.Values)
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Loss.Options)
	assert.Equal(t, []string{"S1", "S2", "S3"}, res.Loss.States)

	for _, row := range res.Rows {
		assert.Nil(t, row.EOL, "Analyze leaves EOL to the caller")
	}
}

func TestAnalyze_Minimize(t *testing.T) {
	costs := &models.PayoffMatrix{
		Options: []string{"Small", "Medium", "Large"},
		States:  []string{"Low", "High"},
		Values: [][]float64{
			{10, 50},
			{20, 30},
			{35, 35},
		},
	}

	res, err := Analyze(costs, []float64{0.4, 0.6}, models.Minimize, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 20, 35}, column(res, func(r Row) float64 { return r.Optimistic }))
	assert.Equal(t, []float64{50, 30, 35}, column(res, func(r Row) float64 { return r.Pessimistic }))
	assert.InDeltaSlice(t, []float64{30, 25, 35}, column(res, func(r Row) float64 { return r.Hurwicz }), delta)
	assert.InDeltaSlice(t, []float64{34, 26, 35}, column(res, func(r Row) float64 { return *r.EMV }), delta)

	// best(Low)=10, best(High)=30
	assert.Equal(t, [][]float64{{0, 20}, {10, 0}, {25, 5}}, res.Loss.Values)
	assert.Equal(t, []float64{20, 10, 25}, column(res, func(r Row) float64 { return r.MinimaxRegret }))
}

func TestAnalyze_WithoutProbabilities(t *testing.T) {
	res, err := Analyze(investmentMatrix(), nil, models.Maximize, DefaultAlpha)
	require.NoError(t, err)

	assert.False(t, res.HasEMV())
	for _, row := range res.Rows {
		assert.Nil(t, row.EMV)
	}
	assert.Equal(t, []float64{250000, 220000, 200000, 90000}, column(res, func(r Row) float64 { return r.MinimaxRegret }))
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name          string
		matrix        *models.PayoffMatrix
		probabilities []float64
		want          error
	}{
		{
			name:   "nil matrix",
			matrix: nil,
			want:   ErrEmptyMatrix,
		},
		{
			name:   "no options",
			matrix: &models.PayoffMatrix{States: []string{"S1"}},
			want:   ErrEmptyMatrix,
		},
		{
			name:   "no states",
			matrix: &models.PayoffMatrix{Options: []string{"A"}, Values: [][]float64{{}}},
			want:   ErrEmptyMatrix,
		},
		{
			name: "ragged row",
			matrix: &models.PayoffMatrix{
				Options: []string{"A", "B"},
				States:  []string{"S1", "S2"},
				Values:  [][]float64{{1, 2}, {3}},
			},
			want: ErrShape,
		},
		{
			name:          "too few probabilities",
			matrix:        investmentMatrix(),
			probabilities: []float64{0.5, 0.5},
			want:          ErrShape,
		},
		{
			name:          "too many probabilities",
			matrix:        investmentMatrix(),
			probabilities: []float64{0.25, 0.25, 0.25, 0.25},
			want:          ErrShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Analyze(tt.matrix, tt.probabilities, models.Maximize, DefaultAlpha)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	m := investmentMatrix()
	before := m.Clone()
	probs := append([]float64(nil), investmentProbabilities...)

	res, err := Analyze(m, probs, models.Minimize, 0.3)
	require.NoError(t, err)
	res.Rows[0].Payoffs[0] = -1
	res.Loss.Values[0][0] = -1

	assert.Equal(t, before, m)
	assert.Equal(t, investmentProbabilities, probs)
}

func TestAnalyze_Deterministic(t *testing.T) {
	m := &models.PayoffMatrix{
		Options: []string{"X", "Y"},
		States:  []string{"a", "b", "c", "d", "e"},
		Values: [][]float64{
			{0.1, 0.2, 0.3, 1e16, -1e16},
			{1.0 / 3, 2.0 / 3, 0.7, 1e-9, 3.3},
		},
	}
	probs := []float64{0.1, 0.2, 0.3, 0.25, 0.15}

	first, err := Analyze(m, probs, models.Maximize, 0.37)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Analyze(m, probs, models.Maximize, 0.37)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Left-to-right accumulation over the column order.
	var expected float64
	for j, v := range m.Values[0] {
		expected += v * probs[j]
	}
	assert.Equal(t, expected, *first.Rows[0].EMV)
}

func TestAnalyze_AlphaNotClamped(t *testing.T) {
	res, err := Analyze(investmentMatrix(), nil, models.Maximize, 2)
	require.NoError(t, err)
	// 2*50000 + (1-2)*(-10000)
	assert.InDelta(t, 110000, res.Rows[0].Hurwicz, delta)
}

func TestAnalyze_NaNPropagatesThroughEMV(t *testing.T) {
	m := &models.PayoffMatrix{
		Options: []string{"A"},
		States:  []string{"S1", "S2"},
		Values:  [][]float64{{math.NaN(), 1}},
	}
	res, err := Analyze(m, []float64{0.5, 0.5}, models.Maximize, DefaultAlpha)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(*res.Rows[0].EMV))
	assert.True(t, math.IsNaN(res.Rows[0].Average))
}

func TestAnalyze_SingleCell(t *testing.T) {
	m := &models.PayoffMatrix{Options: []string{"only"}, States: []string{"s"}, Values: [][]float64{{-7}}}
	res, err := Analyze(m, []float64{1}, models.Maximize, DefaultAlpha)
	require.NoError(t, err)

	row := res.Rows[0]
	assert.Equal(t, -7.0, row.Optimistic)
	assert.Equal(t, -7.0, row.Pessimistic)
	assert.Equal(t, -7.0, row.Hurwicz)
	assert.Equal(t, -7.0, *row.EMV)
	assert.Equal(t, 0.0, row.MinimaxRegret)
}

func TestBestPerState(t *testing.T) {
	m := investmentMatrix()
	assert.Equal(t, []float64{300000, 30000, -10000}, BestPerState(m, models.Maximize))
	assert.Equal(t, []float64{50000, 20000, -100000}, BestPerState(m, models.Minimize))
}

func TestCriterionValues_Applicability(t *testing.T) {
	without, err := Analyze(investmentMatrix(), nil, models.Maximize, DefaultAlpha)
	require.NoError(t, err)

	_, ok := CriterionEMV.Values(without)
	assert.False(t, ok)
	_, ok = CriterionEOL.Values(without)
	assert.False(t, ok)
	regret, ok := CriterionMinimaxRegret.Values(without)
	assert.True(t, ok)
	assert.Equal(t, []float64{250000, 220000, 200000, 90000}, regret)

	with, err := Analyze(investmentMatrix(), []float64{0.5, 0.3, 0.2}, models.Maximize, DefaultAlpha)
	require.NoError(t, err)
	assert.True(t, with.HasEMV())
	emv, ok := CriterionEMV.Values(with)
	require.True(t, ok)
	assert.InDelta(t, 137500, emv[3], 1e-6)

	// EOL is filled in by Evaluate, not Analyze
	_, ok = CriterionEOL.Values(with)
	assert.False(t, ok)
}
