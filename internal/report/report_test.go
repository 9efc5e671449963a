package report

import (
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/models"
)

func investmentEvaluation(t *testing.T, probabilities []float64) *decision.Evaluation {
	t.Helper()
	ev, err := decision.Evaluate(decision.Request{
		Matrix: &models.PayoffMatrix{
			Options: []string{"A", "B", "C", "D"},
			States:  []string{"S1", "S2", "S3"},
			Values: [][]float64{
				{50000, 20000, -10000},
				{80000, 22000, -20000},
				{100000, 30000, -40000},
				{300000, 25000, -100000},
			},
		},
		Probabilities: probabilities,
		Sense:         models.Maximize,
		Alpha:         decision.DefaultAlpha,
	})
	require.NoError(t, err)
	return ev
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{300000, 0, "300,000"},
		{-100000, 0, "-100,000"},
		{1234567.891, 2, "1,234,567.89"},
		{0.5, 2, "0.50"},
		{-0.001, 2, "0.00"},
		{999, 0, "999"},
		{math.NaN(), 2, "NaN"},
		{math.Inf(1), 0, "+Inf"},
		{math.Inf(-1), 0, "-Inf"},
		{1e20, 0, "1e+20"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.v, tt.decimals))
		})
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "137,500", Number(137500))
	assert.Equal(t, "137,500", Number(137500.0000000001))
	assert.Equal(t, "27,333.33", Number(82000.0/3))
	assert.Equal(t, "-10,000", Number(-10000))
}

func TestVerdict(t *testing.T) {
	ev := investmentEvaluation(t, []float64{0.5, 0.3, 0.2})

	emv, ok := ev.RecommendationFor(decision.CriterionEMV)
	require.True(t, ok)
	assert.Equal(t, "choose D: its EMV value 137,500 is the largest", Verdict(emv))

	regret, ok := ev.RecommendationFor(decision.CriterionMinimaxRegret)
	require.True(t, ok)
	assert.Equal(t, "choose D: its Minimax Regret value 90,000 is the smallest", Verdict(regret))

	tied := decision.Recommendation{Applicable: true, Option: "P", Criterion: decision.CriterionAverage, Value: 3, TiedWith: []string{"Q"}}
	assert.Equal(t, "choose P: its Equally Likely value 3 is the largest (tied with Q)", Verdict(tied))

	assert.Equal(t, "not applicable without probabilities", Verdict(decision.Recommendation{Criterion: decision.CriterionEOL}))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(investmentEvaluation(t, []float64{0.5, 0.3, 0.2}))

	for _, want := range []string{
		"# Decision analysis",
		"Objective: maximize profit, Hurwicz alpha = 0.6",
		"Probabilities: S1 0.5, S2 0.3, S3 0.2",
		"- **EMV**: choose D: its EMV value 137,500 is the largest",
		"- **Pessimistic**: choose A",
		"| Option | S1 | S2 | S3 | Optimistic | Pessimistic | Equally Likely | Hurwicz (alpha = 0.6) | EMV | Minimax Regret | Expected Opportunity Loss |",
		"| D | 300,000 | 25,000 | -100,000 | 300,000 | -100,000 | 75,000 |",
		"| A | 250,000 | 10,000 | 0 | 250,000 |",
		"## Expected opportunity loss",
		"| A | 125,000 | 3,000 | 0 | 128,000 |",
		"| Best payoff | 300,000 | 30,000 | -10,000 |",
		"- EV with perfect information: 157,000",
		"- EV without perfect information (best EMV, D): 137,500",
		"- EVPI: 19,500",
	} {
		assert.Contains(t, md, want)
	}
}

func TestMarkdown_WithoutProbabilities(t *testing.T) {
	md := Markdown(investmentEvaluation(t, nil))

	assert.Contains(t, md, "> Warning: no probabilities supplied")
	assert.Contains(t, md, "- **EMV**: not applicable without probabilities")
	assert.Contains(t, md, "| N/A |")
	assert.NotContains(t, md, "## Expected opportunity loss")
	assert.NotContains(t, md, "## Perfect information")
	assert.NotContains(t, md, "Probabilities:")
}

func TestMarkdown_EscapesPipes(t *testing.T) {
	ev, err := decision.Evaluate(decision.Request{
		Matrix: &models.PayoffMatrix{
			Options: []string{"buy | hold"},
			States:  []string{"up"},
			Values:  [][]float64{{1}},
		},
		Alpha: 0.5,
	})
	require.NoError(t, err)
	assert.Contains(t, Markdown(ev), `| buy \| hold | 1 |`)
}

func TestHTML(t *testing.T) {
	page := string(HTML(investmentEvaluation(t, []float64{0.5, 0.3, 0.2})))

	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "<title>Decision analysis</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<strong>EMV</strong>")
	assert.Contains(t, page, "EVPI: 19,500")
}

func TestCSV(t *testing.T) {
	out, err := CSV(investmentEvaluation(t, []float64{0.5, 0.3, 0.2}))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"option", "S1", "S2", "S3", "optimistic", "pessimistic", "average", "hurwicz", "emv", "minimax_regret", "eol"}, records[0])

	d := records[4]
	assert.Equal(t, []string{"D", "300000", "25000", "-100000", "300000", "-100000", "75000"}, d[:7])
	emv, err := strconv.ParseFloat(d[8], 64)
	require.NoError(t, err)
	assert.InDelta(t, 137500, emv, 1e-6)
	assert.Equal(t, "90000", d[9])
}

func TestCSV_WithoutProbabilities(t *testing.T) {
	out, err := CSV(investmentEvaluation(t, nil))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	for _, record := range records[1:] {
		assert.Equal(t, "NA", record[8])
		assert.Equal(t, "NA", record[10])
	}
}

func TestTable(t *testing.T) {
	table := Table(investmentEvaluation(t, []float64{0.5, 0.3, 0.2}))
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, []string{"Option", "S1", "S2", "S3", "Opt", "Pess", "Avg", "Hurwicz", "EMV", "Regret", "EOL"}, strings.Fields(lines[0]))
	assert.Equal(t, "D", strings.Fields(lines[4])[0])
	assert.Equal(t, "19,500", strings.Fields(lines[4])[10])

	// right-aligned columns end in the same place
	assert.Equal(t, len(lines[0]), len(lines[4]))
}

func TestCriterionSummary(t *testing.T) {
	ev := investmentEvaluation(t, []float64{0.5, 0.3, 0.2})

	summary := CriterionSummary(ev, decision.CriterionPessimistic)
	assert.True(t, strings.HasPrefix(summary, "Pessimistic\n"))
	for _, line := range strings.Split(summary, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "A":
			assert.Equal(t, []string{"A", "-10,000", "*"}, fields)
		case "B", "C", "D":
			assert.Len(t, fields, 2)
		}
	}
	assert.Contains(t, summary, "choose A: its Pessimistic value -10,000 is the largest")

	none := CriterionSummary(investmentEvaluation(t, nil), decision.CriterionEOL)
	assert.Equal(t, "Expected Opportunity Loss\nnot applicable without probabilities\n", none)
}

func TestSummaryAndText(t *testing.T) {
	ev := investmentEvaluation(t, []float64{0.5, 0.3, 0.2})

	summary := Summary(ev)
	assert.Contains(t, summary, "Hurwicz (alpha = 0.6): choose D")
	assert.Contains(t, summary, "EVPI: 19,500\n")

	text := Text(ev)
	assert.True(t, strings.HasPrefix(text, "Objective: maximize profit"))
	assert.Contains(t, text, summary)
	assert.Contains(t, text, Table(ev))
}

func TestParseFormatAndRender(t *testing.T) {
	tests := []struct {
		input       string
		want        Format
		contentType string
	}{
		{"markdown", FormatMarkdown, "text/markdown; charset=utf-8"},
		{"MD", FormatMarkdown, "text/markdown; charset=utf-8"},
		{"html", FormatHTML, "text/html; charset=utf-8"},
		{"csv", FormatCSV, "text/csv; charset=utf-8"},
		{"txt", FormatText, "text/plain; charset=utf-8"},
		{"json", FormatJSON, "application/json"},
	}
	ev := investmentEvaluation(t, []float64{0.5, 0.3, 0.2})

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
			assert.Equal(t, tt.contentType, f.ContentType())

			out, err := Render(ev, f)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)

	out, err := Render(ev, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"evpi": 19500`)
	assert.Contains(t, string(out), `"sense": "maximize"`)
}

func TestRender_OverflowingPayoffs(t *testing.T) {
	ev, err := decision.Evaluate(decision.Request{
		Matrix: &models.PayoffMatrix{
			Options: []string{"A", "B"},
			States:  []string{"S1"},
			Values:  [][]float64{{1e308}, {-1e308}},
		},
		Probabilities: []float64{1},
		Sense:         models.Maximize,
		Alpha:         decision.DefaultAlpha,
	})
	require.NoError(t, err)
	require.True(t, math.IsInf(ev.Result.Rows[1].MinimaxRegret, 1))

	_, err = Render(ev, FormatJSON)
	assert.ErrorIs(t, err, ErrNonFinite)

	for _, f := range []Format{FormatText, FormatMarkdown, FormatCSV} {
		out, err := Render(ev, f)
		require.NoError(t, err, f)
		assert.NotEmpty(t, out)
	}
}
