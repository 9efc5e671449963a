package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
)

const notApplicable = "N/A"

// Markdown renders the full report: recommendations, the result table, the opportunity-loss
// and expected-opportunity-loss tables and the perfect-information block.
func Markdown(ev *decision.Evaluation) string {
	res := ev.Result
	var b strings.Builder

	b.WriteString("# Decision analysis\n\n")
	b.WriteString(ObjectiveLine(res) + "\n\n")
	if ev.Probabilities != nil {
		parts := make([]string, len(res.States))
		for j, state := range res.States {
			parts[j] = fmt.Sprintf("%s %s", escapeCell(state), Probability(ev.Probabilities[j]))
		}
		b.WriteString("Probabilities: " + strings.Join(parts, ", ") + "\n\n")
	}
	for _, w := range ev.Warnings {
		b.WriteString("> Warning: " + w + "\n\n")
	}

	b.WriteString("## Recommendations\n\n")
	for _, rec := range ev.Recommendations {
		fmt.Fprintf(&b, "- **%s**: %s\n", header(rec.Criterion, res.Alpha), escapeCell(Verdict(rec)))
	}
	b.WriteString("\n")

	b.WriteString("## Result table\n\n")
	cols := criterionColumns(res)
	heads := append([]string{"Option"}, res.States...)
	for _, c := range cols {
		heads = append(heads, c.header)
	}
	writeHeader(&b, heads)
	for i, row := range res.Rows {
		cells := []string{escapeCell(row.Option)}
		for _, v := range row.Payoffs {
			cells = append(cells, Number(v))
		}
		for _, c := range cols {
			if c.values == nil {
				cells = append(cells, notApplicable)
				continue
			}
			cells = append(cells, Number(c.values[i]))
		}
		writeRow(&b, cells)
	}
	b.WriteString("\n")

	b.WriteString("## Opportunity loss\n\n")
	writeLossTable(&b, res.Loss, "Max regret", func(i int) float64 { return res.Rows[i].MinimaxRegret })

	if ev.WeightedLoss != nil {
		b.WriteString("## Expected opportunity loss\n\n")
		writeLossTable(&b, ev.WeightedLoss, "EOL", func(i int) float64 { return *res.Rows[i].EOL })
	}

	if info := ev.Information; info != nil {
		b.WriteString("## Perfect information\n\n")
		writeHeader(&b, append([]string{""}, res.States...))
		best := []string{"Best payoff"}
		probs := []string{"Probability"}
		for j := range res.States {
			best = append(best, Number(info.BestPerState[j]))
			probs = append(probs, Probability(ev.Probabilities[j]))
		}
		writeRow(&b, best)
		writeRow(&b, probs)
		b.WriteString("\n")
		fmt.Fprintf(&b, "- EV with perfect information: %s\n", Number(info.EVwPI))
		fmt.Fprintf(&b, "- EV without perfect information (best EMV, %s): %s\n", escapeCell(info.BestOption), Number(info.EVwoPI))
		fmt.Fprintf(&b, "- EVPI: %s\n", Number(info.EVPI))
	}

	return b.String()
}

// HTML renders the Markdown report as a standalone HTML page.
func HTML(ev *decision.Evaluation) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(Markdown(ev)))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Decision analysis",
	})
	return markdown.Render(doc, renderer)
}

func writeLossTable(b *strings.Builder, loss *decision.LossMatrix, total string, totalOf func(int) float64) {
	writeHeader(b, append(append([]string{"Option"}, loss.States...), total))
	for i, option := range loss.Options {
		cells := []string{escapeCell(option)}
		for _, v := range loss.Values[i] {
			cells = append(cells, Number(v))
		}
		cells = append(cells, Number(totalOf(i)))
		writeRow(b, cells)
	}
	b.WriteString("\n")
}

func writeHeader(b *strings.Builder, heads []string) {
	escaped := make([]string, len(heads))
	for i, h := range heads {
		escaped[i] = escapeCell(h)
	}
	writeRow(b, escaped)

	align := make([]string, len(heads))
	align[0] = "---"
	for i := 1; i < len(align); i++ {
		align[i] = "---:"
	}
	writeRow(b, align)
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
