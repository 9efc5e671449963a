package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/Harry10012003/decision-support-tool/internal/parser"
	"github.com/Harry10012003/decision-support-tool/internal/report"
)

// maxMessageLength stays under Telegram's 4096 character limit with room for fences.
const maxMessageLength = 4000

const helpText = `Paste a payoff table to analyse it. The first line names the states, every other line is an option, and an optional line starting with "Pro" holds the state probabilities. Cells are separated by tabs (copy from a spreadsheet), semicolons or spaces.`

const commandsText = `/maximize - larger payoffs are better (profit)
/minimize - smaller payoffs are better (cost)
/alpha 0.6 - set the Hurwicz realism coefficient
/settings - show the current settings
/reset - go back to the defaults
/example - analyse the built-in example
/url <link> - analyse a published CSV or XLSX export
/criterion <name> followed by a table - show one criterion only`

func formatHelp() string {
	var b strings.Builder
	b.WriteString("*Decision analysis bot*\n\n")
	b.WriteString(escapeMarkdownV2(helpText) + "\n\n")
	b.WriteString("```\n" + escapePre(parser.ExampleTable()) + "\n```\n\n")
	b.WriteString(escapeMarkdownV2(commandsText) + "\n\n")
	b.WriteString(escapeMarkdownV2("You can also send a .xlsx or .csv file."))
	return b.String()
}

func formatSettings(p *models.Preferences) string {
	goal := "maximize \\(profit\\)"
	if p.Sense == models.Minimize {
		goal = "minimize \\(cost\\)"
	}
	return fmt.Sprintf("*Settings*\nObjective: %s\nHurwicz alpha: %s",
		goal, escapeMarkdownV2(fmt.Sprintf("%g", p.Alpha)))
}

// formatAnalysis renders an evaluation: verdicts first, then the full table in a monospace block.
func formatAnalysis(ev *decision.Evaluation) string {
	var b strings.Builder
	b.WriteString("*Decision analysis*\n")
	b.WriteString(escapeMarkdownV2(report.ObjectiveLine(ev.Result)) + "\n")
	for _, w := range ev.Warnings {
		b.WriteString("⚠️ " + escapeMarkdownV2(w) + "\n")
	}
	b.WriteString("\n")

	for _, rec := range ev.Recommendations {
		label := rec.Criterion.Label()
		if rec.Criterion == decision.CriterionHurwicz {
			label = fmt.Sprintf("Hurwicz (alpha = %g)", ev.Result.Alpha)
		}
		fmt.Fprintf(&b, "*%s*: %s\n", escapeMarkdownV2(label), escapeMarkdownV2(report.Verdict(rec)))
	}
	if ev.Information != nil {
		fmt.Fprintf(&b, "*EVPI*: %s\n", escapeMarkdownV2(report.Number(ev.Information.EVPI)))
	}

	b.WriteString("\n```\n" + escapePre(report.Table(ev)) + "```")
	return b.String()
}

func formatCriterion(ev *decision.Evaluation, c decision.Criterion) string {
	return "```\n" + escapePre(report.CriterionSummary(ev, c)) + "```"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! \
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapePre escapes the two characters MarkdownV2 reserves inside code blocks.
func escapePre(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}

// splitMessage cuts text into chunks of at most limit runes on line boundaries. A chunk that
// ends inside a code block is closed and the block is reopened in the next chunk.
func splitMessage(text string, limit int) []string {
	const fence = "```"
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		cur     strings.Builder
		size    int
		content bool
		inPre   bool
	)
	write := func(s string, n int) {
		cur.WriteString(s)
		size += n
		content = true
	}
	flush := func() {
		if !content {
			return
		}
		s := strings.TrimRight(cur.String(), "\n")
		if inPre {
			s += "\n" + fence
		}
		chunks = append(chunks, s)
		cur.Reset()
		size, content = 0, false
		if inPre {
			cur.WriteString(fence + "\n")
			size = len(fence) + 1
		}
	}

	// room for a closing fence
	budget := limit - len(fence) - 1
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		runes := []rune(line)
		if size+len(runes) > budget {
			flush()
		}
		// a single line longer than a chunk
		for size+len(runes) > budget {
			take := budget - size
			if take > 1 && trailingBackslashes(runes[:take])%2 == 1 {
				// keep an escape together with the character it escapes
				take--
			}
			write(string(runes[:take]), take)
			runes = runes[take:]
			flush()
		}
		write(string(runes), len(runes))
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			inPre = !inPre
		}
	}
	if content {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func trailingBackslashes(runes []rune) int {
	n := 0
	for i := len(runes) - 1; i >= 0 && runes[i] == '\\'; i-- {
		n++
	}
	return n
}
