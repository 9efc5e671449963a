package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harry10012003/decision-support-tool/internal/fetch"
	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/Harry10012003/decision-support-tool/internal/parser"
	"github.com/Harry10012003/decision-support-tool/internal/storage"
)

const chatID int64 = 4242

func newTestHandler(t *testing.T, cfg HandlerConfig) *Handler {
	t.Helper()
	store, err := storage.New(":memory:", storage.Defaults{Sense: models.Maximize, Alpha: 0.6})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fetcher := fetch.NewClient(fetch.ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     1,
		RetryDelayBase: time.Millisecond,
		// httptest servers listen on loopback
		AllowPrivateNetworks: true,
	})
	return NewHandler(store, fetcher, cfg)
}

func handle(t *testing.T, h *Handler, text string) string {
	t.Helper()
	reply, err := h.HandleText(context.Background(), chatID, text)
	if err != nil {
		t.Fatalf("HandleText(%q) failed: %v", text, err)
	}
	return reply
}

func assertContains(t *testing.T, reply string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(reply, want) {
			t.Errorf("reply does not contain %q:\n%s", want, reply)
		}
	}
}

func TestHandleText_Help(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	for _, cmd := range []string{"/start", "/help", "/help@DecisionBot"} {
		reply := handle(t, h, cmd)
		assertContains(t, reply, "*Decision analysis bot*", "```\nOption\tS1\tS2\tS3\nPro\t0.5", "/maximize")
	}
}

func TestHandleText_PastedTable(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{MaxOptions: 50, MaxStates: 50})

	reply := handle(t, h, parser.ExampleTable())
	assertContains(t, reply,
		"*Decision analysis*",
		escapeMarkdownV2("Objective: maximize profit, Hurwicz alpha = 0.6"),
		"*EMV*: "+escapeMarkdownV2("choose D: its EMV value 137,500 is the largest"),
		"*Pessimistic*: "+escapeMarkdownV2("choose A"),
		"*EVPI*: 19,500",
		"```\n",
	)
	if countFences(reply)%2 != 0 {
		t.Errorf("unbalanced code fences in reply")
	}
	if reply != handle(t, h, "/example") {
		t.Error("/example should answer like the pasted example table")
	}
}

func TestHandleText_BlankCornerCell(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})
	// copying a range from a spreadsheet leaves the top-left cell empty
	table := "\tS1\tS2\tS3\n" +
		"Pro\t0.5\t0.3\t0.2\n" +
		"A\t50000\t20000\t-10000\n" +
		"B\t80000\t22000\t-20000\n" +
		"C\t100000\t30000\t-40000\n" +
		"D\t300000\t25000\t-100000\n"

	for _, input := range []string{table, "\n\r\n" + table + "\n\n"} {
		reply := handle(t, h, input)
		assertContains(t, reply, "*EVPI*: 19,500")
		if strings.HasPrefix(reply, "❌") {
			t.Errorf("unexpected error reply: %s", reply)
		}
	}

	reply := handle(t, h, "/criterion emv\n"+table)
	assertContains(t, reply, "choose D: its EMV value 137,500 is the largest")
}

func TestHandleText_SessionPreferences(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	assertContains(t, handle(t, h, "/minimize"), "Objective: minimize \\(cost\\)")
	assertContains(t, handle(t, h, "/alpha 0.3"), "Hurwicz alpha: 0\\.3", "minimize")
	assertContains(t, handle(t, h, "/settings"), "minimize", "0\\.3")

	reply := handle(t, h, "/example")
	assertContains(t, reply,
		escapeMarkdownV2("Objective: minimize cost, Hurwicz alpha = 0.3"),
		escapeMarkdownV2("choose A: its EMV value 29,000 is the smallest"),
	)

	// another chat keeps the defaults
	other, err := h.HandleText(context.Background(), chatID+1, "/settings")
	if err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	assertContains(t, other, "maximize", "0\\.6")

	assertContains(t, handle(t, h, "/reset"), "maximize \\(profit\\)", "0\\.6")
	assertContains(t, handle(t, h, "/max"), "maximize")
}

func TestHandleText_AlphaValidation(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	for _, cmd := range []string{"/alpha", "/alpha 1.5", "/alpha -0.1", "/alpha abc", "/alpha NaN"} {
		assertContains(t, handle(t, h, cmd), "Usage: /alpha")
	}
	assertContains(t, handle(t, h, "/settings"), "0\\.6")
	assertContains(t, handle(t, h, "/alpha@DecisionBot 1"), "Hurwicz alpha: 1")
}

func TestHandleText_InputErrors(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{MaxOptions: 3})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad number", "Option\tS1\nA\tlots", "invalid number"},
		{"ragged row", "Option\tS1\tS2\nA\t1", "row length"},
		{"too many options", parser.ExampleTable(), "too large"},
		{"probabilities only", "Option\tS1\nPro\t1", "/help for the table format"},
		{"unknown command", "/foo", "Unknown command /foo"},
		{"whitespace only", "   ", "Send a payoff table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := handle(t, h, tt.input)
			assertContains(t, reply, escapeMarkdownV2(tt.want))
		})
	}
}

func TestHandleText_WithoutProbabilities(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	reply := handle(t, h, "Option\tS1\tS2\nA\t10\t0\nB\t4\t5")
	assertContains(t, reply,
		escapeMarkdownV2("no probabilities supplied"),
		"*EMV*: not applicable without probabilities",
		"*Optimistic*: "+escapeMarkdownV2("choose A"),
		"*Pessimistic*: "+escapeMarkdownV2("choose B"),
	)
	if strings.Contains(reply, "*EVPI*") {
		t.Error("EVPI should not be reported without probabilities")
	}
}

func TestHandleText_Criterion(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	reply := handle(t, h, "/criterion savage\n"+parser.ExampleTable())
	assertContains(t, reply, "```\nMinimax Regret\n", "90,000", "choose D")

	assertContains(t, handle(t, h, "/criterion bayes\n"+parser.ExampleTable()), "unknown criterion")
	assertContains(t, handle(t, h, "/criterion emv"), "Put the table on the lines after /criterion emv")
}

func TestHandleText_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sheet/export":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte(strings.ReplaceAll(parser.ExampleTable(), "\t", ",")))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	h := newTestHandler(t, HandlerConfig{})

	reply := handle(t, h, "/url "+server.URL+"/sheet/export")
	assertContains(t, reply, "*EVPI*: 19,500")

	assertContains(t, handle(t, h, "/url "+server.URL+"/missing"), "Could not download that link")
	assertContains(t, handle(t, h, "/url"), "Usage: /url")
}

func TestHandleDocument(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	csv := strings.ReplaceAll(parser.ExampleTable(), "\t", ";")
	reply, err := h.HandleDocument(context.Background(), chatID, "payoffs.csv", []byte(csv))
	if err != nil {
		t.Fatalf("HandleDocument failed: %v", err)
	}
	assertContains(t, reply, "*EVPI*: 19,500")

	reply, err = h.HandleDocument(context.Background(), chatID, "broken.xlsx", []byte("not a workbook"))
	if err != nil {
		t.Fatalf("HandleDocument failed: %v", err)
	}
	if !strings.HasPrefix(reply, "❌") {
		t.Errorf("Expected an error reply, got %q", reply)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		input       string
		wantCommand string
		wantArgs    string
	}{
		{"/help", "help", ""},
		{"/Alpha 0.5", "alpha", "0.5"},
		{"/alpha@DecisionBot   0.5 ", "alpha", "0.5"},
		{"/criterion emv\nOption\tS1", "criterion", "emv\nOption\tS1"},
		{"/url\nhttps://example.com/a.csv", "url", "https://example.com/a.csv"},
		{"/criterion emv\n\tS1\tS2\nA\t1\t2\n", "criterion", "emv\n\tS1\tS2\nA\t1\t2"},
		{"/criterion\n\tS1\nA\t1", "criterion", "\tS1\nA\t1"},
	}
	for _, tt := range tests {
		command, args := splitCommand(tt.input)
		if command != tt.wantCommand || args != tt.wantArgs {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.input, command, args, tt.wantCommand, tt.wantArgs)
		}
	}
}
