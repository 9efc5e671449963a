package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/fetch"
	"github.com/Harry10012003/decision-support-tool/internal/logger"
	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/Harry10012003/decision-support-tool/internal/parser"
)

// PreferenceStore keeps the settings each chat has chosen.
type PreferenceStore interface {
	PreferencesOrDefault(ctx context.Context, chatID int64) (*models.Preferences, error)
	SetSense(ctx context.Context, chatID int64, sense models.Sense) (*models.Preferences, error)
	SetAlpha(ctx context.Context, chatID int64, alpha float64) (*models.Preferences, error)
	Reset(ctx context.Context, chatID int64) error
}

// Fetcher downloads linked documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Document, error)
}

// HandlerConfig holds the analysis limits applied to every message.
type HandlerConfig struct {
	MaxOptions           int
	MaxStates            int
	ProbabilityTolerance float64
}

// Handler turns chat messages into MarkdownV2 replies. It holds no per-chat state of its own:
// everything a chat has chosen lives in the PreferenceStore.
type Handler struct {
	store   PreferenceStore
	fetcher Fetcher
	cfg     HandlerConfig
}

// NewHandler creates a message handler
func NewHandler(store PreferenceStore, fetcher Fetcher, cfg HandlerConfig) *Handler {
	return &Handler{store: store, fetcher: fetcher, cfg: cfg}
}

// HandleText answers a text message: a command, or a pasted table to analyse.
// The returned error is reserved for internal failures; bad input produces a reply.
func (h *Handler) HandleText(ctx context.Context, chatID int64, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return escapeMarkdownV2("Send a payoff table, or /help for the format."), nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		// a leading tab is a blank corner cell, only blank lines may go
		table, err := parser.ParseText(strings.Trim(text, "\r\n"))
		if err != nil {
			return inputError(err), nil
		}
		return h.analyze(ctx, chatID, table, "")
	}

	command, args := splitCommand(trimmed)
	switch command {
	case "start", "help":
		return formatHelp(), nil

	case "example":
		table, err := parser.ParseText(parser.ExampleTable())
		if err != nil {
			return "", err
		}
		return h.analyze(ctx, chatID, table, "")

	case "maximize", "max", "profit":
		return h.setSense(ctx, chatID, models.Maximize)

	case "minimize", "min", "cost":
		return h.setSense(ctx, chatID, models.Minimize)

	case "alpha":
		alpha, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
		if err != nil || math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
			return escapeMarkdownV2("Usage: /alpha <number between 0 and 1>, for example /alpha 0.6"), nil
		}
		p, err := h.store.SetAlpha(ctx, chatID, alpha)
		if err != nil {
			return "", fmt.Errorf("set alpha: %w", err)
		}
		return formatSettings(p), nil

	case "settings":
		p, err := h.store.PreferencesOrDefault(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("load preferences: %w", err)
		}
		return formatSettings(p), nil

	case "reset":
		if err := h.store.Reset(ctx, chatID); err != nil {
			return "", fmt.Errorf("reset preferences: %w", err)
		}
		p, err := h.store.PreferencesOrDefault(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("load preferences: %w", err)
		}
		return formatSettings(p), nil

	case "url":
		link := strings.TrimSpace(args)
		if link == "" {
			return escapeMarkdownV2("Usage: /url <link to a CSV or XLSX export>"), nil
		}
		doc, err := h.fetcher.Fetch(ctx, link)
		if err != nil {
			logger.Warn("chat %d: fetch failed: %v", chatID, err)
			return escapeMarkdownV2("Could not download that link. Make sure it is a public http(s) CSV or XLSX export."), nil
		}
		return h.HandleDocument(ctx, chatID, doc.Name, doc.Data)

	case "criterion":
		name, table, _ := strings.Cut(args, "\n")
		c, err := decision.ParseCriterion(name)
		if err != nil {
			return escapeMarkdownV2(fmt.Sprintf("%v. Known criteria: optimistic, pessimistic, average, hurwicz, emv, minimax_regret, eol.", err)), nil
		}
		if strings.TrimSpace(table) == "" {
			return escapeMarkdownV2("Put the table on the lines after /criterion " + string(c) + "."), nil
		}
		parsed, err := parser.ParseText(table)
		if err != nil {
			return inputError(err), nil
		}
		return h.analyze(ctx, chatID, parsed, c)

	default:
		return escapeMarkdownV2(fmt.Sprintf("Unknown command /%s. Send /help for the list.", command)), nil
	}
}

// HandleDocument analyses an uploaded or downloaded spreadsheet.
func (h *Handler) HandleDocument(ctx context.Context, chatID int64, name string, data []byte) (string, error) {
	table, err := parser.ParseDocument(name, bytes.NewReader(data))
	if err != nil {
		return inputError(err), nil
	}
	return h.analyze(ctx, chatID, table, "")
}

func (h *Handler) setSense(ctx context.Context, chatID int64, sense models.Sense) (string, error) {
	p, err := h.store.SetSense(ctx, chatID, sense)
	if err != nil {
		return "", fmt.Errorf("set sense: %w", err)
	}
	return formatSettings(p), nil
}

// analyze runs one evaluation with the chat's preferences. An empty criterion means the full report.
func (h *Handler) analyze(ctx context.Context, chatID int64, table *parser.Table, criterion decision.Criterion) (string, error) {
	if err := table.CheckLimits(h.cfg.MaxOptions, h.cfg.MaxStates); err != nil {
		return inputError(err), nil
	}

	p, err := h.store.PreferencesOrDefault(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("load preferences: %w", err)
	}

	ev, err := decision.Evaluate(decision.Request{
		Matrix:        &table.Matrix,
		Probabilities: table.Probabilities,
		Sense:         p.Sense,
		Alpha:         p.Alpha,
		Tolerance:     h.cfg.ProbabilityTolerance,
	})
	if err != nil {
		return inputError(err), nil
	}

	logger.Debug("chat %d: analysed %d options x %d states (%s, alpha %g)",
		chatID, len(table.Matrix.Options), len(table.Matrix.States), p.Sense, p.Alpha)

	if criterion != "" {
		return formatCriterion(ev, criterion), nil
	}
	return formatAnalysis(ev), nil
}

// splitCommand separates "/cmd@bot args" into its lower-cased name and the argument text.
// Only spaces before the first argument line are dropped: later lines may be table rows whose
// first cell is blank.
func splitCommand(text string) (command, args string) {
	head, rest := strings.TrimPrefix(text, "/"), ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r\n") {
		rest = strings.TrimLeft(rest, "\r\n")
	}
	return strings.ToLower(head), strings.TrimRight(rest, " \t\r\n")
}

func inputError(err error) string {
	msg := err.Error()
	if errors.Is(err, parser.ErrEmptyTable) {
		msg += ". Send /help for the table format"
	}
	return "❌ " + escapeMarkdownV2(msg)
}
