// Package storage persists per-chat analysis preferences in SQLite.
//
// Only the objective sense and the Hurwicz alpha a chat has chosen are kept. Payoff tables and
// results are never stored: every analysis is computed from the message that carried it.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Harry10012003/decision-support-tool/internal/models"
)

// ErrNotFound is returned when a chat has no stored preferences.
var ErrNotFound = errors.New("preferences not found")

const schema = `
CREATE TABLE IF NOT EXISTS chat_preferences (
	chat_id    INTEGER PRIMARY KEY,
	sense      TEXT NOT NULL,
	alpha      REAL NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Defaults are the preferences of a chat that never changed them.
type Defaults struct {
	Sense models.Sense
	Alpha float64
}

// Storage manages chat preferences in SQLite
type Storage struct {
	db       *sql.DB
	defaults Defaults
	// serializes read-modify-write updates
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and runs migrations.
// ":memory:" gives a private in-memory database.
func New(dbPath string, defaults Defaults) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Storage{db: db, defaults: defaults}, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetPreferences retrieves the stored preferences of a chat.
func (s *Storage) GetPreferences(ctx context.Context, chatID int64) (*models.Preferences, error) {
	var (
		sense     string
		alpha     float64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sense, alpha, updated_at FROM chat_preferences WHERE chat_id = ?`, chatID,
	).Scan(&sense, &alpha, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chat %d", ErrNotFound, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	parsedSense, err := models.ParseSense(sense)
	if err != nil {
		return nil, fmt.Errorf("stored preferences for chat %d: %w", chatID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("stored preferences for chat %d: %w", chatID, err)
	}

	return &models.Preferences{
		ChatID:    chatID,
		Sense:     parsedSense,
		Alpha:     alpha,
		UpdatedAt: ts,
	}, nil
}

// PreferencesOrDefault returns the stored preferences, or the defaults when the chat has none.
func (s *Storage) PreferencesOrDefault(ctx context.Context, chatID int64) (*models.Preferences, error) {
	p, err := s.GetPreferences(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return &models.Preferences{
			ChatID: chatID,
			Sense:  s.defaults.Sense,
			Alpha:  s.defaults.Alpha,
		}, nil
	}
	return p, err
}

// SetSense stores the objective sense of a chat, keeping its alpha.
func (s *Storage) SetSense(ctx context.Context, chatID int64, sense models.Sense) (*models.Preferences, error) {
	return s.update(ctx, chatID, func(p *models.Preferences) { p.Sense = sense })
}

// SetAlpha stores the Hurwicz alpha of a chat, keeping its sense.
func (s *Storage) SetAlpha(ctx context.Context, chatID int64, alpha float64) (*models.Preferences, error) {
	return s.update(ctx, chatID, func(p *models.Preferences) { p.Alpha = alpha })
}

// Reset forgets the preferences of a chat. Resetting an unknown chat is not an error.
func (s *Storage) Reset(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_preferences WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

// Count returns the number of chats with stored preferences.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_preferences`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count preferences: %w", err)
	}
	return n, nil
}

func (s *Storage) update(ctx context.Context, chatID int64, apply func(*models.Preferences)) (*models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.PreferencesOrDefault(ctx, chatID)
	if err != nil {
		return nil, err
	}
	apply(p)
	p.UpdatedAt = time.Now().UTC()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_preferences (chat_id, sense, alpha, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			sense = excluded.sense,
			alpha = excluded.alpha,
			updated_at = excluded.updated_at`,
		p.ChatID, p.Sense.String(), p.Alpha, p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}
