package models

import (
	"errors"
	"time"
)

// Preferences holds the analysis settings a chat has chosen.
// They are passed explicitly into every analysis for that chat.
type Preferences struct {
	ChatID    int64     `json:"chat_id"`
	Sense     Sense     `json:"sense"`
	Alpha     float64   `json:"alpha"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that all preference fields are valid
func (p *Preferences) Validate() error {
	if p.ChatID == 0 {
		return errors.New("chat ID must not be zero")
	}
	if !p.Sense.Valid() {
		return errors.New("sense must be maximize or minimize")
	}
	if p.Alpha < 0.0 || p.Alpha > 1.0 {
		return errors.New("alpha must be between 0.0 and 1.0")
	}
	if p.UpdatedAt.After(time.Now()) {
		return errors.New("updated at must not be in the future")
	}
	return nil
}
