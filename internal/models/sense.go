package models

import (
	"fmt"
	"strings"
)

// Sense is the objective of an analysis: maximize payoffs (profit) or minimize them (cost).
type Sense int

const (
	// Maximize treats larger payoffs as better.
	Maximize Sense = iota
	// Minimize treats smaller payoffs as better.
	Minimize
)

// ParseSense accepts the names used in config files, HTTP requests and bot commands.
func ParseSense(s string) (Sense, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maximize", "max", "profit":
		return Maximize, nil
	case "minimize", "min", "cost":
		return Minimize, nil
	default:
		return Maximize, fmt.Errorf("unknown objective sense %q: must be maximize or minimize", s)
	}
}

func (s Sense) String() string {
	if s == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Valid reports whether s is one of the declared senses.
func (s Sense) Valid() bool {
	return s == Maximize || s == Minimize
}

// MarshalText implements encoding.TextMarshaler so JSON carries the name.
func (s Sense) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Sense) UnmarshalText(text []byte) error {
	parsed, err := ParseSense(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
