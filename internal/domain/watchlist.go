package domain

import (
	"strings"
	"time"
)

const maxSymbolLen = 15

// WatchlistEntry is a symbol the user tracks, with an optional display name.
type WatchlistEntry struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the display name, falling back to the symbol.
func (e WatchlistEntry) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Symbol
}

// NormalizeSymbol trims and upper-cases a ticker. Index (^GSPC), class (BRK.B),
// currency (EURUSD=X) and future (ES=F) notations are accepted.
func NormalizeSymbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", &ValidationError{Field: "symbol", Reason: "empty symbol", Err: ErrInvalidSymbol}
	}
	if len(s) > maxSymbolLen {
		return "", &ValidationError{Field: "symbol", Reason: "symbol too long: " + s, Err: ErrInvalidSymbol}
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '^', r == '=', r == '-':
		default:
			return "", &ValidationError{Field: "symbol", Reason: "invalid character in " + s, Err: ErrInvalidSymbol}
		}
	}
	return s, nil
}

// FetchStatus is the per-symbol fetch health readable by the UI.
type FetchStatus struct {
	Symbol        string    `json:"symbol"`
	FailureCount  int       `json:"failure_count"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Healthy reports whether the last attempt succeeded.
func (s FetchStatus) Healthy() bool {
	return s.LastErrorAt.IsZero() || s.LastSuccessAt.After(s.LastErrorAt)
}

// Data kinds of a cache entry and of a fetch record.
const (
	KindQuote   = "quote"
	KindHistory = "history"
)

// FetchRecord is one provider call outcome, kept by the recorder for later analysis.
type FetchRecord struct {
	Symbol   string
	Kind     string
	Period   Period
	OK       bool
	Error    string
	Price    string
	Duration time.Duration
	At       time.Time
}
