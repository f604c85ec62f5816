package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// FetchTransportError is a network or timeout failure talking to the market-data provider.
// It is retriable, but only on the next scheduled refresh cycle.
type FetchTransportError struct {
	Symbol string
	Op     string // "quote", "history"
	Err    error
}

func (e *FetchTransportError) Error() string {
	return fmt.Sprintf("fetch %s %s: transport: %v", e.Op, e.Symbol, e.Err)
}

func (e *FetchTransportError) IsRetriable() bool {
	return true
}

func (e *FetchTransportError) Unwrap() error {
	return e.Err
}

// FetchDataError is a malformed or empty provider payload. Not retriable.
type FetchDataError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *FetchDataError) Error() string {
	msg := "fetch " + e.Symbol + ": bad payload: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchDataError) IsRetriable() bool {
	return false
}

func (e *FetchDataError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input (position quantities, symbols, periods).
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return "validation error [" + e.Field + "]: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UnknownSymbolError is returned when data is requested for a symbol that was never registered.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return "unknown symbol: " + e.Symbol
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FetchErrorKind classifies an error for the per-symbol status ("transport", "data", "other").
func FetchErrorKind(err error) string {
	var te *FetchTransportError
	var de *FetchDataError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &de):
		return "data"
	default:
		return "other"
	}
}

var (
	// ErrNotYetAvailable is returned by non-blocking reads before the first fetch for a key completes.
	ErrNotYetAvailable = errors.New("not yet available")

	// ErrDuplicateSymbol is wrapped by the ValidationError returned when a watchlist already holds a symbol.
	ErrDuplicateSymbol = errors.New("duplicate symbol")

	// ErrInvalidSymbol is wrapped when a symbol is malformed.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrNotFound is returned when an alert or stored record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
