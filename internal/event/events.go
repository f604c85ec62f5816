package event

import (
	"time"

	"stock_dash/internal/domain"
)

// Type identifies what happened.
type Type string

const (
	QuoteUpdated   Type = "quote_updated"
	HistoryUpdated Type = "history_updated"
	FetchFailed    Type = "fetch_failed"
	AlertTriggered Type = "alert_triggered"
)

// Event is the message fanned out to subscribers. Only the fields relevant to
// Type are set. Payload pointers are shared with the cache and must not be mutated.
type Event struct {
	Seq    uint64    `json:"seq"`
	Type   Type      `json:"type"`
	Symbol string    `json:"symbol"`
	Ts     time.Time `json:"ts"`

	Quote  *domain.Quote     `json:"quote,omitempty"`
	Period domain.Period     `json:"period,omitempty"`
	Bars   int               `json:"bars,omitempty"`
	Alert  *domain.AlertView `json:"alert,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func NewQuoteUpdated(q *domain.Quote) Event {
	return Event{Type: QuoteUpdated, Symbol: q.Symbol, Ts: q.FetchedAt, Quote: q}
}

func NewHistoryUpdated(h *domain.HistoricalSeries) Event {
	return Event{Type: HistoryUpdated, Symbol: h.Symbol, Ts: h.FetchedAt, Period: h.Period, Bars: len(h.Bars)}
}

func NewFetchFailed(symbol string, err error, at time.Time) Event {
	return Event{
		Type:      FetchFailed,
		Symbol:    symbol,
		Ts:        at,
		Error:     err.Error(),
		ErrorKind: domain.FetchErrorKind(err),
	}
}

func NewAlertTriggered(a domain.AlertView, price *domain.Quote, at time.Time) Event {
	return Event{Type: AlertTriggered, Symbol: a.Symbol, Ts: at, Quote: price, Alert: &a}
}
