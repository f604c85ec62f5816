package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is a point-in-time price snapshot for a single symbol.
// A cached Quote is shared by pointer and must never be mutated; a refresh
// replaces it with a new value.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Currency      string          `json:"currency"`

	// Fundamentals are optional, providers fill what they have.
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	PERatio       *decimal.Decimal `json:"pe_ratio,omitempty"`
	DividendYield *decimal.Decimal `json:"dividend_yield,omitempty"`

	MarketTime time.Time `json:"market_time"` // Provider timestamp of the last trade
	FetchedAt  time.Time `json:"fetched_at"`  // When the snapshot was received
}

// NewQuote builds a Quote and derives the absolute and percent change against
// the previous close. ChangePercent is zero when the previous close is zero.
func NewQuote(symbol string, price, previousClose decimal.Decimal, volume int64, fetchedAt time.Time) *Quote {
	change := price.Sub(previousClose)
	changePct := decimal.Zero
	if !previousClose.IsZero() {
		changePct = change.Div(previousClose).Mul(hundred)
	}
	return &Quote{
		Symbol:        symbol,
		Name:          symbol,
		Price:         price,
		PreviousClose: previousClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		FetchedAt:     fetchedAt,
	}
}

// Age returns how old the snapshot is relative to now.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// Direction returns "positive", "negative", or "neutral"
func (q *Quote) Direction() string {
	if q.Change.IsPositive() {
		return "positive"
	}
	if q.Change.IsNegative() {
		return "negative"
	}
	return "neutral"
}

// Validate checks that a provider payload is usable.
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return &FetchDataError{Reason: "quote without symbol"}
	}
	if !q.Price.IsPositive() {
		return &FetchDataError{Symbol: q.Symbol, Reason: "non-positive price " + q.Price.String()}
	}
	if q.Volume < 0 {
		return &FetchDataError{Symbol: q.Symbol, Reason: "negative volume"}
	}
	return nil
}
