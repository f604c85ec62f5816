package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Position is the holding of one symbol. CostBasis is the average cost per share.
// Current value and P&L are never stored: they are derived from the latest cached quote on read.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	OpenedAt  time.Time       `json:"opened_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CostValue returns quantity * cost basis.
func (p Position) CostValue() decimal.Decimal {
	return p.Quantity.Mul(p.CostBasis)
}

// Buy merges an additional lot using a quantity-weighted average cost.
func (p Position) Buy(quantity, price decimal.Decimal, at time.Time) Position {
	total := p.Quantity.Add(quantity)
	if total.IsZero() {
		return p
	}
	p.CostBasis = p.CostValue().Add(quantity.Mul(price)).Div(total)
	p.Quantity = total
	p.UpdatedAt = at
	return p
}

// Sell reduces the held quantity. The average cost of the remainder is unchanged.
func (p Position) Sell(quantity decimal.Decimal, at time.Time) Position {
	p.Quantity = p.Quantity.Sub(quantity)
	p.UpdatedAt = at
	return p
}

// IsClosed reports whether nothing is held anymore.
func (p Position) IsClosed() bool {
	return !p.Quantity.IsPositive()
}

// ValidateTrade checks the user supplied trade input.
func ValidateTrade(quantity, costBasis decimal.Decimal) error {
	if !quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero, got " + quantity.String()}
	}
	if costBasis.IsNegative() {
		return &ValidationError{Field: "cost_basis", Reason: "must not be negative, got " + costBasis.String()}
	}
	return nil
}

// Valuation is a position priced against the latest cached quote.
// When Known is false no quote was cached: every derived field is the zero value
// and means "no data", not "no gain".
type Valuation struct {
	Position      Position        `json:"position"`
	Known         bool            `json:"known"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostValue     decimal.Decimal `json:"cost_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percent"`
	QuoteAt       time.Time       `json:"quote_at,omitempty"`
}

// Valuate prices a position. A nil quote yields an unknown valuation.
func Valuate(p Position, q *Quote) Valuation {
	v := Valuation{Position: p, CostValue: p.CostValue()}
	if q == nil {
		return v
	}
	v.Known = true
	v.Price = q.Price
	v.QuoteAt = q.FetchedAt
	v.MarketValue = p.Quantity.Mul(q.Price)
	v.UnrealizedPnL = q.Price.Sub(p.CostBasis).Mul(p.Quantity)
	if !v.CostValue.IsZero() {
		v.PnLPercent = v.UnrealizedPnL.Div(v.CostValue).Mul(hundred)
	}
	return v
}

// PortfolioSummary aggregates known valuations. Positions without a cached quote
// are listed in Unknown and excluded from every total.
type PortfolioSummary struct {
	Positions       []Valuation     `json:"positions"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
	Unknown         []string        `json:"unknown"`
	AsOf            time.Time       `json:"as_of"`
}

// Complete reports whether every position could be priced.
func (s PortfolioSummary) Complete() bool {
	return len(s.Unknown) == 0
}

// Summarize folds valuations into a PortfolioSummary.
func Summarize(valuations []Valuation, asOf time.Time) PortfolioSummary {
	s := PortfolioSummary{
		Positions: valuations,
		Unknown:   []string{},
		AsOf:      asOf,
	}
	for _, v := range valuations {
		if !v.Known {
			s.Unknown = append(s.Unknown, v.Position.Symbol)
			continue
		}
		s.TotalValue = s.TotalValue.Add(v.MarketValue)
		s.TotalCost = s.TotalCost.Add(v.CostValue)
	}
	s.TotalPnL = s.TotalValue.Sub(s.TotalCost)
	if !s.TotalCost.IsZero() {
		s.TotalPnLPercent = s.TotalPnL.Div(s.TotalCost).Mul(hundred)
	}
	return s
}
