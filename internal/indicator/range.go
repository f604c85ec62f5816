package indicator

import (
	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

// PriceRange is the high/low band of a series and where the last close sits in it.
type PriceRange struct {
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Position decimal.Decimal `json:"position"` // 0 at the low, 1 at the high
}

// Range scans the bars and returns the band. Position is 0.5 for a flat series.
func Range(bars []domain.Bar) (PriceRange, error) {
	if len(bars) == 0 {
		return PriceRange{}, ErrInsufficientData
	}
	r := PriceRange{High: bars[0].High, Low: bars[0].Low}
	for _, b := range bars[1:] {
		r.High = decimal.Max(r.High, b.High)
		r.Low = decimal.Min(r.Low, b.Low)
	}

	span := r.High.Sub(r.Low)
	if !span.IsPositive() {
		r.Position = decimal.NewFromFloat(0.5)
		return r, nil
	}
	pos := bars[len(bars)-1].Close.Sub(r.Low).Div(span)
	r.Position = decimal.Min(decimal.Max(pos, decimal.Zero), decimal.NewFromInt(1))
	return r, nil
}
