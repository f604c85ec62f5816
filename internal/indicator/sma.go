package indicator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPeriod    = errors.New("period must be positive")
	ErrInsufficientData = errors.New("not enough data")
)

func checkWindow(n, period, need int) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	if n < need {
		return fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, n, need)
	}
	return nil
}

// SMA is the simple moving average of the last period closes.
func SMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if err := checkWindow(len(closes), period, period); err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, closes[len(closes)-period:]...).Div(decimal.NewFromInt(int64(period))), nil
}

// SMASeries returns the moving average at every point that has a full window.
// out[i] corresponds to closes[i+period-1].
// The sum is rolled forward so the cost is linear in len(closes).
func SMASeries(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkWindow(len(closes), period, period); err != nil {
		return nil, err
	}
	n := decimal.NewFromInt(int64(period))
	out := make([]decimal.Decimal, 0, len(closes)-period+1)

	sum := decimal.Sum(decimal.Zero, closes[:period]...)
	out = append(out, sum.Div(n))
	for i := period; i < len(closes); i++ {
		sum = sum.Add(closes[i]).Sub(closes[i-period])
		out = append(out, sum.Div(n))
	}
	return out, nil
}
