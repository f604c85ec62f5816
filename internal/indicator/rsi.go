package indicator

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI computes the Wilder-smoothed relative strength index over the given period.
// Requires at least period+1 closes.
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if err := checkWindow(len(closes), period, period+1); err != nil {
		return decimal.Zero, err
	}
	p := decimal.NewFromInt(int64(period))
	pMinus1 := decimal.NewFromInt(int64(period - 1))

	// Initial averages over the first period changes
	avgGain, avgLoss := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Sub(change)
		}
	}
	avgGain = avgGain.Div(p)
	avgLoss = avgLoss.Div(p)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		gain, loss := decimal.Zero, decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Neg()
		}
		avgGain = avgGain.Mul(pMinus1).Add(gain).Div(p)
		avgLoss = avgLoss.Mul(pMinus1).Add(loss).Div(p)
	}

	if avgLoss.IsZero() {
		return hundred, nil
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), nil
}
