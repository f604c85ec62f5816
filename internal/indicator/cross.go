package indicator

import (
	"github.com/shopspring/decimal"
)

// Cross is a moving average crossover signal.
type Cross int

const (
	CrossNone Cross = iota
	CrossGolden     // short average moved above the long one
	CrossDead       // short average moved below the long one
)

func (c Cross) String() string {
	switch c {
	case CrossGolden:
		return "golden"
	case CrossDead:
		return "dead"
	default:
		return "none"
	}
}

// LastCross compares the short and long SMA on the last two closes and
// reports whether they crossed on the most recent bar.
func LastCross(closes []decimal.Decimal, shortPeriod, longPeriod int) (Cross, error) {
	if shortPeriod <= 0 || shortPeriod >= longPeriod {
		return CrossNone, ErrInvalidPeriod
	}
	if err := checkWindow(len(closes), longPeriod, longPeriod+1); err != nil {
		return CrossNone, err
	}

	prevShort, _ := SMA(closes[:len(closes)-1], shortPeriod)
	prevLong, _ := SMA(closes[:len(closes)-1], longPeriod)
	currShort, _ := SMA(closes, shortPeriod)
	currLong, _ := SMA(closes, longPeriod)

	switch {
	case prevShort.LessThanOrEqual(prevLong) && currShort.GreaterThan(currLong):
		return CrossGolden, nil
	case prevShort.GreaterThanOrEqual(prevLong) && currShort.LessThan(currLong):
		return CrossDead, nil
	default:
		return CrossNone, nil
	}
}
