package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period is the lookback window of a historical series request.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"

	DefaultPeriod = Period1M
)

// Periods lists every supported period in ascending order.
var Periods = []Period{Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, Period2Y, Period5Y, PeriodYTD, PeriodMax}

// ParsePeriod validates a user supplied period. An empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriod, nil
	}
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "period", Reason: fmt.Sprintf("unsupported period %q", s)}
}

// Interval is the bar size of a historical series.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1wk Interval = "1wk"
)

// DefaultInterval picks the bar size the dashboard charts use for a period.
func (p Period) DefaultInterval() Interval {
	switch p {
	case Period1D:
		return Interval5m
	case Period5D:
		return Interval15m
	case Period5Y, PeriodMax:
		return Interval1wk
	default:
		return Interval1d
	}
}

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// HistoricalSeries holds OHLCV bars for one symbol and period, ascending by time.
// Like Quote it is replaced wholesale on refetch and never mutated in place.
type HistoricalSeries struct {
	Symbol    string    `json:"symbol"`
	Period    Period    `json:"period"`
	Interval  Interval  `json:"interval"`
	Bars      []Bar     `json:"bars"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Validate rejects empty series and series that are not strictly ascending.
func (h *HistoricalSeries) Validate() error {
	if len(h.Bars) == 0 {
		return &FetchDataError{Symbol: h.Symbol, Reason: "empty series"}
	}
	for i := 1; i < len(h.Bars); i++ {
		if !h.Bars[i].Time.After(h.Bars[i-1].Time) {
			return &FetchDataError{
				Symbol: h.Symbol,
				Reason: fmt.Sprintf("bars not ascending at index %d", i),
			}
		}
	}
	return nil
}

// Closes extracts the close prices in series order.
func (h *HistoricalSeries) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(h.Bars))
	for i, b := range h.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar.
func (h *HistoricalSeries) Last() (Bar, bool) {
	if len(h.Bars) == 0 {
		return Bar{}, false
	}
	return h.Bars[len(h.Bars)-1], true
}
