// Package mockfeed is an offline market-data provider. Prices follow a seeded
// random walk so runs are reproducible.
package mockfeed

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

const Name = "mock"

var initialPrices = map[string]float64{
	"^GSPC": 5200.00,
	"^IXIC": 16300.00,
	"^DJI":  39000.00,
	"AAPL":  190.00,
	"MSFT":  420.00,
	"GOOGL": 170.00,
	"AMZN":  180.00,
	"NVDA":  900.00,
	"TSLA":  175.00,
}

var names = map[string]string{
	"^GSPC": "S&P 500",
	"^IXIC": "NASDAQ Composite",
	"^DJI":  "Dow Jones Industrial Average",
}

// Feed implements domain.MarketDataProvider without network access.
type Feed struct {
	mu      sync.Mutex
	prices  map[string]float64
	prev    map[string]float64
	rngs    map[string]*rand.Rand
	failing map[string]error
	latency time.Duration
	now     func() time.Time
}

func New(latency time.Duration) *Feed {
	return &Feed{
		prices:  make(map[string]float64),
		prev:    make(map[string]float64),
		rngs:    make(map[string]*rand.Rand),
		failing: make(map[string]error),
		latency: latency,
		now:     time.Now,
	}
}

func (f *Feed) Name() string { return Name }

// SetFailure makes every fetch for symbol return err. A nil err clears it.
func (f *Feed) SetFailure(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, symbol)
		return
	}
	f.failing[symbol] = err
}

// FetchQuote advances the symbol's walk by one step, moving the price by up
// to 2% in either direction.
func (f *Feed) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := f.wait(ctx, symbol, domain.KindQuote); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if err := f.failing[symbol]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	rng := f.rngLocked(symbol)
	price, ok := f.prices[symbol]
	if !ok {
		price = basePrice(symbol)
	}
	prev := price
	change := price * (rng.Float64()*0.04 - 0.02)
	price = max(price+change, 0.01)
	f.prev[symbol] = prev
	f.prices[symbol] = price
	volume := int64(100_000 + rng.IntN(5_000_000))
	f.mu.Unlock()

	now := f.now()
	q := domain.NewQuote(symbol, round(price), round(prev), volume, now)
	if n, ok := names[symbol]; ok {
		q.Name = n
	}
	q.Currency = "USD"
	q.MarketTime = now
	return q, nil
}

// FetchHistory generates bars ending at the current time. The same symbol and
// period always produce the same closes.
func (f *Feed) FetchHistory(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) (*domain.HistoricalSeries, error) {
	if err := f.wait(ctx, symbol, domain.KindHistory); err != nil {
		return nil, err
	}
	f.mu.Lock()
	failErr := f.failing[symbol]
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	if interval == "" {
		interval = period.DefaultInterval()
	}
	step := intervalDuration(interval)
	count := barCount(period, step)

	rng := rand.New(rand.NewPCG(seed(symbol), seed(string(period))))
	end := f.now().Truncate(step)
	price := basePrice(symbol)

	bars := make([]domain.Bar, count)
	for i := range bars {
		open := price
		price = max(price*(1+rng.Float64()*0.04-0.02), 0.01)
		hi := max(open, price) * (1 + rng.Float64()*0.01)
		lo := min(open, price) * (1 - rng.Float64()*0.01)
		bars[i] = domain.Bar{
			Time:   end.Add(-time.Duration(count-1-i) * step),
			Open:   round(open),
			High:   round(hi),
			Low:    round(lo),
			Close:  round(price),
			Volume: int64(100_000 + rng.IntN(5_000_000)),
		}
	}
	return &domain.HistoricalSeries{
		Symbol:    symbol,
		Period:    period,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: f.now(),
	}, nil
}

func (f *Feed) wait(ctx context.Context, symbol, op string) error {
	if f.latency <= 0 {
		if err := ctx.Err(); err != nil {
			return &domain.FetchTransportError{Symbol: symbol, Op: op, Err: err}
		}
		return nil
	}
	timer := time.NewTimer(f.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &domain.FetchTransportError{Symbol: symbol, Op: op, Err: ctx.Err()}
	}
}

// Must be called with lock held
func (f *Feed) rngLocked(symbol string) *rand.Rand {
	r, ok := f.rngs[symbol]
	if !ok {
		r = rand.New(rand.NewPCG(seed(symbol), 0))
		f.rngs[symbol] = r
	}
	return r
}

func basePrice(symbol string) float64 {
	if p, ok := initialPrices[symbol]; ok {
		return p
	}
	return 10 + float64(seed(symbol)%49000)/100
}

func seed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func intervalDuration(i domain.Interval) time.Duration {
	switch i {
	case domain.Interval5m:
		return 5 * time.Minute
	case domain.Interval15m:
		return 15 * time.Minute
	case domain.Interval1h:
		return time.Hour
	case domain.Interval1wk:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func barCount(p domain.Period, step time.Duration) int {
	var span time.Duration
	day := 24 * time.Hour
	switch p {
	case domain.Period1D:
		span = day
	case domain.Period5D:
		span = 5 * day
	case domain.Period1M:
		span = 30 * day
	case domain.Period3M:
		span = 90 * day
	case domain.Period6M, domain.PeriodYTD:
		span = 180 * day
	case domain.Period1Y:
		span = 365 * day
	case domain.Period2Y:
		span = 730 * day
	case domain.Period5Y:
		span = 5 * 365 * day
	default:
		span = 10 * 365 * day
	}
	n := int(span / step)
	return max(min(n, 2000), 2)
}
