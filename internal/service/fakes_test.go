package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeProvider counts calls per key. Call number n (1-based, across all keys)
// blocks on hold[n] when present.
type fakeProvider struct {
	mu      sync.Mutex
	clock   *fakeClock
	prices  map[string]decimal.Decimal
	errs    map[string]error
	hold    map[int]chan struct{}
	calls   map[string]int
	total   int
	started chan string
}

func newFakeProvider(clock *fakeClock) *fakeProvider {
	return &fakeProvider{
		clock:   clock,
		prices:  make(map[string]decimal.Decimal),
		errs:    make(map[string]error),
		hold:    make(map[int]chan struct{}),
		calls:   make(map[string]int),
		started: make(chan string, 100),
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) setPrice(sym string, price int64) {
	p.mu.Lock()
	p.prices[sym] = decimal.NewFromInt(price)
	p.mu.Unlock()
}

func (p *fakeProvider) setErr(sym string, err error) {
	p.mu.Lock()
	p.errs[sym] = err
	p.mu.Unlock()
}

// holdCall makes call number n block until the returned func is called.
func (p *fakeProvider) holdCall(n int) func() {
	ch := make(chan struct{})
	p.mu.Lock()
	p.hold[n] = ch
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (p *fakeProvider) callCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[key]
}

func (p *fakeProvider) begin(ctx context.Context, key, sym string) (decimal.Decimal, error) {
	p.mu.Lock()
	p.total++
	p.calls[key]++
	gate := p.hold[p.total]
	p.mu.Unlock()

	p.started <- key
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[sym]; err != nil {
		return decimal.Zero, err
	}
	price, ok := p.prices[sym]
	if !ok {
		price = decimal.NewFromInt(100)
	}
	return price, nil
}

func (p *fakeProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	price, err := p.begin(ctx, "quote:"+symbol, symbol)
	if err != nil {
		return nil, err
	}
	return domain.NewQuote(symbol, price, price.Sub(decimal.NewFromInt(1)), 1000, p.clock.Now()), nil
}

func (p *fakeProvider) FetchHistory(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) (*domain.HistoricalSeries, error) {
	price, err := p.begin(ctx, "history:"+symbol+":"+string(period), symbol)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()
	bars := make([]domain.Bar, 5)
	for i := range bars {
		c := price.Add(decimal.NewFromInt(int64(i)))
		bars[i] = domain.Bar{Time: now.AddDate(0, 0, i-5), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return &domain.HistoricalSeries{Symbol: symbol, Period: period, Interval: interval, Bars: bars, FetchedAt: now}, nil
}

func waitStarted(t *testing.T, p *fakeProvider, key string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-p.started:
			if got == key {
				return
			}
		case <-timeout:
			t.Fatalf("fetch %s never started", key)
		}
	}
}

func newTestManager(t *testing.T, symbols ...string) (*StockDataManager, *fakeProvider, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	provider := newFakeProvider(clock)
	entries := make([]domain.WatchlistEntry, len(symbols))
	for i, s := range symbols {
		entries[i] = domain.WatchlistEntry{Symbol: s}
	}
	m := NewStockDataManager(provider, NewWatchlist(entries, nil), Options{
		Now:          clock.Now,
		FetchTimeout: 2 * time.Second,
	})
	t.Cleanup(m.Close)
	return m, provider, clock
}

type memWatchlistRepo struct {
	mu      sync.Mutex
	entries []domain.WatchlistEntry
	saves   int
}

func (r *memWatchlistRepo) LoadWatchlist(context.Context) ([]domain.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.WatchlistEntry(nil), r.entries...), nil
}

func (r *memWatchlistRepo) SaveWatchlist(_ context.Context, entries []domain.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]domain.WatchlistEntry(nil), entries...)
	r.saves++
	return nil
}

type memPositionRepo struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newMemPositionRepo() *memPositionRepo {
	return &memPositionRepo{positions: make(map[string]domain.Position)}
}

func (r *memPositionRepo) LoadPositions(context.Context) ([]domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	return out, nil
}

func (r *memPositionRepo) SavePosition(_ context.Context, p domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[p.Symbol] = p
	return nil
}

func (r *memPositionRepo) DeletePosition(_ context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, symbol)
	return nil
}
