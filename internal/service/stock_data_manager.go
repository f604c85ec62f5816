package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"stock_dash/internal/domain"
	"stock_dash/internal/event"
)

const (
	DefaultQuoteTTL     = 60 * time.Second
	DefaultHistoryTTL   = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultConcurrency  = 5
)

// Metrics receives cache and fetch observations. infra.Metrics implements it.
type Metrics interface {
	RecordFetch(latency time.Duration, ok bool)
	RecordCacheHit()
	RecordCacheStale()
	RecordCacheMiss()
	RecordCoalesced()
}

// Publisher receives cache change notifications. event.Bus implements it.
type Publisher interface {
	Publish(ev event.Event)
}

// Options configures a StockDataManager. Zero values select the defaults.
type Options struct {
	QuoteTTL     time.Duration
	HistoryTTL   time.Duration
	FetchTimeout time.Duration
	Concurrency  int // RefreshAll parallelism

	Now       func() time.Time
	Logger    *slog.Logger
	Metrics   Metrics
	Recorder  domain.FetchRecorder
	Publisher Publisher
}

func (o *Options) setDefaults() {
	if o.QuoteTTL <= 0 {
		o.QuoteTTL = DefaultQuoteTTL
	}
	if o.HistoryTTL <= 0 {
		o.HistoryTTL = DefaultHistoryTTL
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Publisher == nil {
		o.Publisher = noopPublisher{}
	}
}

type cacheKey struct {
	symbol string
	kind   string
	period domain.Period
}

func (k cacheKey) String() string {
	if k.period == "" {
		return k.kind + ":" + k.symbol
	}
	return k.kind + ":" + k.symbol + ":" + string(k.period)
}

func quoteKey(symbol string) cacheKey {
	return cacheKey{symbol: symbol, kind: domain.KindQuote}
}

func historyKey(symbol string, period domain.Period) cacheKey {
	return cacheKey{symbol: symbol, kind: domain.KindHistory, period: period}
}

// cacheEntry values are immutable; a refresh swaps the whole entry.
type cacheEntry struct {
	quote     *domain.Quote
	series    *domain.HistoricalSeries
	fetchedAt time.Time
	ttl       time.Duration
	gen       uint64
}

func (e *cacheEntry) value() any {
	if e.quote != nil {
		return e.quote
	}
	return e.series
}

// RefreshFailure is one symbol that failed during RefreshAll.
type RefreshFailure struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// RefreshReport summarizes one RefreshAll cycle.
type RefreshReport struct {
	Refreshed []string         `json:"refreshed"`
	Failed    []RefreshFailure `json:"failed"`
	Duration  time.Duration    `json:"duration"`
}

// SymbolSnapshot is the non-blocking view of one tracked symbol.
type SymbolSnapshot struct {
	Symbol      string             `json:"symbol"`
	DisplayName string             `json:"display_name"`
	Pinned      bool               `json:"pinned"`
	Watchlisted bool               `json:"watchlisted"`
	Quote       *domain.Quote      `json:"quote,omitempty"`
	Stale       bool               `json:"stale"`
	Status      domain.FetchStatus `json:"status"`
}

// StockDataManager owns the quote and history cache of every tracked symbol.
// Reads never wait on a fetch when any cached value exists. Fetches for the same
// key are coalesced and run on the manager's own context, so a caller giving up
// does not cancel a fetch other callers are waiting on.
type StockDataManager struct {
	provider  domain.MarketDataProvider
	watchlist *Watchlist
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	group singleflight.Group
	gen   atomic.Uint64

	mu       sync.RWMutex
	cache    map[cacheKey]*cacheEntry
	status   map[string]*domain.FetchStatus
	pinned   map[string]int
	pinOrder []string
	labels   map[string]string
	epochs   map[string]uint64
}

// NewStockDataManager creates a manager for the watchlist symbols.
// Call Close to cancel in-flight fetches.
func NewStockDataManager(provider domain.MarketDataProvider, watchlist *Watchlist, opts Options) *StockDataManager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &StockDataManager{
		provider:  provider,
		watchlist: watchlist,
		opts:      opts,
		logger:    opts.Logger.With("module", "stock_data"),
		ctx:       ctx,
		cancel:    cancel,
		cache:     make(map[cacheKey]*cacheEntry),
		status:    make(map[string]*domain.FetchStatus),
		pinned:    make(map[string]int),
		labels:    make(map[string]string),
		epochs:    make(map[string]uint64),
	}
}

// Close cancels every in-flight fetch. Cached values stay readable.
func (m *StockDataManager) Close() {
	m.cancel()
}

// ======================================================================================
// Reads
// ======================================================================================

// GetQuote returns the quote for a tracked symbol.
// Fresh: the cached pointer. Stale: the cached pointer, with a background refresh
// started or joined. Missing: blocks on the (possibly shared) fetch or ctx.
func (m *StockDataManager) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	sym, err := m.resolve(symbol)
	if err != nil {
		return nil, err
	}
	v, err := m.get(ctx, quoteKey(sym), m.opts.QuoteTTL)
	if err != nil {
		return nil, err
	}
	return v.(*domain.Quote), nil
}

// GetHistory has the same contract as GetQuote, keyed additionally by period.
func (m *StockDataManager) GetHistory(ctx context.Context, symbol string, period domain.Period) (*domain.HistoricalSeries, error) {
	sym, err := m.resolve(symbol)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = domain.DefaultPeriod
	}
	v, err := m.get(ctx, historyKey(sym, period), m.opts.HistoryTTL)
	if err != nil {
		return nil, err
	}
	return v.(*domain.HistoricalSeries), nil
}

// CachedQuote never blocks and never fetches. It returns the cached quote,
// possibly stale, or ErrNotYetAvailable.
func (m *StockDataManager) CachedQuote(symbol string) (*domain.Quote, error) {
	sym, err := m.resolve(symbol)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.cache[quoteKey(sym)]; ok {
		return e.quote, nil
	}
	return nil, fmt.Errorf("quote %s: %w", sym, domain.ErrNotYetAvailable)
}

func (m *StockDataManager) get(ctx context.Context, key cacheKey, ttl time.Duration) (any, error) {
	m.mu.RLock()
	e, ok := m.cache[key]
	m.mu.RUnlock()

	if ok {
		if m.opts.Now().Sub(e.fetchedAt) < ttl {
			m.opts.Metrics.RecordCacheHit()
			return e.value(), nil
		}
		m.opts.Metrics.RecordCacheStale()
		m.fetch(key)
		return e.value(), nil
	}

	m.opts.Metrics.RecordCacheMiss()
	return m.wait(ctx, key)
}

// fetch starts the fetch for key or joins the one in flight.
func (m *StockDataManager) fetch(key cacheKey) <-chan singleflight.Result {
	return m.group.DoChan(key.String(), func() (any, error) {
		return m.fetchAndStore(key)
	})
}

func (m *StockDataManager) wait(ctx context.Context, key cacheKey) (any, error) {
	select {
	case res := <-m.fetch(key):
		if res.Shared {
			m.opts.Metrics.RecordCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ======================================================================================
// Fetch
// ======================================================================================

func (m *StockDataManager) fetchAndStore(key cacheKey) (any, error) {
	gen := m.gen.Add(1)
	m.mu.RLock()
	epoch := m.epochs[key.symbol]
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.FetchTimeout)
	defer cancel()

	start := m.opts.Now()
	var (
		fresh     *cacheEntry
		fetchErr  error
		priceText string
	)
	switch key.kind {
	case domain.KindQuote:
		q, err := m.provider.FetchQuote(ctx, key.symbol)
		if err == nil && q == nil {
			err = &domain.FetchDataError{Symbol: key.symbol, Reason: "empty quote"}
		}
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			fetchErr = err
			break
		}
		if q.FetchedAt.IsZero() {
			q.FetchedAt = m.opts.Now()
		}
		priceText = q.Price.String()
		fresh = &cacheEntry{quote: q, fetchedAt: q.FetchedAt, ttl: m.opts.QuoteTTL, gen: gen}
	case domain.KindHistory:
		h, err := m.provider.FetchHistory(ctx, key.symbol, key.period, key.period.DefaultInterval())
		if err == nil && h == nil {
			err = &domain.FetchDataError{Symbol: key.symbol, Reason: "empty series"}
		}
		if err == nil {
			err = h.Validate()
		}
		if err != nil {
			fetchErr = err
			break
		}
		if h.FetchedAt.IsZero() {
			h.FetchedAt = m.opts.Now()
		}
		if last, ok := h.Last(); ok {
			priceText = last.Close.String()
		}
		fresh = &cacheEntry{series: h, fetchedAt: h.FetchedAt, ttl: m.opts.HistoryTTL, gen: gen}
	default:
		return nil, fmt.Errorf("unknown cache kind %q", key.kind)
	}
	elapsed := m.opts.Now().Sub(start)

	if fetchErr != nil {
		err := classifyFetchError(key, fetchErr)
		m.onFailure(key, err, elapsed)
		return nil, err
	}

	winner, stored := m.store(key, epoch, fresh)
	m.opts.Metrics.RecordFetch(elapsed, true)
	m.record(domain.FetchRecord{
		Symbol:   key.symbol,
		Kind:     key.kind,
		Period:   key.period,
		OK:       true,
		Price:    priceText,
		Duration: elapsed,
		At:       fresh.fetchedAt,
	})
	if stored {
		if fresh.quote != nil {
			m.opts.Publisher.Publish(event.NewQuoteUpdated(fresh.quote))
		} else {
			m.opts.Publisher.Publish(event.NewHistoryUpdated(fresh.series))
		}
	}
	return winner.value(), nil
}

// store caches the result unless a newer generation or a newer provider
// timestamp is already cached, or the symbol was untracked since the fetch began.
// It returns the entry waiters should receive.
func (m *StockDataManager) store(key cacheKey, epoch uint64, fresh *cacheEntry) (*cacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.trackedLocked(key.symbol) || m.epochs[key.symbol] != epoch {
		m.logger.Debug("Discarding fetch for untracked symbol", "key", key.String())
		return fresh, false
	}
	if cur, ok := m.cache[key]; ok && (cur.gen > fresh.gen || cur.fetchedAt.After(fresh.fetchedAt)) {
		m.logger.Debug("Discarding out-of-order fetch",
			"key", key.String(), "gen", fresh.gen, "cached_gen", cur.gen)
		return cur, false
	}

	m.cache[key] = fresh
	st := m.statusLocked(key.symbol)
	st.LastSuccessAt = m.opts.Now()
	if key.kind == domain.KindQuote {
		st.FailureCount = 0
	}
	return fresh, true
}

func (m *StockDataManager) onFailure(key cacheKey, err error, elapsed time.Duration) {
	now := m.opts.Now()

	m.mu.Lock()
	failures := 0
	if m.trackedLocked(key.symbol) {
		st := m.statusLocked(key.symbol)
		st.FailureCount++
		st.LastError = err.Error()
		st.LastErrorKind = domain.FetchErrorKind(err)
		st.LastErrorAt = now
		failures = st.FailureCount
	}
	m.mu.Unlock()

	m.logger.Warn("⚠️ Fetch failed",
		"key", key.String(),
		"kind", domain.FetchErrorKind(err),
		"failures", failures,
		"error", err)
	m.opts.Metrics.RecordFetch(elapsed, false)
	m.opts.Publisher.Publish(event.NewFetchFailed(key.symbol, err, now))
	m.record(domain.FetchRecord{
		Symbol:   key.symbol,
		Kind:     key.kind,
		Period:   key.period,
		Error:    err.Error(),
		Duration: elapsed,
		At:       now,
	})
}

func (m *StockDataManager) record(rec domain.FetchRecord) {
	if m.opts.Recorder == nil {
		return
	}
	if err := m.opts.Recorder.Record(m.ctx, rec); err != nil {
		m.logger.Debug("Failed to record fetch", "symbol", rec.Symbol, "error", err)
	}
}

// classifyFetchError maps provider errors onto the fetch error taxonomy.
func classifyFetchError(key cacheKey, err error) error {
	var te *domain.FetchTransportError
	var de *domain.FetchDataError
	switch {
	case errors.As(err, &te), errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &domain.FetchTransportError{Symbol: key.symbol, Op: key.kind, Err: err}
	default:
		return err
	}
}

// ======================================================================================
// Refresh
// ======================================================================================

// RefreshAll refetches the quote of every tracked symbol regardless of TTL, with
// bounded concurrency. Fetches already in flight are joined. Failures are logged
// and reported but never returned; cached values of failed symbols are kept.
func (m *StockDataManager) RefreshAll(ctx context.Context) RefreshReport {
	start := time.Now()
	symbols := m.Symbols()
	errs := make([]error, len(symbols))

	sem := make(chan struct{}, m.opts.Concurrency)
	var wg sync.WaitGroup
	for i, sym := range symbols {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			_, errs[i] = m.wait(ctx, quoteKey(sym))
		}(i, sym)
	}
	wg.Wait()

	report := RefreshReport{Refreshed: []string{}, Failed: []RefreshFailure{}}
	for i, sym := range symbols {
		if errs[i] == nil {
			report.Refreshed = append(report.Refreshed, sym)
			continue
		}
		kind := domain.FetchErrorKind(errs[i])
		if errors.Is(errs[i], context.Canceled) || errors.Is(errs[i], context.DeadlineExceeded) {
			kind = "cancelled"
		}
		report.Failed = append(report.Failed, RefreshFailure{Symbol: sym, Kind: kind, Error: errs[i].Error()})
	}
	report.Duration = time.Since(start)

	m.logger.Info("🔄 Refresh cycle complete",
		"refreshed", len(report.Refreshed),
		"failed", len(report.Failed),
		"duration", report.Duration)
	return report
}

// ======================================================================================
// Tracked symbols
// ======================================================================================

// Track pins a symbol that is not necessarily in the watchlist (index cards,
// open positions). Pins are counted; each Track needs a matching Untrack.
func (m *StockDataManager) Track(symbol, displayName string) (string, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned[sym] == 0 {
		m.pinOrder = append(m.pinOrder, sym)
	}
	m.pinned[sym]++
	if displayName != "" {
		m.labels[sym] = displayName
	}
	return sym, nil
}

// Untrack drops one pin. The cache is evicted once nothing tracks the symbol.
func (m *StockDataManager) Untrack(symbol string) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned[sym] == 0 {
		return
	}
	m.pinned[sym]--
	if m.pinned[sym] > 0 {
		return
	}
	delete(m.pinned, sym)
	delete(m.labels, sym)
	m.pinOrder = slices.DeleteFunc(m.pinOrder, func(s string) bool { return s == sym })
	m.evictIfUntrackedLocked(sym)
}

// AddToWatchlist adds a symbol to the watchlist. Its data is fetched lazily
// or on the next refresh cycle.
func (m *StockDataManager) AddToWatchlist(ctx context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	added, err := m.watchlist.Add(ctx, entry)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}
	m.logger.Info("➕ Symbol added to watchlist", "symbol", added.Symbol)
	return added, nil
}

// RemoveFromWatchlist removes a symbol and evicts its cached data unless it is pinned.
// A fetch still in flight for the symbol is returned to its waiters but not cached.
func (m *StockDataManager) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if err := m.watchlist.Remove(ctx, sym); err != nil {
		return err
	}
	m.mu.Lock()
	m.evictIfUntrackedLocked(sym)
	m.mu.Unlock()
	m.logger.Info("➖ Symbol removed from watchlist", "symbol", sym)
	return nil
}

// Must be called with lock held
func (m *StockDataManager) evictIfUntrackedLocked(sym string) {
	if m.trackedLocked(sym) {
		return
	}
	for key := range m.cache {
		if key.symbol == sym {
			delete(m.cache, key)
			m.group.Forget(key.String())
		}
	}
	m.group.Forget(quoteKey(sym).String())
	delete(m.status, sym)
	m.epochs[sym]++
}

// Must be called with lock held
func (m *StockDataManager) trackedLocked(sym string) bool {
	return m.pinned[sym] > 0 || m.watchlist.Contains(sym)
}

// Must be called with lock held
func (m *StockDataManager) statusLocked(sym string) *domain.FetchStatus {
	st, ok := m.status[sym]
	if !ok {
		st = &domain.FetchStatus{Symbol: sym}
		m.status[sym] = st
	}
	return st
}

func (m *StockDataManager) resolve(symbol string) (string, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trackedLocked(sym) {
		return "", &domain.UnknownSymbolError{Symbol: sym}
	}
	return sym, nil
}

// IsTracked reports whether the symbol is in the watchlist or pinned.
func (m *StockDataManager) IsTracked(symbol string) bool {
	_, err := m.resolve(symbol)
	return err == nil
}

// Symbols returns the tracked symbols in refresh order: watchlist first, then pins.
func (m *StockDataManager) Symbols() []string {
	out := m.watchlist.Symbols()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sym := range m.pinOrder {
		if !slices.Contains(out, sym) {
			out = append(out, sym)
		}
	}
	return out
}

// Status returns the fetch health of a symbol.
func (m *StockDataManager) Status(symbol string) (domain.FetchStatus, bool) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.FetchStatus{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[sym]
	if !ok {
		return domain.FetchStatus{Symbol: sym}, m.trackedLocked(sym)
	}
	return *st, true
}

// Statuses returns the fetch health of every tracked symbol in refresh order.
func (m *StockDataManager) Statuses() []domain.FetchStatus {
	symbols := m.Symbols()
	out := make([]domain.FetchStatus, 0, len(symbols))
	for _, sym := range symbols {
		st, _ := m.Status(sym)
		out = append(out, st)
	}
	return out
}

// Snapshot returns cached quotes and statuses for every tracked symbol without fetching.
func (m *StockDataManager) Snapshot() []SymbolSnapshot {
	entries := m.watchlist.Entries()
	now := m.opts.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SymbolSnapshot, 0, len(entries)+len(m.pinOrder))
	seen := make(map[string]bool, len(entries))
	add := func(sym, label string, pinned, listed bool) {
		snap := SymbolSnapshot{Symbol: sym, DisplayName: label, Pinned: pinned, Watchlisted: listed, Status: domain.FetchStatus{Symbol: sym}}
		if e, ok := m.cache[quoteKey(sym)]; ok {
			snap.Quote = e.quote
			snap.Stale = now.Sub(e.fetchedAt) >= e.ttl
		}
		if st, ok := m.status[sym]; ok {
			snap.Status = *st
		}
		out = append(out, snap)
		seen[sym] = true
	}
	for _, e := range entries {
		add(e.Symbol, e.Label(), m.pinned[e.Symbol] > 0, true)
	}
	for _, sym := range m.pinOrder {
		if seen[sym] {
			continue
		}
		label := m.labels[sym]
		if label == "" {
			label = sym
		}
		add(sym, label, true, false)
	}
	return out
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(time.Duration, bool) {}
func (noopMetrics) RecordCacheHit()                 {}
func (noopMetrics) RecordCacheStale()               {}
func (noopMetrics) RecordCacheMiss()                {}
func (noopMetrics) RecordCoalesced()                {}

type noopPublisher struct{}

func (noopPublisher) Publish(event.Event) {}
