package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	fetchesOK     atomic.Uint64
	fetchesFailed atomic.Uint64
	coalesced     atomic.Uint64
	cacheHits     atomic.Uint64
	cacheStale    atomic.Uint64
	cacheMisses   atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	wsClients atomic.Int32

	startedAt time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordFetch records one provider call and its latency.
func (m *Metrics) RecordFetch(latency time.Duration, ok bool) {
	if ok {
		m.fetchesOK.Add(1)
	} else {
		m.fetchesFailed.Add(1)
	}
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

func (m *Metrics) RecordCacheHit()   { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheStale() { m.cacheStale.Add(1) }
func (m *Metrics) RecordCacheMiss()  { m.cacheMisses.Add(1) }

// RecordCoalesced records a caller that joined a fetch already in flight.
func (m *Metrics) RecordCoalesced() { m.coalesced.Add(1) }

// IncrementConnections increments active websocket clients by 1.
func (m *Metrics) IncrementConnections() {
	m.wsClients.Add(1)
}

// DecrementConnections decrements active websocket clients by 1.
func (m *Metrics) DecrementConnections() {
	m.wsClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	FetchesOK     uint64    `json:"fetches_ok"`
	FetchesFailed uint64    `json:"fetches_failed"`
	Coalesced     uint64    `json:"coalesced"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheStale    uint64    `json:"cache_stale"`
	CacheMisses   uint64    `json:"cache_misses"`
	AvgFetchMs    float64   `json:"avg_fetch_ms"`
	WSClients     int32     `json:"ws_clients"`
	Uptime        string    `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avg float64
	if count := m.latencyCount.Load(); count > 0 {
		avg = float64(m.latencySumNs.Load()) / float64(count) / float64(time.Millisecond)
	}

	snap := MetricsSnapshot{
		FetchesOK:     m.fetchesOK.Load(),
		FetchesFailed: m.fetchesFailed.Load(),
		Coalesced:     m.coalesced.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheStale:    m.cacheStale.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		AvgFetchMs:    avg,
		WSClients:     m.wsClients.Load(),
		Timestamp:     time.Now(),
	}
	if !m.startedAt.IsZero() {
		snap.Uptime = time.Since(m.startedAt).Truncate(time.Second).String()
	}
	return snap
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.fetchesOK.Store(0)
	m.fetchesFailed.Store(0)
	m.coalesced.Store(0)
	m.cacheHits.Store(0)
	m.cacheStale.Store(0)
	m.cacheMisses.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.wsClients.Store(0)
}
