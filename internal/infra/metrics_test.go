package infra

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_RecordFetch(t *testing.T) {
	m := NewMetrics()

	m.RecordFetch(10*time.Millisecond, true)
	m.RecordFetch(20*time.Millisecond, true)
	m.RecordFetch(30*time.Millisecond, false)

	snap := m.Snapshot()
	if snap.FetchesOK != 2 || snap.FetchesFailed != 1 {
		t.Errorf("Expected 2 ok / 1 failed, got %d / %d", snap.FetchesOK, snap.FetchesFailed)
	}

	// Average latency: (10 + 20 + 30) / 3 = 20ms
	if snap.AvgFetchMs != 20 {
		t.Errorf("Expected avg latency 20ms, got %v", snap.AvgFetchMs)
	}
}

func TestMetrics_Cache(t *testing.T) {
	m := &Metrics{}
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheStale()
	m.RecordCacheMiss()
	m.RecordCoalesced()

	snap := m.Snapshot()
	if snap.CacheHits != 2 || snap.CacheStale != 1 || snap.CacheMisses != 1 || snap.Coalesced != 1 {
		t.Errorf("unexpected cache counters: %+v", snap)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.WSClients != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.WSClients)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.WSClients != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.WSClients)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := &Metrics{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordFetch(time.Millisecond, true)
			m.RecordCacheMiss()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.FetchesOK != 50 || snap.CacheMisses != 50 {
		t.Errorf("lost updates: %+v", snap)
	}

	m.Reset()
	if m.Snapshot().FetchesOK != 0 {
		t.Error("Reset should clear counters")
	}
}
