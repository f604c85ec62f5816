package service

import (
	"context"
	"errors"
	"testing"

	"stock_dash/internal/domain"
)

func defaultEntries() []domain.WatchlistEntry {
	return []domain.WatchlistEntry{{Symbol: "AAPL"}, {Symbol: "msft"}, {Symbol: "AAPL"}, {Symbol: "bad symbol"}}
}

func TestWatchlist_AddRemove(t *testing.T) {
	w := NewWatchlist(defaultEntries(), nil)
	ctx := context.Background()

	if got := w.Symbols(); len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Fatalf("defaults = %v, want [AAPL MSFT]", got)
	}

	_, err := w.Add(ctx, domain.WatchlistEntry{Symbol: "aapl"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, domain.ErrDuplicateSymbol) {
		t.Errorf("duplicate Add = %v, want ValidationError wrapping ErrDuplicateSymbol", err)
	}

	entry, err := w.Add(ctx, domain.WatchlistEntry{Symbol: "nvda", DisplayName: "Nvidia"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if entry.Symbol != "NVDA" || entry.Label() != "Nvidia" {
		t.Errorf("entry = %+v", entry)
	}

	var unknown *domain.UnknownSymbolError
	if err := w.Remove(ctx, "TSLA"); !errors.As(err, &unknown) {
		t.Errorf("Remove absent = %v, want UnknownSymbolError", err)
	}
	if err := w.Remove(ctx, "msft"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if w.Contains("MSFT") || w.Len() != 2 {
		t.Errorf("after remove: %v", w.Symbols())
	}
}

func TestWatchlist_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store falls back to defaults", func(t *testing.T) {
		repo := &memWatchlistRepo{}
		w := NewWatchlist(defaultEntries(), repo)
		if err := w.Load(ctx); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if w.Len() != 2 {
			t.Errorf("Len() = %d, want 2", w.Len())
		}
		if len(repo.entries) != 2 {
			t.Errorf("defaults should be written back, repo has %d", len(repo.entries))
		}
	})

	t.Run("stored list replaces defaults", func(t *testing.T) {
		repo := &memWatchlistRepo{entries: []domain.WatchlistEntry{{Symbol: "TSLA"}, {Symbol: "META"}}}
		w := NewWatchlist(defaultEntries(), repo)
		if err := w.Load(ctx); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got := w.Symbols(); len(got) != 2 || got[0] != "TSLA" {
			t.Errorf("Symbols() = %v, want [TSLA META]", got)
		}

		if _, err := w.Add(ctx, domain.WatchlistEntry{Symbol: "AMD"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if len(repo.entries) != 3 || repo.entries[2].Symbol != "AMD" {
			t.Errorf("repository not updated: %+v", repo.entries)
		}
	})
}
