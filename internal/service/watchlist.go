package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"stock_dash/internal/domain"
)

// Watchlist is an ordered set of unique symbols.
type Watchlist struct {
	mu       sync.RWMutex
	entries  []domain.WatchlistEntry
	repo     domain.WatchlistRepository
	defaults []domain.WatchlistEntry
}

// NewWatchlist creates a watchlist seeded with defaults. repo may be nil.
// Invalid or duplicate defaults are skipped.
func NewWatchlist(defaults []domain.WatchlistEntry, repo domain.WatchlistRepository) *Watchlist {
	w := &Watchlist{repo: repo}
	for _, e := range defaults {
		sym, err := domain.NormalizeSymbol(e.Symbol)
		if err != nil || w.indexLocked(sym) >= 0 {
			continue
		}
		e.Symbol = sym
		w.entries = append(w.entries, e)
	}
	w.defaults = slices.Clone(w.entries)
	return w
}

// Load restores the persisted watchlist. An empty store keeps the defaults
// and writes them back so the next start reads the same list.
func (w *Watchlist) Load(ctx context.Context) error {
	if w.repo == nil {
		return nil
	}
	entries, err := w.repo.LoadWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(entries) == 0 {
		w.entries = slices.Clone(w.defaults)
		return w.repo.SaveWatchlist(ctx, w.entries)
	}
	w.entries = w.entries[:0]
	for _, e := range entries {
		if w.indexLocked(e.Symbol) < 0 {
			w.entries = append(w.entries, e)
		}
	}
	return nil
}

// Add appends a symbol. Duplicates are rejected with a ValidationError wrapping ErrDuplicateSymbol.
func (w *Watchlist) Add(ctx context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	sym, err := domain.NormalizeSymbol(entry.Symbol)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}
	entry.Symbol = sym

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexLocked(sym) >= 0 {
		return domain.WatchlistEntry{}, &domain.ValidationError{
			Field:  "symbol",
			Reason: sym + " already in watchlist",
			Err:    domain.ErrDuplicateSymbol,
		}
	}
	w.entries = append(w.entries, entry)
	if err := w.persistLocked(ctx); err != nil {
		w.entries = w.entries[:len(w.entries)-1]
		return domain.WatchlistEntry{}, err
	}
	return entry, nil
}

// Remove deletes a symbol. An absent symbol is an UnknownSymbolError.
func (w *Watchlist) Remove(ctx context.Context, symbol string) error {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.indexLocked(sym)
	if idx < 0 {
		return &domain.UnknownSymbolError{Symbol: sym}
	}
	prev := slices.Clone(w.entries)
	w.entries = slices.Delete(w.entries, idx, idx+1)
	if err := w.persistLocked(ctx); err != nil {
		w.entries = prev
		return err
	}
	return nil
}

func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.indexLocked(symbol) >= 0
}

// Entries returns a copy in watchlist order.
func (w *Watchlist) Entries() []domain.WatchlistEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.entries)
}

// Symbols returns the symbols in watchlist order.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.Symbol
	}
	return out
}

func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Must be called with lock held
func (w *Watchlist) indexLocked(symbol string) int {
	return slices.IndexFunc(w.entries, func(e domain.WatchlistEntry) bool { return e.Symbol == symbol })
}

// Must be called with lock held
func (w *Watchlist) persistLocked(ctx context.Context) error {
	if w.repo == nil {
		return nil
	}
	if err := w.repo.SaveWatchlist(ctx, w.entries); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	return nil
}
