package domain

import (
	"context"
)

// MarketDataProvider is the external quote and history source.
// Implementations map network failures to FetchTransportError and unusable
// payloads to FetchDataError. They never retry.
type MarketDataProvider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
	FetchHistory(ctx context.Context, symbol string, period Period, interval Interval) (*HistoricalSeries, error)
}

// WatchlistRepository persists the ordered watchlist.
type WatchlistRepository interface {
	LoadWatchlist(ctx context.Context) ([]WatchlistEntry, error)
	SaveWatchlist(ctx context.Context, entries []WatchlistEntry) error
}

// PositionRepository persists portfolio positions.
type PositionRepository interface {
	LoadPositions(ctx context.Context) ([]Position, error)
	SavePosition(ctx context.Context, p Position) error
	DeletePosition(ctx context.Context, symbol string) error
}

// FetchRecorder keeps a log of provider calls.
type FetchRecorder interface {
	Record(ctx context.Context, rec FetchRecord) error
	Close() error
}
