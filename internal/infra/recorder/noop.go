package recorder

import (
	"context"

	"stock_dash/internal/domain"
)

// NoopRecorder discards all records. Used when recording is disabled.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, domain.FetchRecord) error { return nil }

func (NoopRecorder) Recent(context.Context, string, int) ([]domain.FetchRecord, error) {
	return nil, nil
}

func (NoopRecorder) Close() error { return nil }

// Open returns a SQLite recorder for path, or a NoopRecorder when path is empty.
func Open(path string) (Recorder, error) {
	if path == "" {
		return NoopRecorder{}, nil
	}
	return NewSQLiteRecorder(path)
}

// Recorder is a FetchRecorder that can also be queried.
type Recorder interface {
	domain.FetchRecorder
	Recent(ctx context.Context, symbol string, limit int) ([]domain.FetchRecord, error)
}
