// Package recorder keeps a durable log of market-data fetches.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"stock_dash/internal/domain"
)

// SQLiteRecorder persists fetch outcomes to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create recorder dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the CLI read the log while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("📼 Fetch recorder opened", slog.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_records (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			kind        TEXT NOT NULL,
			period      TEXT,
			ok          INTEGER NOT NULL,
			error       TEXT,
			price       TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_symbol_ts ON fetch_records(symbol, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, rec domain.FetchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO fetch_records
		(timestamp, symbol, kind, period, ok, error, price, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		at.UnixMilli(), rec.Symbol, rec.Kind, string(rec.Period),
		rec.OK, rec.Error, rec.Price, rec.Duration.Milliseconds(),
	)
	return err
}

// Recent returns up to limit records, newest first. An empty symbol matches all.
func (r *SQLiteRecorder) Recent(ctx context.Context, symbol string, limit int) ([]domain.FetchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT timestamp, symbol, kind, period, ok, error, price, duration_ms
		FROM fetch_records`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FetchRecord
	for rows.Next() {
		var (
			rec       domain.FetchRecord
			ts, durMs int64
			period    sql.NullString
			errMsg    sql.NullString
			price     sql.NullString
		)
		if err := rows.Scan(&ts, &rec.Symbol, &rec.Kind, &period, &rec.OK, &errMsg, &price, &durMs); err != nil {
			return nil, err
		}
		rec.At = time.UnixMilli(ts)
		rec.Period = domain.Period(period.String)
		rec.Error = errMsg.String
		rec.Price = price.String
		rec.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	slog.Info("Closing fetch recorder")
	return r.db.Close()
}
