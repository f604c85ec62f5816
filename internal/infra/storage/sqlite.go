package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stock_dash/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage persists the watchlist, positions and user settings in SQLite.
// It implements domain.WatchlistRepository and domain.PositionRepository.
type Storage struct {
	db *gorm.DB
}

var (
	_ domain.WatchlistRepository = (*Storage)(nil)
	_ domain.PositionRepository  = (*Storage)(nil)
)

// NewStorage opens (or creates) the database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, errors.New("storage: empty database path")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.SymbolInfo{}, &domain.PositionRecord{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Watchlist Operations
// ======================================================================================

// LoadWatchlist returns the stored watchlist in display order.
func (s *Storage) LoadWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	var rows []domain.SymbolInfo
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.WatchlistEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.WatchlistEntry{Symbol: r.Symbol, DisplayName: r.DisplayName}
	}
	return entries, nil
}

// SaveWatchlist replaces the stored watchlist. Logo paths of symbols that stay
// on the list are kept.
func (s *Storage) SaveWatchlist(ctx context.Context, entries []domain.WatchlistEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]string, len(entries))
		for i, e := range entries {
			keep[i] = e.Symbol
		}
		del := tx.Where("1 = 1")
		if len(keep) > 0 {
			del = tx.Where("symbol NOT IN ?", keep)
		}
		if err := del.Delete(&domain.SymbolInfo{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		now := time.Now()
		rows := make([]domain.SymbolInfo, len(entries))
		for i, e := range entries {
			rows[i] = domain.SymbolInfo{
				Symbol:      e.Symbol,
				DisplayName: e.DisplayName,
				Position:    i,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "position", "updated_at"}),
		}).Create(&rows).Error
	})
}

// SetLogoPath records the cached logo file for a watchlist symbol.
func (s *Storage) SetLogoPath(ctx context.Context, symbol, path string) error {
	res := s.db.WithContext(ctx).Model(&domain.SymbolInfo{}).
		Where("symbol = ?", symbol).
		Update("logo_path", path)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSymbol retrieves watchlist metadata by symbol
func (s *Storage) GetSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	var info domain.SymbolInfo
	err := s.db.WithContext(ctx).First(&info, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ======================================================================================
// Position Operations
// ======================================================================================

func (s *Storage) LoadPositions(ctx context.Context) ([]domain.Position, error) {
	var rows []domain.PositionRecord
	if err := s.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("position %s: quantity: %w", r.Symbol, err)
		}
		cost, err := decimal.NewFromString(r.CostBasis)
		if err != nil {
			return nil, fmt.Errorf("position %s: cost basis: %w", r.Symbol, err)
		}
		positions = append(positions, domain.Position{
			Symbol:    r.Symbol,
			Quantity:  qty,
			CostBasis: cost,
			OpenedAt:  r.OpenedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return positions, nil
}

// SavePosition creates or updates a position
func (s *Storage) SavePosition(ctx context.Context, p domain.Position) error {
	rec := domain.PositionRecord{
		Symbol:    p.Symbol,
		Quantity:  p.Quantity.String(),
		CostBasis: p.CostBasis.String(),
		OpenedAt:  p.OpenedAt,
		UpdatedAt: p.UpdatedAt,
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *Storage) DeletePosition(ctx context.Context, symbol string) error {
	return s.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&domain.PositionRecord{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
