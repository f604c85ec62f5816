package domain

import (
	"time"
)

// SymbolInfo is the persisted watchlist row. Position orders the watchlist.
type SymbolInfo struct {
	Symbol      string    `gorm:"primaryKey" json:"symbol"`
	DisplayName string    `json:"display_name"`
	Position    int       `json:"position" gorm:"index"`
	LogoPath    string    `json:"logo_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PositionRecord is the persisted portfolio row. Decimals are stored as strings
// so no precision is lost in sqlite.
type PositionRecord struct {
	Symbol    string    `gorm:"primaryKey" json:"symbol"`
	Quantity  string    `json:"quantity"`
	CostBasis string    `json:"cost_basis"`
	OpenedAt  time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
