package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AlertUp   = "UP"
	AlertDown = "DOWN"
)

// AlertConfig is a price alert on one symbol.
type AlertConfig struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	TargetPrice  decimal.Decimal `json:"target"`
	Direction    string          `json:"direction"` // "UP" or "DOWN"
	IsPersistent bool            `json:"is_persistent"`
	CreatedAt    time.Time       `json:"created_at"`
	TriggeredAt  time.Time       `json:"triggered_at,omitempty"`
	active       bool
}

// NewAlertConfig creates an active alert. The direction is derived from the
// price at creation time:
// - UP: target >= current (waiting for the price to rise)
// - DOWN: target < current (waiting for the price to fall)
func NewAlertConfig(symbol string, targetPrice, currentPrice decimal.Decimal, isPersistent bool) *AlertConfig {
	direction := AlertUp
	if targetPrice.LessThan(currentPrice) {
		direction = AlertDown
	}
	return &AlertConfig{
		Symbol:       symbol,
		TargetPrice:  targetPrice,
		Direction:    direction,
		IsPersistent: isPersistent,
		active:       true,
	}
}

func (a *AlertConfig) IsActive() bool {
	return a.active
}

func (a *AlertConfig) SetActive(active bool) {
	a.active = active
}

// CheckCondition reports whether the price crossed the target in the alert's direction.
// Inactive alerts never trigger.
func (a *AlertConfig) CheckCondition(currentPrice decimal.Decimal) bool {
	if !a.active {
		return false
	}
	switch a.Direction {
	case AlertUp:
		return currentPrice.GreaterThanOrEqual(a.TargetPrice)
	case AlertDown:
		return currentPrice.LessThanOrEqual(a.TargetPrice)
	default:
		return false
	}
}

// AlertView is the read-only projection returned to callers.
type AlertView struct {
	AlertConfig
	Active bool `json:"active"`
}

// View snapshots the alert including its unexported active flag.
func (a *AlertConfig) View() AlertView {
	return AlertView{AlertConfig: *a, Active: a.active}
}
