package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
	"stock_dash/internal/event"
)

// AlertBook holds price alerts and checks them against every quote update.
type AlertBook struct {
	mu     sync.Mutex
	alerts map[string][]*domain.AlertConfig

	stocks *StockDataManager
	bus    *event.Bus
	logger *slog.Logger
}

func NewAlertBook(stocks *StockDataManager, bus *event.Bus, logger *slog.Logger) *AlertBook {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertBook{
		alerts: make(map[string][]*domain.AlertConfig),
		stocks: stocks,
		bus:    bus,
		logger: logger.With("module", "alerts"),
	}
}

// Add creates an alert. The direction is taken from the cached price, so a
// quote must already be cached.
func (b *AlertBook) Add(symbol string, target decimal.Decimal, persistent bool) (domain.AlertView, error) {
	if !target.IsPositive() {
		return domain.AlertView{}, &domain.ValidationError{Field: "target", Reason: "must be greater than zero"}
	}
	q, err := b.stocks.CachedQuote(symbol)
	if err != nil {
		return domain.AlertView{}, err
	}

	alert := domain.NewAlertConfig(q.Symbol, target, q.Price, persistent)
	alert.ID = uuid.NewString()
	alert.CreatedAt = b.stocks.opts.Now()

	b.mu.Lock()
	b.alerts[q.Symbol] = append(b.alerts[q.Symbol], alert)
	b.mu.Unlock()

	b.logger.Info("🔔 Alert added",
		"symbol", q.Symbol,
		"target", target.String(),
		"direction", alert.Direction)
	return alert.View(), nil
}

// Remove deletes an alert by id.
func (b *AlertBook) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sym, list := range b.alerts {
		for i, a := range list {
			if a.ID == id {
				b.alerts[sym] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
}

// List returns every alert ordered by symbol then creation.
func (b *AlertBook) List() []domain.AlertView {
	b.mu.Lock()
	defer b.mu.Unlock()
	symbols := make([]string, 0, len(b.alerts))
	for sym := range b.alerts {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := []domain.AlertView{}
	for _, sym := range symbols {
		for _, a := range b.alerts[sym] {
			out = append(out, a.View())
		}
	}
	return out
}

// Check evaluates the alerts of q.Symbol and returns the ones that fired.
// Non-persistent alerts are deactivated when they fire.
func (b *AlertBook) Check(q *domain.Quote) []domain.AlertView {
	b.mu.Lock()
	var fired []domain.AlertView
	for _, a := range b.alerts[q.Symbol] {
		if !a.CheckCondition(q.Price) {
			continue
		}
		a.TriggeredAt = q.FetchedAt
		if !a.IsPersistent {
			a.SetActive(false)
		}
		fired = append(fired, a.View())
	}
	b.mu.Unlock()

	for _, a := range fired {
		b.logger.Info("🚨 Alert triggered",
			"symbol", a.Symbol,
			"target", a.TargetPrice.String(),
			"price", q.Price.String(),
			"direction", a.Direction)
		if b.bus != nil {
			b.bus.Publish(event.NewAlertTriggered(a, q, q.FetchedAt))
		}
	}
	return fired
}

// Run consumes quote updates until ctx is done or the bus closes.
func (b *AlertBook) Run(ctx context.Context) {
	sub := b.bus.Subscribe("alert-book", 256, event.QuoteUpdated)
	defer b.bus.Unsubscribe(sub.ID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Quote != nil {
				b.Check(ev.Quote)
			}
		}
	}
}
