package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

// PortfolioManager keeps one position per symbol and values them against the
// cached quotes of the StockDataManager. Valuation never triggers a fetch.
type PortfolioManager struct {
	mu        sync.RWMutex
	positions map[string]domain.Position

	stocks *StockDataManager
	repo   domain.PositionRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewPortfolioManager creates an empty portfolio. repo may be nil.
func NewPortfolioManager(stocks *StockDataManager, repo domain.PositionRepository, logger *slog.Logger) *PortfolioManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortfolioManager{
		positions: make(map[string]domain.Position),
		stocks:    stocks,
		repo:      repo,
		now:       stocks.opts.Now,
		logger:    logger.With("module", "portfolio"),
	}
}

// Load restores persisted positions and pins their symbols.
func (p *PortfolioManager) Load(ctx context.Context) error {
	if p.repo == nil {
		return nil
	}
	positions, err := p.repo.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pos := range positions {
		if pos.IsClosed() {
			continue
		}
		if _, exists := p.positions[pos.Symbol]; !exists {
			if _, err := p.stocks.Track(pos.Symbol, ""); err != nil {
				p.logger.Warn("Skipping stored position", "symbol", pos.Symbol, "error", err)
				continue
			}
		}
		p.positions[pos.Symbol] = pos
	}
	p.logger.Info("💼 Portfolio loaded", "positions", len(p.positions))
	return nil
}

// AddPosition buys quantity shares at costBasis per share. Buying a symbol
// already held merges into a quantity-weighted average cost.
func (p *PortfolioManager) AddPosition(ctx context.Context, symbol string, quantity, costBasis decimal.Decimal) (domain.Position, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.Position{}, err
	}
	if err := domain.ValidateTrade(quantity, costBasis); err != nil {
		return domain.Position{}, err
	}

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, exists := p.positions[sym]
	var next domain.Position
	if exists {
		next = prev.Buy(quantity, costBasis, now)
	} else {
		next = domain.Position{Symbol: sym, Quantity: quantity, CostBasis: costBasis, OpenedAt: now, UpdatedAt: now}
	}

	if err := p.save(ctx, next); err != nil {
		return domain.Position{}, err
	}
	if !exists {
		if _, err := p.stocks.Track(sym, ""); err != nil {
			return domain.Position{}, err
		}
	}
	p.positions[sym] = next

	p.logger.Info("🟢 Position bought",
		"symbol", sym,
		"quantity", quantity.String(),
		"cost_basis", costBasis.String(),
		"held", next.Quantity.String())
	return next, nil
}

// SellPosition reduces a holding. Selling everything closes the position and
// unpins the symbol.
func (p *PortfolioManager) SellPosition(ctx context.Context, symbol string, quantity decimal.Decimal) (domain.Position, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.Position{}, err
	}
	if !quantity.IsPositive() {
		return domain.Position{}, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero, got " + quantity.String()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, exists := p.positions[sym]
	if !exists {
		return domain.Position{}, &domain.UnknownSymbolError{Symbol: sym}
	}
	if quantity.GreaterThan(prev.Quantity) {
		return domain.Position{}, &domain.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("cannot sell %s, only %s held", quantity, prev.Quantity),
		}
	}

	next := prev.Sell(quantity, p.now())
	if next.IsClosed() {
		if p.repo != nil {
			if err := p.repo.DeletePosition(ctx, sym); err != nil {
				return domain.Position{}, fmt.Errorf("delete position: %w", err)
			}
		}
		delete(p.positions, sym)
		p.stocks.Untrack(sym)
	} else {
		if err := p.save(ctx, next); err != nil {
			return domain.Position{}, err
		}
		p.positions[sym] = next
	}

	p.logger.Info("🔴 Position sold",
		"symbol", sym,
		"quantity", quantity.String(),
		"held", next.Quantity.String())
	return next, nil
}

// Must be called with lock held
func (p *PortfolioManager) save(ctx context.Context, pos domain.Position) error {
	if p.repo == nil {
		return nil
	}
	if err := p.repo.SavePosition(ctx, pos); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Position returns the holding of one symbol.
func (p *PortfolioManager) Position(symbol string) (domain.Position, bool) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.Position{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[sym]
	return pos, ok
}

// Positions returns all holdings sorted by symbol.
func (p *PortfolioManager) Positions() []domain.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// UnrealizedPnL is (latest cached price - cost basis) * quantity.
// ok is false when no quote is cached; the amount is then meaningless.
func (p *PortfolioManager) UnrealizedPnL(pos domain.Position) (decimal.Decimal, bool) {
	v := p.Valuate(pos)
	return v.UnrealizedPnL, v.Known
}

// Valuate prices a position against the cached quote.
func (p *PortfolioManager) Valuate(pos domain.Position) domain.Valuation {
	q, err := p.stocks.CachedQuote(pos.Symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotYetAvailable) {
			p.logger.Debug("No quote for position", "symbol", pos.Symbol, "error", err)
		}
		return domain.Valuate(pos, nil)
	}
	return domain.Valuate(pos, q)
}

// PortfolioTotalValue sums the positions with a cached quote and flags the rest.
func (p *PortfolioManager) PortfolioTotalValue() domain.PortfolioSummary {
	positions := p.Positions()
	valuations := make([]domain.Valuation, len(positions))
	for i, pos := range positions {
		valuations[i] = p.Valuate(pos)
	}
	return domain.Summarize(valuations, p.now())
}
