package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPortfolioManager_AddPositionValidation(t *testing.T) {
	m, _, _ := newTestManager(t, "AAPL")
	pm := NewPortfolioManager(m, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		symbol    string
		qty, cost string
		field     string
	}{
		{"negative quantity", "AAPL", "-5", "150", "quantity"},
		{"zero quantity", "AAPL", "0", "150", "quantity"},
		{"negative cost", "AAPL", "1", "-1", "cost_basis"},
		{"bad symbol", "AA PL", "1", "1", "symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pm.AddPosition(ctx, tt.symbol, d(tt.qty), d(tt.cost))
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %s, want %s", ve.Field, tt.field)
			}
		})
	}

	if len(pm.Positions()) != 0 {
		t.Error("rejected trades must not create positions")
	}
}

func TestPortfolioManager_PnL(t *testing.T) {
	m, provider, _ := newTestManager(t, "AAPL")
	pm := NewPortfolioManager(m, nil, nil)
	ctx := context.Background()

	provider.setPrice("AAPL", 175)
	if _, err := m.GetQuote(ctx, "AAPL"); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	pos, err := pm.AddPosition(ctx, "aapl", d("10"), d("150"))
	if err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	pnl, ok := pm.UnrealizedPnL(pos)
	if !ok {
		t.Fatal("P&L should be known with a cached quote")
	}
	if !pnl.Equal(d("250")) {
		t.Errorf("UnrealizedPnL = %s, want 250", pnl)
	}

	pos, err = pm.AddPosition(ctx, "AAPL", d("10"), d("200"))
	if err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if !pos.Quantity.Equal(d("20")) || !pos.CostBasis.Equal(d("175")) {
		t.Errorf("merged position qty=%s cost=%s, want 20 @ 175", pos.Quantity, pos.CostBasis)
	}
	if pnl, _ := pm.UnrealizedPnL(pos); !pnl.IsZero() {
		t.Errorf("P&L at cost = %s, want 0", pnl)
	}
}

func TestPortfolioManager_UnknownQuote(t *testing.T) {
	m, _, _ := newTestManager(t, "AAPL")
	pm := NewPortfolioManager(m, nil, nil)
	ctx := context.Background()

	if _, err := m.GetQuote(ctx, "AAPL"); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if _, err := pm.AddPosition(ctx, "AAPL", d("1"), d("90")); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	pos, err := pm.AddPosition(ctx, "NVDA", d("2"), d("500"))
	if err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	if _, ok := pm.UnrealizedPnL(pos); ok {
		t.Error("P&L without a cached quote must be reported as unknown")
	}
	if !m.IsTracked("NVDA") {
		t.Error("opening a position should pin the symbol")
	}

	summary := pm.PortfolioTotalValue()
	if len(summary.Unknown) != 1 || summary.Unknown[0] != "NVDA" {
		t.Errorf("Unknown = %v, want [NVDA]", summary.Unknown)
	}
	if !summary.TotalValue.Equal(d("100")) || !summary.TotalPnL.Equal(d("10")) {
		t.Errorf("totals value=%s pnl=%s, want 100 and 10", summary.TotalValue, summary.TotalPnL)
	}
}

func TestPortfolioManager_SellPosition(t *testing.T) {
	m, _, _ := newTestManager(t, "AAPL")
	repo := newMemPositionRepo()
	pm := NewPortfolioManager(m, repo, nil)
	ctx := context.Background()

	if _, err := pm.AddPosition(ctx, "TSLA", d("10"), d("200")); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	var ve *domain.ValidationError
	if _, err := pm.SellPosition(ctx, "TSLA", d("11")); !errors.As(err, &ve) {
		t.Errorf("selling more than held = %v, want ValidationError", err)
	}
	var unknown *domain.UnknownSymbolError
	if _, err := pm.SellPosition(ctx, "MSFT", d("1")); !errors.As(err, &unknown) {
		t.Errorf("selling unknown symbol = %v, want UnknownSymbolError", err)
	}

	pos, err := pm.SellPosition(ctx, "TSLA", d("4"))
	if err != nil {
		t.Fatalf("SellPosition: %v", err)
	}
	if !pos.Quantity.Equal(d("6")) || !pos.CostBasis.Equal(d("200")) {
		t.Errorf("after partial sell qty=%s cost=%s", pos.Quantity, pos.CostBasis)
	}
	if stored := repo.positions["TSLA"]; !stored.Quantity.Equal(d("6")) {
		t.Errorf("repository not updated, got %s", stored.Quantity)
	}

	if _, err := pm.SellPosition(ctx, "TSLA", d("6")); err != nil {
		t.Fatalf("SellPosition: %v", err)
	}
	if _, ok := pm.Position("TSLA"); ok {
		t.Error("position should be removed at zero")
	}
	if _, ok := repo.positions["TSLA"]; ok {
		t.Error("closed position should be deleted from the repository")
	}
	if m.IsTracked("TSLA") {
		t.Error("closing the position should unpin the symbol")
	}
}

func TestPortfolioManager_Load(t *testing.T) {
	m, _, _ := newTestManager(t)
	repo := newMemPositionRepo()
	repo.positions["AMZN"] = domain.Position{Symbol: "AMZN", Quantity: d("3"), CostBasis: d("120")}
	repo.positions["DEAD"] = domain.Position{Symbol: "DEAD", Quantity: d("0"), CostBasis: d("1")}

	pm := NewPortfolioManager(m, repo, nil)
	if err := pm.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	positions := pm.Positions()
	if len(positions) != 1 || positions[0].Symbol != "AMZN" {
		t.Fatalf("Positions() = %+v", positions)
	}
	if !m.IsTracked("AMZN") {
		t.Error("loaded positions should be pinned")
	}
}
