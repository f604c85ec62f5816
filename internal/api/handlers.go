package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
	"stock_dash/internal/indicator"
	"stock_dash/internal/infra"
	"stock_dash/internal/service"
)

// ======================================================================================
// Views
// ======================================================================================

type quoteDisplay struct {
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
	Volume        string `json:"volume"`
	MarketCap     string `json:"market_cap,omitempty"`
	Direction     string `json:"direction"`
}

type quoteView struct {
	*domain.Quote
	Display quoteDisplay `json:"display"`
}

func newQuoteView(q *domain.Quote) quoteView {
	d := quoteDisplay{
		Price:         FormatMoney(q.Price, q.Currency),
		Change:        FormatSigned(q.Change),
		ChangePercent: FormatPercent(q.ChangePercent),
		Volume:        FormatNumber(decimal.NewFromInt(q.Volume)),
		Direction:     q.Direction(),
	}
	if q.MarketCap != nil {
		d.MarketCap = FormatCompactMoney(*q.MarketCap, q.Currency)
	}
	return quoteView{Quote: q, Display: d}
}

type snapshotView struct {
	Symbol      string             `json:"symbol"`
	DisplayName string             `json:"display_name"`
	Pinned      bool               `json:"pinned"`
	Watchlisted bool               `json:"watchlisted"`
	Stale       bool               `json:"stale"`
	Quote       *quoteView         `json:"quote,omitempty"`
	Status      domain.FetchStatus `json:"status"`
}

type indicatorView struct {
	SMAPeriod int                   `json:"sma_period,omitempty"`
	SMA       *decimal.Decimal      `json:"sma,omitempty"`
	RSIPeriod int                   `json:"rsi_period,omitempty"`
	RSI       *decimal.Decimal      `json:"rsi,omitempty"`
	Range     *indicator.PriceRange `json:"range,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
}

type historyResponse struct {
	*domain.HistoricalSeries
	Indicators indicatorView `json:"indicators"`
}

type valuationView struct {
	domain.Valuation
	Display struct {
		MarketValue   string `json:"market_value,omitempty"`
		UnrealizedPnL string `json:"unrealized_pnl,omitempty"`
		PnLPercent    string `json:"pnl_percent,omitempty"`
	} `json:"display"`
}

type portfolioResponse struct {
	domain.PortfolioSummary
	Positions []valuationView `json:"positions"`
	Complete  bool            `json:"complete"`
	Display   struct {
		TotalValue      string `json:"total_value"`
		TotalPnL        string `json:"total_pnl"`
		TotalPnLPercent string `json:"total_pnl_percent"`
	} `json:"display"`
}

type statusResponse struct {
	Metrics   *infra.MetricsSnapshot `json:"metrics,omitempty"`
	Symbols   []domain.FetchStatus   `json:"symbols"`
	Cycles    uint64                 `json:"refresh_cycles"`
	NextRun   *time.Time             `json:"next_refresh,omitempty"`
	WSClients int                    `json:"ws_clients"`
}

// ======================================================================================
// Quotes and history
// ======================================================================================

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	snaps := s.deps.Stocks.Snapshot()
	out := make([]snapshotView, len(snaps))
	for i, snap := range snaps {
		out[i] = newSnapshotView(snap)
	}
	writeJSON(w, out)
}

func newSnapshotView(snap service.SymbolSnapshot) snapshotView {
	v := snapshotView{
		Symbol:      snap.Symbol,
		DisplayName: snap.DisplayName,
		Pinned:      snap.Pinned,
		Watchlisted: snap.Watchlisted,
		Stale:       snap.Stale,
		Status:      snap.Status,
	}
	if snap.Quote != nil {
		qv := newQuoteView(snap.Quote)
		v.Quote = &qv
	}
	return v
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.deps.Stocks.GetQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newQuoteView(q))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	period, err := domain.ParsePeriod(query.Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	smaPeriod, err := intParam(query.Get("sma"), "sma")
	if err != nil {
		writeError(w, err)
		return
	}
	rsiPeriod, err := intParam(query.Get("rsi"), "rsi")
	if err != nil {
		writeError(w, err)
		return
	}

	series, err := s.deps.Stocks.GetHistory(r.Context(), r.PathValue("symbol"), period)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := historyResponse{HistoricalSeries: series}
	closes := series.Closes()
	if smaPeriod > 0 {
		resp.Indicators.SMAPeriod = smaPeriod
		if v, err := indicator.SMA(closes, smaPeriod); err == nil {
			resp.Indicators.SMA = &v
		} else {
			resp.Indicators.Warnings = append(resp.Indicators.Warnings, "sma: "+err.Error())
		}
	}
	if rsiPeriod > 0 {
		resp.Indicators.RSIPeriod = rsiPeriod
		if v, err := indicator.RSI(closes, rsiPeriod); err == nil {
			resp.Indicators.RSI = &v
		} else {
			resp.Indicators.Warnings = append(resp.Indicators.Warnings, "rsi: "+err.Error())
		}
	}
	if rng, err := indicator.Range(series.Bars); err == nil {
		resp.Indicators.Range = &rng
	}
	writeJSON(w, resp)
}

// ======================================================================================
// Watchlist
// ======================================================================================

type watchlistRequest struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	snaps := s.deps.Stocks.Snapshot()
	out := make([]snapshotView, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Watchlisted {
			continue
		}
		out = append(out, newSnapshotView(snap))
	}
	writeJSON(w, out)
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.deps.Stocks.AddToWatchlist(r.Context(), domain.WatchlistEntry{Symbol: req.Symbol, DisplayName: req.DisplayName})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Stocks.RemoveFromWatchlist(r.Context(), r.PathValue("symbol")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ======================================================================================
// Portfolio
// ======================================================================================

type positionRequest struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

type sellRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary := s.deps.Portfolio.PortfolioTotalValue()
	resp := portfolioResponse{PortfolioSummary: summary, Complete: summary.Complete()}
	resp.Positions = make([]valuationView, len(summary.Positions))
	for i, v := range summary.Positions {
		vv := valuationView{Valuation: v}
		if v.Known {
			vv.Display.MarketValue = FormatMoney(v.MarketValue, "USD")
			vv.Display.UnrealizedPnL = FormatSigned(v.UnrealizedPnL)
			vv.Display.PnLPercent = FormatPercent(v.PnLPercent)
		}
		resp.Positions[i] = vv
	}
	resp.Display.TotalValue = FormatMoney(summary.TotalValue, "USD")
	resp.Display.TotalPnL = FormatSigned(summary.TotalPnL)
	resp.Display.TotalPnLPercent = FormatPercent(summary.TotalPnLPercent)
	writeJSON(w, resp)
}

func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pos, err := s.deps.Portfolio.AddPosition(r.Context(), req.Symbol, req.Quantity, req.CostBasis)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, s.deps.Portfolio.Valuate(pos))
}

func (s *Server) handleSellPosition(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pos, err := s.deps.Portfolio.SellPosition(r.Context(), r.PathValue("symbol"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.deps.Portfolio.Valuate(pos))
}

// ======================================================================================
// Alerts
// ======================================================================================

type alertRequest struct {
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Persistent  bool            `json:"persistent"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Alerts.List())
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.deps.Alerts.Add(req.Symbol, req.TargetPrice, req.Persistent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, view)
}

func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Alerts.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ======================================================================================
// Operations
// ======================================================================================

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Refresher.RefreshAll(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Symbols:   s.deps.Stocks.Statuses(),
		WSClients: s.hub.Clients(),
	}
	if s.deps.Metrics != nil {
		snap := s.deps.Metrics.Snapshot()
		resp.Metrics = &snap
	}
	if s.deps.Scheduler != nil {
		resp.Cycles = s.deps.Scheduler.Cycles()
		if next := s.deps.Scheduler.NextRun(); !next.IsZero() {
			resp.NextRun = &next
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	if s.deps.FetchLog == nil {
		writeJSON(w, []domain.FetchRecord{})
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol != "" {
		if symbol, err = domain.NormalizeSymbol(symbol); err != nil {
			writeError(w, err)
			return
		}
	}
	records, err := s.deps.FetchLog.Recent(r.Context(), symbol, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.FetchRecord{}
	}
	writeJSON(w, records)
}

// ======================================================================================
// Helpers
// ======================================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error(), Err: err}
	}
	return nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be a non-negative integer, got %q", raw), Err: err}
	}
	return n, nil
}
