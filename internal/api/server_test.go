package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stock_dash/internal/domain"
	"stock_dash/internal/event"
	"stock_dash/internal/infra"
	"stock_dash/internal/infra/mockfeed"
	"stock_dash/internal/service"
)

type testEnv struct {
	server *httptest.Server
	feed   *mockfeed.Feed
	stocks *service.StockDataManager
	bus    *event.Bus
	api    *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	feed := mockfeed.New(0)
	bus := event.NewBus()
	metrics := infra.NewMetrics()
	wl := service.NewWatchlist([]domain.WatchlistEntry{{Symbol: "AAPL"}, {Symbol: "MSFT", DisplayName: "Microsoft"}}, nil)
	stocks := service.NewStockDataManager(feed, wl, service.Options{Publisher: bus, Metrics: metrics})
	if _, err := stocks.Track("^GSPC", "S&P 500"); err != nil {
		t.Fatal(err)
	}

	srv := NewServer("127.0.0.1:0", Deps{
		Stocks:    stocks,
		Portfolio: service.NewPortfolioManager(stocks, nil, nil),
		Alerts:    service.NewAlertBook(stocks, bus, nil),
		Metrics:   metrics,
		Bus:       bus,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.hub.Close()
		stocks.Close()
		bus.Close()
	})
	return &testEnv{server: ts, feed: feed, stocks: stocks, bus: bus, api: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, e.server.URL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestQuoteEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/quotes/aapl", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var q struct {
		Symbol  string       `json:"symbol"`
		Display quoteDisplay `json:"display"`
	}
	json.Unmarshal(body, &q)
	if q.Symbol != "AAPL" || !strings.HasPrefix(q.Display.Price, "$") {
		t.Errorf("unexpected quote %s", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/quotes", nil)
	var snaps []snapshotView
	if err := json.Unmarshal(body, &snaps); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(snaps) != 3 {
		t.Fatalf("len = %d, want 3 (2 watchlist + 1 index)", len(snaps))
	}
	if snaps[0].Quote == nil || snaps[1].Quote != nil {
		t.Errorf("only AAPL should be cached: %s", body)
	}
	if !snaps[2].Pinned || snaps[2].DisplayName != "S&P 500" {
		t.Errorf("index snapshot = %+v", snaps[2])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	env.feed.SetFailure("MSFT", &domain.FetchTransportError{Symbol: "MSFT", Op: domain.KindQuote, Err: context.DeadlineExceeded})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown symbol", http.MethodGet, "/api/quotes/TSLA", nil, http.StatusNotFound, "unknown_symbol"},
		{"invalid symbol", http.MethodGet, "/api/quotes/bad$sym", nil, http.StatusBadRequest, "validation"},
		{"fetch failure", http.MethodGet, "/api/quotes/MSFT", nil, http.StatusBadGateway, "transport"},
		{"bad period", http.MethodGet, "/api/history/AAPL?period=7w", nil, http.StatusBadRequest, "validation"},
		{"negative quantity", http.MethodPost, "/api/portfolio/positions",
			map[string]any{"symbol": "AAPL", "quantity": "-5", "cost_basis": "100"}, http.StatusBadRequest, "validation"},
		{"alert before quote", http.MethodPost, "/api/alerts",
			map[string]any{"symbol": "AAPL", "target_price": "200"}, http.StatusServiceUnavailable, "not_yet_available"},
		{"unknown alert", http.MethodDelete, "/api/alerts/nope", nil, http.StatusNotFound, "not_found"},
		{"unknown body field", http.MethodPost, "/api/watchlist", map[string]any{"ticker": "X"}, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			var er errorResponse
			json.Unmarshal(body, &er)
			if er.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", er.Kind, tt.kind)
			}
		})
	}
}

func TestHistoryWithIndicators(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/history/MSFT?period=3mo&sma=20&rsi=14", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}
	var h struct {
		Bars       []domain.Bar  `json:"bars"`
		Period     domain.Period `json:"period"`
		Indicators indicatorView `json:"indicators"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatal(err)
	}
	if h.Period != domain.Period3M || len(h.Bars) == 0 {
		t.Errorf("period=%s bars=%d", h.Period, len(h.Bars))
	}
	if h.Indicators.SMA == nil || h.Indicators.RSI == nil || h.Indicators.Range == nil {
		t.Errorf("indicators missing: %s", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/history/MSFT?period=5d&sma=500", nil)
	json.Unmarshal(body, &h)
	if h.Indicators.SMA != nil || len(h.Indicators.Warnings) != 1 {
		t.Errorf("expected sma warning for short series: %s", body)
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/watchlist", watchlistRequest{Symbol: "nvda"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d (%s)", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/watchlist", watchlistRequest{Symbol: "NVDA"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate add status = %d, want 400", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodGet, "/api/watchlist", nil)
	var list []snapshotView
	json.Unmarshal(body, &list)
	if len(list) != 3 || list[2].Symbol != "NVDA" {
		t.Errorf("watchlist = %s", body)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/watchlist/NVDA", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("remove status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/watchlist/NVDA", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", resp.StatusCode)
	}
}

func TestPortfolioEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/portfolio/positions",
		map[string]any{"symbol": "TSLA", "quantity": "10", "cost_basis": "150"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d (%s)", resp.StatusCode, body)
	}

	// Not quoted yet: listed as unknown, excluded from totals.
	_, body = env.do(t, http.MethodGet, "/api/portfolio", nil)
	var p struct {
		Unknown  []string `json:"unknown"`
		Complete bool     `json:"complete"`
	}
	json.Unmarshal(body, &p)
	if p.Complete || len(p.Unknown) != 1 || p.Unknown[0] != "TSLA" {
		t.Errorf("portfolio before refresh = %s", body)
	}

	env.do(t, http.MethodPost, "/api/refresh", nil)
	_, body = env.do(t, http.MethodGet, "/api/portfolio", nil)
	json.Unmarshal(body, &p)
	if !p.Complete {
		t.Errorf("portfolio after refresh = %s", body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/portfolio/positions/TSLA/sell", map[string]any{"quantity": "4"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell status = %d (%s)", resp.StatusCode, body)
	}
	var v domain.Valuation
	json.Unmarshal(body, &v)
	if v.Position.Quantity.String() != "6" {
		t.Errorf("remaining = %s, want 6", v.Position.Quantity)
	}
}

func TestRefreshAndStatus(t *testing.T) {
	env := newTestEnv(t)
	env.feed.SetFailure("MSFT", &domain.FetchDataError{Symbol: "MSFT", Reason: "empty"})

	resp, body := env.do(t, http.MethodPost, "/api/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var report service.RefreshReport
	json.Unmarshal(body, &report)
	if len(report.Refreshed) != 2 || len(report.Failed) != 1 || report.Failed[0].Kind != "data" {
		t.Errorf("report = %s", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/status", nil)
	var st statusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.Metrics == nil || st.Metrics.FetchesOK != 2 || st.Metrics.FetchesFailed != 1 {
		t.Errorf("metrics = %+v", st.Metrics)
	}
	for _, s := range st.Symbols {
		if s.Symbol == "MSFT" && s.FailureCount != 1 {
			t.Errorf("MSFT failure count = %d", s.FailureCount)
		}
	}
}

func TestAlertEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/quotes/AAPL", nil)

	resp, body := env.do(t, http.MethodPost, "/api/alerts", alertRequest{Symbol: "AAPL", TargetPrice: mustDec("1000")})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}
	var view domain.AlertView
	json.Unmarshal(body, &view)
	if view.ID == "" || view.Direction != domain.AlertUp {
		t.Errorf("alert = %s", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/alerts", nil)
	var list []domain.AlertView
	json.Unmarshal(body, &list)
	if len(list) != 1 {
		t.Errorf("alerts = %s", body)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/alerts/"+view.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodOptions, "/api/quotes", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestServerStartShutdown(t *testing.T) {
	env := newTestEnv(t)
	srv := NewServer("127.0.0.1:0", env.api.deps)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
