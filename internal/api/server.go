// Package api exposes the dashboard state over HTTP and a websocket stream.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"stock_dash/internal/domain"
	"stock_dash/internal/event"
	"stock_dash/internal/infra"
	"stock_dash/internal/service"
)

// Refresher runs one refresh cycle on demand.
type Refresher interface {
	RefreshAll(ctx context.Context) service.RefreshReport
}

// SchedulerInfo describes the periodic refresh. engine.Scheduler implements it.
type SchedulerInfo interface {
	Cycles() uint64
	NextRun() time.Time
}

// FetchLog serves recorded provider calls.
type FetchLog interface {
	Recent(ctx context.Context, symbol string, limit int) ([]domain.FetchRecord, error)
}

type Deps struct {
	Stocks    *service.StockDataManager
	Portfolio *service.PortfolioManager
	Alerts    *service.AlertBook
	Refresher Refresher
	Scheduler SchedulerInfo
	FetchLog  FetchLog
	Metrics   *infra.Metrics
	Bus       *event.Bus
	Logger    *slog.Logger
}

type Server struct {
	deps       Deps
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Refresher == nil {
		deps.Refresher = deps.Stocks
	}
	s := &Server{
		deps:   deps,
		logger: deps.Logger.With("module", "api"),
	}
	var counter ConnCounter
	if deps.Metrics != nil {
		counter = deps.Metrics
	}
	s.hub = NewHub(deps.Bus, counter, deps.Logger)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/quotes", s.handleQuotes)
	mux.HandleFunc("GET /api/quotes/{symbol}", s.handleQuote)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /api/portfolio/positions", s.handleAddPosition)
	mux.HandleFunc("POST /api/portfolio/positions/{symbol}/sell", s.handleSellPosition)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/alerts", s.handleAddAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleRemoveAlert)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/fetches", s.handleFetches)
	if s.deps.Bus != nil {
		mux.Handle("GET /ws", s.hub)
	}
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("🌐 API server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", slog.Any("error", err))
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()
	return err
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket upgrader reach the underlying Hijacker.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
