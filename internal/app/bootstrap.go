package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_dash/internal/api"
	"stock_dash/internal/domain"
	"stock_dash/internal/engine"
	"stock_dash/internal/event"
	"stock_dash/internal/infra"
	"stock_dash/internal/infra/httpclient"
	"stock_dash/internal/infra/recorder"
	"stock_dash/internal/infra/storage"
	"stock_dash/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Logger   *slog.Logger
	Metrics  *infra.Metrics
	Bus      *event.Bus
	Storage  *storage.Storage // nil when persistence is disabled
	Recorder recorder.Recorder
	HTTP     *httpclient.Client
	Provider domain.MarketDataProvider

	Watchlist *service.Watchlist
	Stocks    *service.StockDataManager
	Portfolio *service.PortfolioManager
	Alerts    *service.AlertBook
	Scheduler *engine.Scheduler
	Logos     *infra.LogoDownloader
	Server    *api.Server

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBootstrap creates a Bootstrap for an already loaded config.
func NewBootstrap(cfg *infra.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

// LoadBootstrap reads the config file, falling back to built-in defaults when
// it does not exist.
func LoadBootstrap(configPath string) (*Bootstrap, error) {
	cfg, err := infra.LoadConfigOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	return NewBootstrap(cfg), nil
}

// Initialize wires every component and loads persisted state. Nothing runs in
// the background until Start.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	cfg := b.Config

	// 1. Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	slog.Info("🚀 Bootstrapping stock dashboard...",
		slog.String("version", cfg.App.Version),
		slog.String("provider", cfg.Provider.Name))

	b.Metrics = infra.NewMetrics()
	b.Bus = event.NewBus()

	// 2. Storage (optional)
	var (
		wlRepo  domain.WatchlistRepository
		posRepo domain.PositionRepository
	)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		wlRepo, posRepo = store, store
		if err := store.SaveConfig("last_started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("Failed to save start time", slog.Any("error", err))
		}
		slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))
	}

	// 3. Fetch recorder
	rec, err := recorder.Open(cfg.Recorder.SQLitePath)
	if err != nil {
		return err
	}
	b.Recorder = rec

	// 4. Provider
	client, err := NewHTTPClient(cfg)
	if err != nil {
		return &domain.ConfigError{Field: "provider.proxy", Err: err}
	}
	b.HTTP = client
	provider, err := NewProvider(cfg, client)
	if err != nil {
		return err
	}
	b.Provider = provider

	// 5. Watchlist and cache
	b.Watchlist = service.NewWatchlist(cfg.WatchlistDefaults(), wlRepo)
	if err := b.Watchlist.Load(ctx); err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	b.Stocks = service.NewStockDataManager(provider, b.Watchlist, service.Options{
		QuoteTTL:     cfg.QuoteTTL(),
		HistoryTTL:   cfg.HistoryTTL(),
		FetchTimeout: cfg.FetchTimeout(),
		Concurrency:  cfg.Refresh.Concurrency,
		Logger:       b.Logger,
		Metrics:      b.Metrics,
		Recorder:     rec,
		Publisher:    b.Bus,
	})
	for _, idx := range cfg.Watchlist.Indices {
		if _, err := b.Stocks.Track(idx.Symbol, idx.Name); err != nil {
			return &domain.ConfigError{Field: "watchlist.indices", Err: err}
		}
	}

	// 6. Portfolio and alerts
	b.Portfolio = service.NewPortfolioManager(b.Stocks, posRepo, b.Logger)
	if err := b.Portfolio.Load(ctx); err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	b.Alerts = service.NewAlertBook(b.Stocks, b.Bus, b.Logger)

	// 7. Scheduler
	b.Scheduler, err = engine.NewScheduler(b.Stocks, cfg.RefreshInterval(), cfg.Refresh.RunOnStart, b.Logger)
	if err != nil {
		return err
	}

	// 8. Logos (optional)
	if cfg.Logos.Enabled {
		b.Logos, err = infra.NewLogoDownloader(cfg.Logos.Dir, cfg.Logos.URLTemplate, cfg.Logos.Size, client, b.Logger)
		if err != nil {
			return err
		}
	}

	slog.Info("✅ Components ready",
		slog.Int("watchlist", b.Watchlist.Len()),
		slog.Int("indices", len(cfg.Watchlist.Indices)),
		slog.Int("positions", len(b.Portfolio.Positions())))
	return nil
}

// Start launches the background work: alert evaluation, the refresh
// scheduler, logo sync and, when withServer is set, the HTTP API.
func (b *Bootstrap) Start(ctx context.Context, withServer bool) error {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.Alerts.Run(ctx)
	}()
	b.Scheduler.Start()

	if b.Logos != nil {
		go b.SyncAssets(ctx)
	}

	if withServer {
		b.Server = api.NewServer(b.Config.Server.Addr, api.Deps{
			Stocks:    b.Stocks,
			Portfolio: b.Portfolio,
			Alerts:    b.Alerts,
			Refresher: b.Stocks,
			Scheduler: b.Scheduler,
			FetchLog:  b.Recorder,
			Metrics:   b.Metrics,
			Bus:       b.Bus,
			Logger:    b.Logger,
		})
		if err := b.Server.Start(); err != nil {
			return fmt.Errorf("start API server: %w", err)
		}
	}
	return nil
}

// SyncAssets downloads logos for the watchlist and records their paths.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting logo synchronization...")
	paths := b.Logos.Sync(ctx, b.Watchlist.Symbols(), 5)
	if b.Storage != nil {
		for sym, path := range paths {
			if err := b.Storage.SetLogoPath(ctx, sym, path); err != nil && !errors.Is(err, domain.ErrNotFound) {
				slog.Warn("Failed to store logo path", slog.String("symbol", sym), slog.Any("error", err))
			}
		}
	}
	slog.Info("✨ Logo synchronization completed", slog.Int("logos", len(paths)))
}

// Shutdown stops everything in reverse order. It is safe to call after a
// partial Initialize.
func (b *Bootstrap) Shutdown(ctx context.Context) {
	slog.Info("👋 Shutting down gracefully...")

	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			slog.Warn("API server shutdown", slog.Any("error", err))
		}
	}
	if b.Scheduler != nil {
		b.Scheduler.Stop()
	}
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	if b.Stocks != nil {
		b.Stocks.Close()
	}
	if b.Bus != nil {
		b.Bus.Close()
	}
	if b.Recorder != nil {
		if err := b.Recorder.Close(); err != nil {
			slog.Warn("Recorder close", slog.Any("error", err))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Storage close", slog.Any("error", err))
		}
	}
}
