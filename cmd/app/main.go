package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock_dash/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	pprofAddr := flag.String("pprof", "", "pprof listen address, e.g. localhost:6060")
	flag.Parse()

	// 1. Pprof Server (opt-in)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap, err := app.LoadBootstrap(*configPath)
	if err != nil {
		slog.Error("❌ Loading configuration failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		bootstrap.Shutdown(context.Background())
		os.Exit(1)
	}

	// 4. Background work and API
	if err := bootstrap.Start(ctx, true); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		bootstrap.Shutdown(context.Background())
		os.Exit(1)
	}
	slog.InfoContext(ctx, "✨ Stock dashboard fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	bootstrap.Shutdown(shutdownCtx)
}
