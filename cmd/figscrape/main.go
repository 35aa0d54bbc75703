package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/use-agent/figscrape/api"
	"github.com/use-agent/figscrape/cache"
	"github.com/use-agent/figscrape/config"
	"github.com/use-agent/figscrape/discovery"
	"github.com/use-agent/figscrape/engine"
	"github.com/use-agent/figscrape/scraper"
	"github.com/use-agent/figscrape/sites"
)

const version = "0.1.0"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("figscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"env", cfg.Server.Environment,
		"poolSize", cfg.Pool.Size,
		"maxEmergency", cfg.Pool.MaxEmergency,
	)

	// ── 3. Site registry ────────────────────────────────────────────
	registry, err := sites.Load(cfg.Scraper.SitesFile)
	if err != nil {
		slog.Error("failed to load sites", "file", cfg.Scraper.SitesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("sites loaded", "sites", registry.Keys())

	// ── 4. Browser pool ─────────────────────────────────────────────
	pool := engine.NewPool(engine.NewRodLauncher(cfg.Browser), engine.PoolOptions{
		Size:             cfg.Pool.Size,
		MaxEmergency:     cfg.Pool.MaxEmergency,
		RetryBackoff:     cfg.Pool.LaunchRetryBackoff,
		ReplenishBackoff: cfg.Pool.ReplenishBackoff,
	})

	// A degraded start is logged by the pool; Acquire retries on demand.
	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := pool.Initialize(initCtx); err != nil {
		slog.Warn("browser pool initialization failed", "error", err)
	}
	initCancel()

	// ── 5. Scraper + cache ──────────────────────────────────────────
	sc := scraper.New(pool, registry, cfg.Scraper)
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	// ── 6. Router ───────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(ctx, cfg, api.Deps{
		Scraper:   sc,
		Sites:     registry,
		Pool:      pool,
		Cache:     cc,
		StartTime: time.Now(),
		Version:   version,
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Directory registration ───────────────────────────────────
	var wg sync.WaitGroup
	if cfg.Directory.URL != "" {
		dir := discovery.New(cfg.Directory, version, registry.Keys())
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir.Run(ctx)
		}()
	}

	// ── 9. Graceful shutdown ────────────────────────────────────────
	<-ctx.Done()
	stop()
	slog.Info("shutdown signal received")

	// Scrapes run to completion once started; give them time to drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Run deregisters once ctx is done.
	wg.Wait()

	if err := pool.CloseAll(shutdownCtx); err != nil {
		slog.Warn("browser pool closed with errors", "error", err)
	}
	slog.Info("figscrape stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
