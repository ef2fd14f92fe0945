// Command serpent runs the search scraping REST gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/serpent/internal/block"
	"github.com/FranksOps/serpent/internal/browser"
	"github.com/FranksOps/serpent/internal/config"
	"github.com/FranksOps/serpent/internal/crawler"
	"github.com/FranksOps/serpent/internal/memory"
	"github.com/FranksOps/serpent/internal/memory/jsonfile"
	"github.com/FranksOps/serpent/internal/memory/postgres"
	"github.com/FranksOps/serpent/internal/memory/sqlite"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/search"
	"github.com/FranksOps/serpent/internal/server"
	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/ratelimit"
	"github.com/FranksOps/serpent/pkg/useragent"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (empty uses defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	agents := useragent.NewPool(nil)

	var proxies *proxy.Pool
	if cfg.Proxy.Enabled {
		proxies = proxy.NewPool(proxy.Config{})
		if cfg.Proxy.File != "" {
			if err := proxies.LoadFile(cfg.Proxy.File); err != nil {
				return fmt.Errorf("load proxy file: %w", err)
			}
		}
		if len(cfg.Proxy.URLs) > 0 {
			if err := proxies.Add(cfg.Proxy.URLs...); err != nil {
				return fmt.Errorf("add proxies: %w", err)
			}
		}
		logger.Info("proxy pool ready", "size", proxies.Size())
	}

	engine, err := browser.NewEngine(browser.Config{
		Headless:     cfg.Browser.Headless,
		ChromePath:   cfg.Browser.ChromePath,
		NavTimeout:   time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
	}, agents, logger)
	if err != nil {
		return fmt.Errorf("browser engine: %w", err)
	}
	engine.Proxies = proxies

	detectors := block.DefaultDetectors()
	detectors = append(detectors, block.FromPatterns(cfg.Search.BlockPatterns)...)

	limiter := ratelimit.NewLimiter(cfg.Search.RateLimit,
		time.Duration(cfg.Search.RateWindowSec)*time.Second,
		time.Duration(cfg.Search.CooldownSec)*time.Second)

	searcher := search.New(search.EngineOpener{Engine: engine}, search.Config{
		Detectors:      detectors,
		Limiter:        limiter,
		SessionTimeout: time.Duration(cfg.Search.TimeoutSec) * time.Second,
		Logger:         logger,
	})

	fetcher, err := crawler.NewFetcher(crawler.FetchConfig{
		ProxyPool: proxies,
		UAPool:    agents,
		Detectors: detectors,
	})
	if err != nil {
		return fmt.Errorf("crawl fetcher: %w", err)
	}
	crawl := crawler.New(crawler.Config{
		Concurrency:       cfg.Crawl.Concurrency,
		UserAgent:         cfg.Crawl.UserAgent,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		Jitter:            cfg.Crawl.Jitter,
	}, fetcher, logger)

	store, err := openStore(cfg.Memory)
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}
	logger.Info("memory store ready", "backend", cfg.Memory.Backend)

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.Start(cfg.Metrics.Port)
		logger.Info("metrics listening", "port", cfg.Metrics.Port)
	}

	gateway := server.New(server.Options{
		Config:   cfg,
		Searcher: searcher,
		Loader:   engine,
		Crawler:  crawl,
		Store:    store,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- gateway.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		_ = store.Close()
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := gateway.Shutdown(ctx); err != nil {
		logger.Error("gateway shutdown", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(ctx); err != nil {
			logger.Error("metrics shutdown", "err", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("memory store close", "err", err)
	}
	return nil
}

func openStore(cfg config.MemoryConfig) (memory.Store, error) {
	switch cfg.Backend {
	case "file":
		return jsonfile.New(cfg.Path)
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown memory backend: %q", cfg.Backend)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
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
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
