package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/api"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/auth"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/config"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/constellation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/coverage"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/health"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/stream"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tracing"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("SATCOMS_CONFIG"), bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.Shutdown(tctx, shutdownTracing, logger)
	}()

	clk := clock.System{}

	store, closeStore, err := openStore(cfg.TLE, clk)
	if err != nil {
		return err
	}
	defer closeStore()

	fetcher := tle.NewHTTPFetcher(cfg.TLE.SourceURL, cfg.TLE.FetchTimeout, logger)
	mgr := tle.NewManager(store, fetcher, clk, tle.ManagerConfig{TTL: cfg.TLE.TTL}, logger)

	prop := propagation.NewSGP4(logger)
	pool := propagation.NewWorkerPool(cfg.Propagation.Workers, logger)
	svc := coverage.NewService(mgr, pool, prop, clk, logger)

	streamHandler := stream.NewHandler(svc, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		MaxTotal:           cfg.Stream.MaxTotal,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		TrustProxy:         cfg.HTTP.TrustProxy,
	}, logger)

	var ready []health.Check
	if p, ok := store.(tle.Pinger); ok {
		ready = append(ready, health.Check{Name: "tle_store", Fn: p.Ping})
	}

	srv := api.NewServer(api.Config{
		Addr:           cfg.HTTP.Addr,
		Auth:           auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token},
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		TrustProxy:     cfg.HTTP.TrustProxy,
	}, api.Deps{
		Coverage:    svc,
		Catalog:     mgr,
		Propagator:  prop,
		Stream:      streamHandler,
		ReadyChecks: ready,
		Clock:       clk,
	}, logger)

	go reportCacheAge(ctx, mgr, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_backend", cfg.TLE.Backend,
			"tle_ttl_seconds", cfg.TLE.TTL.Seconds(),
			"prop_workers", pool.Workers(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore builds the configured catalog store and its cleanup.
func openStore(cfg config.TLEConfig, clk clock.Clock) (tle.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return tle.NewMemoryStore(clk), func() {}, nil
	case config.BackendRedis:
		client, err := tle.ConnectRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return tle.NewRedisStore(client, clk), func() { _ = client.Close() }, nil
	default:
		return tle.NewFileStore(cfg.CacheDir, cfg.MaxFiles, clk), func() {}, nil
	}
}

// reportCacheAge refreshes the cache-age gauge for every constellation
// without triggering fetches.
func reportCacheAge(ctx context.Context, mgr *tle.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, c := range constellation.All() {
				age, err := mgr.Age(ctx, c.Group)
				if err != nil {
					if !errors.Is(err, tle.ErrNotFound) {
						logger.Debug("cache age unavailable", "group", c.Group, "error", err)
					}
					continue
				}
				metrics.SetTLECacheAge(c.Group, age)
			}
		case <-ctx.Done():
			return
		}
	}
}
