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

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Yemba/vistatv-live-dashboard/internal/archive"
	"github.com/Yemba/vistatv-live-dashboard/internal/broadcast"
	"github.com/Yemba/vistatv-live-dashboard/internal/cache"
	"github.com/Yemba/vistatv-live-dashboard/internal/config"
	"github.com/Yemba/vistatv-live-dashboard/internal/ingest"
	"github.com/Yemba/vistatv-live-dashboard/internal/logging"
	"github.com/Yemba/vistatv-live-dashboard/internal/server"
	"github.com/Yemba/vistatv-live-dashboard/internal/upstream"
	"github.com/Yemba/vistatv-live-dashboard/internal/version"
)

const shutdownTimeout = 10 * time.Second

// redisPinger adapts the go-redis client to the server's health check.
type redisPinger struct {
	rdb *goredis.Client
}

func (r redisPinger) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Starting live dashboard", "env", cfg.AppEnv, "version", info.Version, "commit", info.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var (
		store       cache.Store
		redisHealth server.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		rdb := goredis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		store = cache.NewRedisStore(rdb)
		redisHealth = redisPinger{rdb: rdb}
		slog.Info("Using Redis snapshot store")
	} else {
		store = cache.NewMemoryStore()
		slog.Info("Using in-memory snapshot store")
	}

	var (
		windowArchive  ingest.Archiver
		postgresHealth server.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		pg, err := archive.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect window archive: %w", err)
		}
		defer pg.Close()

		windowArchive = pg
		postgresHealth = pg
		slog.Info("Window archive enabled")
	}

	broadcaster := broadcast.NewBroadcaster(clock, cfg.MaxClientsPerScope)
	defer broadcaster.Stop()

	svc := ingest.NewService(store, broadcaster, windowArchive, clock)
	gateway := upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamTimeout)

	if cfg.PollInterval > 0 {
		poller := ingest.NewPoller(gateway, svc, clock, cfg.PollInterval)
		go poller.Run(ctx)
	}

	srv := server.NewServer(cfg, svc, gateway, broadcaster, redisHealth, postgresHealth)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
