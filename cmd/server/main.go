// Package main provides the API server entry point for the validator dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/validator-dashboard/internal/api"
	"github.com/validator-dashboard/internal/config"
	"github.com/validator-dashboard/internal/logging"
	"github.com/validator-dashboard/internal/policy"
	"github.com/validator-dashboard/internal/service"
	"github.com/validator-dashboard/internal/storage"
	"github.com/validator-dashboard/internal/timerange"
)

func main() {
	migrateOnStart := flag.Bool("migrate", false, "Apply pending Postgres migrations before serving")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnStart {
		if err := storage.RunMigrations(cfg.Database.Postgres.URL(), cfg.Database.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		logger.Info("Migrations applied")
	}

	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	deps := map[string]api.Pinger{"postgres": postgres}

	// Redis is optional: without it every history request reads Postgres
	var cache service.HistoryCache
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(ctx, &cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, history caching disabled")
		} else {
			defer func() { _ = redis.Close() }()
			cache = storage.NewCacheService(redis, cfg.Cache.TTL)
			deps["redis"] = redis
		}
	}

	registry := policy.DefaultRegistry().Subset(cfg.Networks.Served)
	if len(cfg.Networks.Served) > 0 && len(registry.Networks()) == 0 {
		logger.WithField("networks", cfg.Networks.Served).Fatal("NETWORKS names no known network")
	}
	resolver := timerange.NewResolver(cfg.RangeLocation(), nil)

	dashboard := service.NewDashboardService(
		storage.NewSnapshotRepository(postgres.Pool()),
		cache,
		registry,
		resolver,
		logger,
	)

	logger.WithFields(map[string]interface{}{
		"networks":     registry.Networks(),
		"range_offset": cfg.Networks.RangeOffset,
		"cache":        cache != nil,
	}).Info("Dashboard service initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimit.RPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, dashboard, deps)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
