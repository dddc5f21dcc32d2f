package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/logview/internal/adapter/api"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/adapter/repository/memory"
	pgrepo "github.com/user/logview/internal/adapter/repository/postgres"
	redisrepo "github.com/user/logview/internal/adapter/repository/redis"
	"github.com/user/logview/internal/adapter/storage"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/pkg/config"
	"github.com/user/logview/internal/pkg/logger"
	"github.com/user/logview/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.New()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Registry Backend ---
	registry, closeRegistry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize registry", "backend", cfg.RegistryBackend, "error", err)
		os.Exit(1)
	}
	defer closeRegistry()

	// --- Blob Store ---
	store, err := storage.NewLocalStore(cfg.UploadDir, logger)
	if err != nil {
		logger.Error("failed to initialize upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	// --- Use Cases ---
	uploadUC := usecase.NewUploadFileUseCase(registry, store, logger)
	queryUC := usecase.NewQueryLogsUseCase(registry, store, logger, cfg.MaxResults, cfg.ScanChunkSize, cfg.TailScanDepth, cfg.TailBufferSize)
	filesUC := usecase.NewManageFilesUseCase(registry, store, logger)
	cleanupUC := usecase.NewCleanupUseCase(registry, store, logger)

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(logger, m, registry, cleanupUC),
	}
	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- API Server ---
	apiServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     api.NewRouter(cfg, logger, m, uploadUC, queryUC, filesUC),
		ReadTimeout: 5 * time.Minute, // large uploads over slow links
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr, "backend", cfg.RegistryBackend)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

// newRegistry builds the configured registry backend. The returned close
// function releases the backing connection; for the memory backend it is a
// no-op.
func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.FileRegistry, func(), error) {
	switch cfg.RegistryBackend {
	case "memory":
		return memory.NewRegistry(), func() {}, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("connected to redis")
		return redisrepo.NewRegistry(client, logger), func() { client.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		registry := pgrepo.NewRegistry(db, logger)
		if err := registry.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		logger.Info("connected to postgres")
		return registry, func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}
}
