package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/user/logview/internal/adapter/metrics"
	pgrepo "github.com/user/logview/internal/adapter/repository/postgres"
	redisrepo "github.com/user/logview/internal/adapter/repository/redis"
	"github.com/user/logview/internal/adapter/storage"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/pkg/config"
	"github.com/user/logview/internal/pkg/logger"
	"github.com/user/logview/internal/usecase"

	_ "github.com/lib/pq"
)

// The janitor runs the two maintenance tasks on cron schedules: an hourly
// orphan reconcile and a daily full reset. It shares the registry backend
// and upload directory with the server and can run as a separate process.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting janitor worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A memory registry is process-local: a standalone janitor would see no
	// references and its first reconcile run would unlink every stored file.
	if cfg.RegistryBackend == "memory" {
		log.Error("janitor requires a shared registry backend (redis or postgres); refusing to run against the process-local memory backend")
		os.Exit(1)
	}

	registry, closeRegistry, err := newRegistry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize registry", "backend", cfg.RegistryBackend, "error", err)
		os.Exit(1)
	}
	defer closeRegistry()

	store, err := storage.NewLocalStore(cfg.UploadDir, log)
	if err != nil {
		log.Error("failed to initialize upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	cleanupUC := usecase.NewCleanupUseCase(registry, store, log)

	c := cron.New()

	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		removed, err := cleanupUC.Reconcile(ctx, cfg.RetentionMaxAge)
		if err != nil {
			log.Error("reconcile run failed", "error", err)
			return
		}
		m.CleanupRunsTotal.WithLabelValues("reconcile").Inc()
		m.CleanupFilesRemoved.Add(float64(removed))
		updateStoredGauge(cleanupUC, m, log)
	}); err != nil {
		log.Error("invalid reconcile schedule", "schedule", cfg.ReconcileSchedule, "error", err)
		os.Exit(1)
	}

	if _, err := c.AddFunc(cfg.FullResetSchedule, func() {
		removed, err := cleanupUC.FullReset(ctx)
		if err != nil {
			log.Error("full reset run failed", "error", err)
			return
		}
		m.CleanupRunsTotal.WithLabelValues("full_reset").Inc()
		m.CleanupFilesRemoved.Add(float64(removed))
		updateStoredGauge(cleanupUC, m, log)
	}); err != nil {
		log.Error("invalid full reset schedule", "schedule", cfg.FullResetSchedule, "error", err)
		os.Exit(1)
	}

	c.Start()
	log.Info("janitor started",
		"reconcile_schedule", cfg.ReconcileSchedule,
		"full_reset_schedule", cfg.FullResetSchedule,
		"retention_max_age", cfg.RetentionMaxAge,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping janitor...")
	<-c.Stop().Done()
	log.Info("janitor shut down gracefully")
}

func updateStoredGauge(cleanupUC *usecase.CleanupUseCase, m *metrics.Metrics, log *slog.Logger) {
	count, err := cleanupUC.StoredFileCount()
	if err != nil {
		log.Warn("failed to count stored files", "error", err)
		return
	}
	m.StoredFiles.Set(float64(count))
}

// newRegistry mirrors the server's backend selection so both processes agree
// on where registry state lives.
func newRegistry(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.FileRegistry, func(), error) {
	switch cfg.RegistryBackend {
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
		return redisrepo.NewRegistry(client, log), func() { client.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		registry := pgrepo.NewRegistry(db, log)
		if err := registry.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return registry, func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}
}
