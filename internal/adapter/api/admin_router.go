package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/logview/internal/adapter/api/handler"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/usecase"
)

// NewAdminRouter creates and configures the HTTP router for the admin
// listener: health, metrics, registry stats and manual maintenance.
func NewAdminRouter(
	logger *slog.Logger,
	m *metrics.Metrics,
	registry domain.FileRegistry,
	cleanupUC *usecase.CleanupUseCase,
) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(registry, cleanupUC, logger, m)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /admin/registry/stats", adminHandler.RegistryStats)
	mux.HandleFunc("POST /admin/cleanup/reconcile", adminHandler.Reconcile)
	mux.HandleFunc("POST /admin/cleanup/reset", adminHandler.FullReset)

	return mux
}
