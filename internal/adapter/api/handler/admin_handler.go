package handler

import (
	"log/slog"
	"net/http"

	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/usecase"
)

// AdminHandler exposes registry introspection and manual maintenance
// triggers on the admin listener.
type AdminHandler struct {
	registry domain.FileRegistry
	cleanup  *usecase.CleanupUseCase
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(registry domain.FileRegistry, cleanup *usecase.CleanupUseCase, logger *slog.Logger, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{registry: registry, cleanup: cleanup, logger: logger, metrics: m}
}

// HealthCheck handles GET /health.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RegistryStats handles GET /admin/registry/stats.
func (h *AdminHandler) RegistryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read registry stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read registry stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Reconcile handles POST /admin/cleanup/reconcile: an on-demand orphan
// sweep, without age-based expiry.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cleanup.Reconcile(r.Context(), 0)
	if err != nil {
		h.logger.Error("manual reconcile failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Reconcile failed")
		return
	}
	h.metrics.CleanupRunsTotal.WithLabelValues("reconcile").Inc()
	h.metrics.CleanupFilesRemoved.Add(float64(removed))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files_removed": removed})
}

// FullReset handles POST /admin/cleanup/reset: wipe all stored files and
// registry state.
func (h *AdminHandler) FullReset(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cleanup.FullReset(r.Context())
	if err != nil {
		h.logger.Error("manual full reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Reset failed")
		return
	}
	h.metrics.CleanupRunsTotal.WithLabelValues("full_reset").Inc()
	h.metrics.CleanupFilesRemoved.Add(float64(removed))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files_removed": removed})
}
