package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/logview/internal/adapter/presets"
)

// PresetsHandler serves saved filter presets.
type PresetsHandler struct {
	loader *presets.Loader
	logger *slog.Logger
}

// NewPresetsHandler creates a new PresetsHandler.
func NewPresetsHandler(loader *presets.Loader, logger *slog.Logger) *PresetsHandler {
	return &PresetsHandler{loader: loader, logger: logger}
}

// ServeHTTP handles GET /api/presets. The file is read per request so edits
// are picked up without a restart.
func (h *PresetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.loader.Load()
	if err != nil {
		if errors.Is(err, presets.ErrInvalidFormat) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		h.logger.Error("failed to load presets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Error loading presets",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"presets": list,
	})
}
