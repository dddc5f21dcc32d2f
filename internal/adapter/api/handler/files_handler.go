package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/logview/internal/adapter/api/middleware"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/usecase"
)

// FilesHandler lists and deletes the session's uploaded files.
type FilesHandler struct {
	useCase *usecase.ManageFilesUseCase
	logger  *slog.Logger
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(uc *usecase.ManageFilesUseCase, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{useCase: uc, logger: logger}
}

// List handles GET /api/files.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionID(r.Context())
	files, err := h.useCase.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list files", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Delete handles DELETE /api/files/{fileID}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileID")
	sessionID := middleware.SessionID(r.Context())

	if _, err := h.useCase.Delete(r.Context(), sessionID, fileID); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("failed to delete file", "error", err, "file_id", fileID)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
