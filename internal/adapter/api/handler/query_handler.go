package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/logview/internal/adapter/api/middleware"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/usecase"
)

// timeWire is the response format for timestamps. The values are naive wall
// clocks, so no zone suffix is emitted.
const timeWire = "2006-01-02T15:04:05"

// QueryHandler serves filtered log queries and file time ranges.
type QueryHandler struct {
	useCase *usecase.QueryLogsUseCase
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(uc *usecase.QueryLogsUseCase, logger *slog.Logger, m *metrics.Metrics) *QueryHandler {
	return &QueryHandler{useCase: uc, logger: logger, metrics: m}
}

// Query handles POST /api/logs/{fileID}. An empty or absent JSON body means
// no filtering.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileID")
	sessionID := middleware.SessionID(r.Context())

	// An empty body is a valid unfiltered query.
	var req usecase.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.metrics.QueriesTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start := time.Now()
	result, err := h.useCase.Query(r.Context(), sessionID, fileID, req)
	if err != nil {
		h.writeQueryError(w, err, fileID)
		return
	}
	h.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	h.metrics.QueryLinesReturned.Observe(float64(result.Total))
	if result.Truncated {
		h.metrics.QueriesTotal.WithLabelValues("truncated").Inc()
	} else {
		h.metrics.QueriesTotal.WithLabelValues("ok").Inc()
	}

	resp := map[string]any{
		"lines":       result.Lines,
		"total":       result.Total,
		"truncated":   result.Truncated,
		"max_results": result.MaxResults,
	}
	if result.StartTime != nil {
		resp["start_time"] = result.StartTime.Format(timeWire)
	}
	if result.EndTime != nil {
		resp["end_time"] = result.EndTime.Format(timeWire)
	}
	writeJSON(w, http.StatusOK, resp)
}

// TimeRange handles GET /api/files/{fileID}/time-range. Bounds the file does
// not have are simply absent from the response.
func (h *QueryHandler) TimeRange(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileID")
	sessionID := middleware.SessionID(r.Context())

	tr, err := h.useCase.TimeRange(r.Context(), sessionID, fileID)
	if err != nil {
		h.writeQueryError(w, err, fileID)
		return
	}

	resp := map[string]any{}
	if tr.StartTime != nil {
		resp["start_time"] = tr.StartTime.Format(timeWire)
	}
	if tr.EndTime != nil {
		resp["end_time"] = tr.EndTime.Format(timeWire)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QueryHandler) writeQueryError(w http.ResponseWriter, err error, fileID string) {
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		h.metrics.QueriesTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFileNotFound):
		h.metrics.QueriesTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, domain.ErrFileGone):
		h.metrics.QueriesTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "File no longer exists")
	default:
		h.metrics.QueriesTotal.WithLabelValues("error").Inc()
		h.logger.Error("query failed", "error", err, "file_id", fileID)
		writeError(w, http.StatusInternalServerError, "Error reading log file")
	}
}
