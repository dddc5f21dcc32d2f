package api

import (
	"log/slog"
	"net/http"

	"github.com/user/logview/internal/adapter/api/handler"
	"github.com/user/logview/internal/adapter/api/middleware"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/adapter/presets"
	"github.com/user/logview/internal/pkg/config"
	"github.com/user/logview/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the log viewer.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
	uploadUC *usecase.UploadFileUseCase,
	queryUC *usecase.QueryLogsUseCase,
	filesUC *usecase.ManageFilesUseCase,
) http.Handler {
	mux := http.NewServeMux()

	uploadHandler := handler.NewUploadHandler(uploadUC, logger, m, cfg.MaxUploadSize)
	queryHandler := handler.NewQueryHandler(queryUC, logger, m)
	filesHandler := handler.NewFilesHandler(filesUC, logger)
	presetsHandler := handler.NewPresetsHandler(presets.NewLoader(cfg.PresetsPath), logger)

	mux.Handle("POST /api/upload", uploadHandler)
	mux.HandleFunc("GET /api/files", filesHandler.List)
	mux.HandleFunc("DELETE /api/files/{fileID}", filesHandler.Delete)
	mux.HandleFunc("GET /api/files/{fileID}/time-range", queryHandler.TimeRange)
	mux.HandleFunc("POST /api/logs/{fileID}", queryHandler.Query)
	mux.Handle("GET /api/presets", presetsHandler)

	// Frontend assets.
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	// Session middleware wraps outermost so the request context carries the
	// session ID by the time the access log line is emitted.
	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL, logger)
	return sessions.Middleware(middleware.Logging(logger)(mux))
}
