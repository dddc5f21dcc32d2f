package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/user/logview/internal/adapter/api/middleware"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/usecase"
)

// UploadHandler handles multipart log file uploads.
type UploadHandler struct {
	useCase       *usecase.UploadFileUseCase
	logger        *slog.Logger
	metrics       *metrics.Metrics
	maxUploadSize int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uc *usecase.UploadFileUseCase, logger *slog.Logger, m *metrics.Metrics, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{
		useCase:       uc,
		logger:        logger,
		metrics:       m,
		maxUploadSize: maxUploadSize,
	}
}

// ServeHTTP accepts a multipart form with a "file" part. A gzip
// Content-Encoding on the request body is decompressed transparently; the
// size limit applies to the wire bytes, not the decompressed stream.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusBadRequest, "Invalid gzip body")
			return
		}
		defer gz.Close()
		body = gz
	}

	part, err := nextFilePart(body, r.Header.Get("Content-Type"))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()

	originalName := sanitizeFilename(part.FileName())
	if originalName == "" {
		h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedFile(originalName) {
		h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "Only .log files are allowed")
		return
	}

	sessionID := middleware.SessionID(r.Context())
	counted := &countingReader{r: part}
	rec, duplicate, err := h.useCase.Upload(r.Context(), sessionID, originalName, counted)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		h.metrics.UploadsTotal.WithLabelValues("error").Inc()
		h.logger.Error("upload failed", "error", err, "file", originalName)
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	if duplicate {
		h.metrics.UploadsTotal.WithLabelValues("duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"file":      rec,
			"duplicate": true,
			"message":   "You have already uploaded this file",
		})
		return
	}

	h.metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	h.metrics.UploadBytesTotal.Add(float64(counted.n))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"file":      rec,
		"duplicate": false,
	})
}

// nextFilePart walks the multipart stream to the "file" part. Reading the
// stream directly avoids spooling the form to disk a second time; the upload
// use case already spools the part while hashing it.
func nextFilePart(body io.Reader, contentType string) (*filePart, error) {
	mr, err := multipartReader(body, contentType)
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("No file provided")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return &filePart{part}, nil
		}
		_ = part.Close()
	}
}

type filePart struct {
	*multipart.Part
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func multipartReader(body io.Reader, contentType string) (*multipart.Reader, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, errors.New("Expected a multipart form")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, errors.New("Malformed multipart form")
	}
	return multipart.NewReader(body, boundary), nil
}

// sanitizeFilename strips any path components a client might smuggle into
// the multipart filename.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// allowedFile reports whether the name carries a .log extension.
func allowedFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".log") && len(name) > len(".log")
}
