package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogging(t *testing.T) {
	t.Run("Logs Status Bytes And Duration", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("missing"))
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files", nil))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("decoding log line: %v", err)
		}
		if entry["status"] != float64(http.StatusNotFound) {
			t.Errorf("expected status 404, got %v", entry["status"])
		}
		if entry["bytes"] != float64(len("missing")) {
			t.Errorf("expected byte count, got %v", entry["bytes"])
		}
		if entry["path"] != "/api/files" {
			t.Errorf("expected path, got %v", entry["path"])
		}
	})

	t.Run("Includes Session ID When Wrapped By Session Middleware", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		sessions := NewSessions("test-secret", time.Hour, logger)

		var minted string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			minted = SessionID(r.Context())
		})
		handler := sessions.Middleware(Logging(logger)(inner))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("decoding log line: %v", err)
		}
		sid, ok := entry["session_id"].(string)
		if !ok || sid == "" {
			t.Fatalf("expected a session_id attribute, got %v", entry["session_id"])
		}
		if !strings.HasPrefix(minted, sid) {
			t.Errorf("logged session_id %q is not a prefix of the minted session %q", sid, minted)
		}
	})
}
