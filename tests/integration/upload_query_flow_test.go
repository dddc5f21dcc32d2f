package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/logview/internal/adapter/api"
	"github.com/user/logview/internal/adapter/metrics"
	"github.com/user/logview/internal/adapter/repository/memory"
	"github.com/user/logview/internal/adapter/storage"
	"github.com/user/logview/internal/pkg/config"
	"github.com/user/logview/internal/usecase"
)

type testEnv struct {
	server   *httptest.Server
	registry *memory.Registry
	store    *storage.LocalStore
}

var sharedMetrics = metrics.New()

// newTestEnv wires the full API stack against the memory registry and a
// temp upload directory, exactly as a single-process deployment runs it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		UploadDir:      t.TempDir(),
		StaticDir:      t.TempDir(),
		PresetsPath:    t.TempDir() + "/presets.json",
		MaxUploadSize:  10 << 20,
		MaxResults:     50000,
		ScanChunkSize:  1000,
		TailScanDepth:  1000,
		TailBufferSize: 8192,
		SessionSecret:  "integration-test-secret",
		SessionTTL:     time.Hour,
	}

	registry := memory.NewRegistry()
	store, err := storage.NewLocalStore(cfg.UploadDir, logger)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	uploadUC := usecase.NewUploadFileUseCase(registry, store, logger)
	queryUC := usecase.NewQueryLogsUseCase(registry, store, logger, cfg.MaxResults, cfg.ScanChunkSize, cfg.TailScanDepth, cfg.TailBufferSize)
	filesUC := usecase.NewManageFilesUseCase(registry, store, logger)

	router := api.NewRouter(cfg, logger, sharedMetrics, uploadUC, queryUC, filesUC)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, registry: registry, store: store}
}

// newSessionClient returns a client with its own cookie jar, i.e. its own
// anonymous session.
func newSessionClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func uploadLog(t *testing.T, client *http.Client, baseURL, filename, content string) map[string]any {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing form: %v", err)
	}

	resp, err := client.Post(baseURL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload returned %d: %s", resp.StatusCode, raw)
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return decoded
}

func fileID(t *testing.T, uploadResp map[string]any) string {
	t.Helper()
	file, ok := uploadResp["file"].(map[string]any)
	if !ok {
		t.Fatalf("upload response missing file: %v", uploadResp)
	}
	id, _ := file["id"].(string)
	if id == "" {
		t.Fatalf("upload response missing file id: %v", uploadResp)
	}
	return id
}

func queryLogs(t *testing.T, client *http.Client, baseURL, fileID, payload string) (int, map[string]any) {
	t.Helper()
	resp, err := client.Post(baseURL+"/api/logs/"+fileID, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("query request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding query response: %v", err)
	}
	return resp.StatusCode, decoded
}

func TestUploadQueryFlow(t *testing.T) {
	env := newTestEnv(t)
	client := newSessionClient(t)

	content := "[2024-06-01 10:00:00] INFO service started\n" +
		"[2024-06-01 10:00:01] DEBUG cache warmed\n" +
		"no timestamp here\n" +
		"[2024-06-01 10:05:00] ERROR connection refused\n" +
		"[2024-06-01 10:10:00] INFO recovered\n"

	uploadResp := uploadLog(t, client, env.server.URL, "service.log", content)
	if dup, _ := uploadResp["duplicate"].(bool); dup {
		t.Fatal("first upload must not be a duplicate")
	}
	id := fileID(t, uploadResp)

	t.Run("Unfiltered Query", func(t *testing.T) {
		status, resp := queryLogs(t, client, env.server.URL, id, `{}`)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, resp)
		}
		if total := resp["total"].(float64); total != 5 {
			t.Errorf("expected 5 lines, got %v", total)
		}
		if resp["start_time"] != "2024-06-01T10:00:00" {
			t.Errorf("unexpected start_time %v", resp["start_time"])
		}
		if resp["end_time"] != "2024-06-01T10:10:00" {
			t.Errorf("unexpected end_time %v", resp["end_time"])
		}
	})

	t.Run("Filtered Query", func(t *testing.T) {
		status, resp := queryLogs(t, client, env.server.URL, id,
			`{"include": ["ERROR"], "start_date": "2024-06-01", "end_date": "2024-06-02"}`)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, resp)
		}
		if total := resp["total"].(float64); total != 1 {
			t.Errorf("expected 1 line, got %v", total)
		}
		lines := resp["lines"].([]any)
		line := lines[0].(map[string]any)
		if line["line_number"].(float64) != 4 {
			t.Errorf("expected original line number 4, got %v", line["line_number"])
		}
	})

	t.Run("Zero-Match Query Returns Empty Array", func(t *testing.T) {
		status, resp := queryLogs(t, client, env.server.URL, id, `{"include": ["NOMATCH"]}`)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, resp)
		}
		// lines must serialize as [], not null.
		lines, ok := resp["lines"].([]any)
		if !ok {
			t.Fatalf("expected lines to be an array, got %T (%v)", resp["lines"], resp["lines"])
		}
		if len(lines) != 0 {
			t.Errorf("expected no lines, got %v", lines)
		}
		if total := resp["total"].(float64); total != 0 {
			t.Errorf("expected total 0, got %v", total)
		}
	})

	t.Run("Invalid Date Is 400", func(t *testing.T) {
		status, _ := queryLogs(t, client, env.server.URL, id, `{"start_date": "definitely not a date"}`)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})

	t.Run("Time Range Endpoint", func(t *testing.T) {
		resp, err := client.Get(env.server.URL + "/api/files/" + id + "/time-range")
		if err != nil {
			t.Fatalf("time-range request: %v", err)
		}
		defer resp.Body.Close()
		var decoded map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if decoded["start_time"] != "2024-06-01T10:00:00" || decoded["end_time"] != "2024-06-01T10:10:00" {
			t.Errorf("unexpected time range: %v", decoded)
		}
	})
}

func TestDeduplicationAcrossSessions(t *testing.T) {
	env := newTestEnv(t)
	content := "[2024-06-01 10:00:00] shared content\n"

	clientA := newSessionClient(t)
	clientB := newSessionClient(t)

	respA := uploadLog(t, clientA, env.server.URL, "a.log", content)
	respB := uploadLog(t, clientB, env.server.URL, "b.log", content)

	if dup, _ := respB["duplicate"].(bool); dup {
		t.Error("cross-session upload must not be flagged duplicate")
	}

	fileA := respA["file"].(map[string]any)
	fileB := respB["file"].(map[string]any)
	if fileA["stored_name"] != fileB["stored_name"] {
		t.Errorf("expected shared stored file, got %v and %v", fileA["stored_name"], fileB["stored_name"])
	}
	if fileA["id"] == fileB["id"] {
		t.Error("expected distinct per-session file IDs")
	}

	// Re-upload in session A is a duplicate.
	respA2 := uploadLog(t, clientA, env.server.URL, "a-again.log", content)
	if dup, _ := respA2["duplicate"].(bool); !dup {
		t.Error("same-session re-upload must be flagged duplicate")
	}

	// Session B cannot see session A's file.
	idA := fileID(t, respA)
	status, _ := queryLogs(t, clientB, env.server.URL, idA, `{}`)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for another session's file, got %d", status)
	}
}

func TestDeleteReleasesSharedContent(t *testing.T) {
	env := newTestEnv(t)
	content := "[2024-06-01 10:00:00] refcounted content\n"

	clientA := newSessionClient(t)
	clientB := newSessionClient(t)

	idA := fileID(t, uploadLog(t, clientA, env.server.URL, "a.log", content))
	idB := fileID(t, uploadLog(t, clientB, env.server.URL, "b.log", content))

	deleteFile := func(t *testing.T, client *http.Client, id string, wantStatus int) {
		t.Helper()
		req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/api/files/"+id, nil)
		if err != nil {
			t.Fatalf("building delete request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("delete request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != wantStatus {
			t.Fatalf("delete returned %d, want %d", resp.StatusCode, wantStatus)
		}
	}

	deleteFile(t, clientA, idA, http.StatusOK)

	// Session B still queries fine through the surviving reference.
	status, resp := queryLogs(t, clientB, env.server.URL, idB, `{}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200 after other session's delete, got %d: %v", status, resp)
	}

	deleteFile(t, clientB, idB, http.StatusOK)

	names, err := env.store.List()
	if err != nil {
		t.Fatalf("listing store: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty store after final delete, got %v", names)
	}

	deleteFile(t, clientB, idB, http.StatusNotFound)
}

func TestFileListing(t *testing.T) {
	env := newTestEnv(t)
	client := newSessionClient(t)

	for i := 0; i < 3; i++ {
		uploadLog(t, client, env.server.URL, fmt.Sprintf("file-%d.log", i), fmt.Sprintf("content %d\n", i))
	}

	resp, err := client.Get(env.server.URL + "/api/files")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Files []struct {
			OriginalName string `json:"original_name"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(decoded.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(decoded.Files))
	}
	for i, f := range decoded.Files {
		if want := fmt.Sprintf("file-%d.log", i); f.OriginalName != want {
			t.Errorf("file %d: got %q want %q (upload order must be preserved)", i, f.OriginalName, want)
		}
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	client := newSessionClient(t)

	t.Run("Non-Log Extension Rejected", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, _ := mw.CreateFormFile("file", "notes.txt")
		io.WriteString(part, "some text")
		mw.Close()

		resp, err := client.Post(env.server.URL+"/api/upload", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatalf("upload request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Missing File Part Rejected", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		mw.WriteField("notfile", "x")
		mw.Close()

		resp, err := client.Post(env.server.URL+"/api/upload", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatalf("upload request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}
