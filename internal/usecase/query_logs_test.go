package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/domain/mocks"
)

func queryFixture(t *testing.T, content string) (*QueryLogsUseCase, *mocks.MockBlobStore) {
	t.Helper()
	store := mocks.NewMockBlobStore()
	store.Files["stored.log"] = []byte(content)
	registry := &mocks.MockFileRegistry{
		SessionFilesResult: []domain.FileRecord{
			{ID: "file-1", OriginalName: "app.log", StoredName: "stored.log"},
		},
	}
	uc := NewQueryLogsUseCase(registry, store, testLogger(), 50000, 0, 1000, 8192)
	return uc, store
}

func TestQueryLogsUseCase_Query(t *testing.T) {
	ctx := context.Background()
	content := "[2024-01-01 00:00:00] service start\n" +
		"plain text line\n" +
		"[2024-01-01 12:00:00] ERROR disk full\n" +
		"[2024-01-02 00:00:00] service stop\n"

	t.Run("No Filters Returns Everything", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 4 {
			t.Errorf("expected 4 lines, got %d", res.Total)
		}
		if res.Truncated {
			t.Error("expected no truncation")
		}
		if res.StartTime == nil || res.EndTime == nil {
			t.Fatal("expected time bounds from emitted lines")
		}
		if got := res.StartTime.Format("2006-01-02 15:04:05"); got != "2024-01-01 00:00:00" {
			t.Errorf("unexpected start time %s", got)
		}
		if got := res.EndTime.Format("2006-01-02 15:04:05"); got != "2024-01-02 00:00:00" {
			t.Errorf("unexpected end time %s", got)
		}
	})

	t.Run("Date Range Drops Untimestamped Lines", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{
			StartDate: "2024-01-01",
			EndDate:   "2024-01-01 23:59:59",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 2 {
			t.Fatalf("expected 2 lines, got %d", res.Total)
		}
		for _, line := range res.Lines {
			if strings.Contains(line.Content, "plain text") {
				t.Error("untimestamped line must not pass a date filter")
			}
		}
	})

	t.Run("Date Filter ANDs Even Under OR Logic", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{
			StartDate: "2024-01-02",
			Include:   []string{"ERROR"},
			Logic:     "OR",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 0 {
			t.Errorf("expected 0 lines: the ERROR line is outside the date range, got %d", res.Total)
		}
		if res.Lines == nil {
			t.Error("Lines must be an empty slice, not nil, so clients always see an array")
		}
	})

	t.Run("Include And Exclude Terms", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{
			Include: []string{"service"},
			Exclude: []string{"stop"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 1 {
			t.Fatalf("expected 1 line, got %d", res.Total)
		}
		if !strings.Contains(res.Lines[0].Content, "service start") {
			t.Errorf("unexpected line %q", res.Lines[0].Content)
		}
	})

	t.Run("Case Insensitive Search", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		insensitive := false
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{
			Include:       []string{"error"},
			CaseSensitive: &insensitive,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 1 {
			t.Errorf("expected 1 line with case folding, got %d", res.Total)
		}
	})

	t.Run("Result Cap Truncates", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&sb, "line %d\n", i)
		}
		store := mocks.NewMockBlobStore()
		store.Files["stored.log"] = []byte(sb.String())
		registry := &mocks.MockFileRegistry{
			SessionFilesResult: []domain.FileRecord{{ID: "file-1", StoredName: "stored.log"}},
		}
		uc := NewQueryLogsUseCase(registry, store, testLogger(), 5, 3, 1000, 8192)

		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.Truncated {
			t.Error("expected truncation flag")
		}
		if res.Total != 5 {
			t.Errorf("expected exactly 5 lines, got %d", res.Total)
		}
		if res.MaxResults != 5 {
			t.Errorf("expected max_results 5, got %d", res.MaxResults)
		}
		if res.Lines[4].LineNumber != 5 {
			t.Errorf("expected last line number 5, got %d", res.Lines[4].LineNumber)
		}
	})

	t.Run("Matched Lines Without Timestamps Yield No Bounds", func(t *testing.T) {
		uc, _ := queryFixture(t, "[2024-01-01 00:00:00] start\nplain text\n[2024-01-02 00:00:00] end\n")
		res, err := uc.Query(ctx, "s", "file-1", QueryRequest{Include: []string{"plain"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 1 || res.Lines[0].Content != "plain text" {
			t.Fatalf("expected only the middle line, got %+v", res.Lines)
		}
		if res.StartTime != nil || res.EndTime != nil {
			t.Error("bounds must be absent when no matched line has a timestamp")
		}
	})

	t.Run("Invalid Date Rejected", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		_, err := uc.Query(ctx, "s", "file-1", QueryRequest{StartDate: "not a date"})
		if !errors.Is(err, domain.ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate, got %v", err)
		}
	})

	t.Run("Unknown File ID", func(t *testing.T) {
		uc, _ := queryFixture(t, content)
		_, err := uc.Query(ctx, "s", "no-such-file", QueryRequest{})
		if !errors.Is(err, domain.ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("Registered But Missing On Disk", func(t *testing.T) {
		uc, store := queryFixture(t, content)
		delete(store.Files, "stored.log")
		_, err := uc.Query(ctx, "s", "file-1", QueryRequest{})
		if !errors.Is(err, domain.ErrFileGone) {
			t.Fatalf("expected ErrFileGone, got %v", err)
		}
	})
}

func TestQueryLogsUseCase_TimeRange(t *testing.T) {
	ctx := context.Background()

	t.Run("First And Last Timestamps", func(t *testing.T) {
		content := "noise before\n" +
			"[2024-03-01 08:00:00] first\n" +
			"[2024-03-01 09:30:00] middle\n" +
			"[2024-03-05 23:59:59] last\n" +
			"trailing noise\n"
		uc, _ := queryFixture(t, content)

		tr, err := uc.TimeRange(ctx, "s", "file-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.StartTime == nil || tr.EndTime == nil {
			t.Fatal("expected both bounds")
		}
		if got := tr.StartTime.Format("2006-01-02 15:04:05"); got != "2024-03-01 08:00:00" {
			t.Errorf("unexpected start %s", got)
		}
		if got := tr.EndTime.Format("2006-01-02 15:04:05"); got != "2024-03-05 23:59:59" {
			t.Errorf("unexpected end %s", got)
		}
	})

	t.Run("No Timestamps At All", func(t *testing.T) {
		uc, _ := queryFixture(t, "just\nplain\nlines\n")
		tr, err := uc.TimeRange(ctx, "s", "file-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.StartTime != nil || tr.EndTime != nil {
			t.Error("expected nil bounds for an untimestamped file")
		}
	})
}
