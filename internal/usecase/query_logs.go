package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/logquery"
)

// QueryRequest is the structured form of a log query as received from the
// API. Date strings are free-form and parsed permissively; CaseSensitive
// defaults to true when absent.
type QueryRequest struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Include       []string `json:"include"`
	Exclude       []string `json:"exclude"`
	Logic         string   `json:"logic"`
	CaseSensitive *bool    `json:"case_sensitive"`
}

// QueryLogsUseCase runs filtered scans and whole-file time-range lookups
// against a session's files.
type QueryLogsUseCase struct {
	registry       domain.FileRegistry
	store          domain.BlobStore
	logger         *slog.Logger
	maxResults     int
	chunkSize      int
	tailDepth      int
	tailBufferSize int
}

// NewQueryLogsUseCase creates a new QueryLogsUseCase. Non-positive limits
// fall back to the engine defaults.
func NewQueryLogsUseCase(registry domain.FileRegistry, store domain.BlobStore, logger *slog.Logger, maxResults, chunkSize, tailDepth, tailBufferSize int) *QueryLogsUseCase {
	if maxResults <= 0 {
		maxResults = 50000
	}
	return &QueryLogsUseCase{
		registry:       registry,
		store:          store,
		logger:         logger,
		maxResults:     maxResults,
		chunkSize:      chunkSize,
		tailDepth:      tailDepth,
		tailBufferSize: tailBufferSize,
	}
}

// Query compiles the request into a filter plan and streams the file through
// it, accumulating chunks until the result cap is reached. The scan engine
// itself is cap-unaware: truncation is applied here by slicing the final
// chunk and abandoning the scanner.
func (uc *QueryLogsUseCase) Query(ctx context.Context, sessionID, fileID string, req QueryRequest) (*domain.QueryResult, error) {
	rec, err := uc.resolve(ctx, sessionID, fileID)
	if err != nil {
		return nil, err
	}

	specs, logic, caseSensitive, err := uc.buildSpecs(req)
	if err != nil {
		return nil, err
	}
	plan := logquery.Compile(specs, logic, caseSensitive)

	f, err := uc.store.Open(rec.StoredName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFileGone
		}
		return nil, fmt.Errorf("failed to open %s: %w", rec.StoredName, err)
	}
	defer f.Close()

	// Lines starts non-nil so a zero-match query serializes as [] rather
	// than null.
	result := &domain.QueryResult{Lines: []domain.LogLine{}, MaxResults: uc.maxResults}
	scanner := logquery.NewScanner(f, plan, uc.chunkSize)
	for scanner.Next() {
		chunk := scanner.Chunk()
		if len(result.Lines)+len(chunk) > uc.maxResults {
			remaining := uc.maxResults - len(result.Lines)
			result.Lines = append(result.Lines, chunk[:remaining]...)
			result.Truncated = true
			break
		}
		result.Lines = append(result.Lines, chunk...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", rec.StoredName, err)
	}

	result.Total = len(result.Lines)
	result.StartTime, result.EndTime = logquery.TimeBounds(result.Lines)

	uc.logger.Debug("query completed",
		"session_id", shortID(sessionID),
		"file_id", fileID,
		"total", result.Total,
		"truncated", result.Truncated,
	)
	return result, nil
}

// TimeRange returns the first and last timestamp of the whole file without a
// full forward read: the head is scanned forward only to the first hit and
// the end timestamp comes from a bounded backward tail scan.
func (uc *QueryLogsUseCase) TimeRange(ctx context.Context, sessionID, fileID string) (*domain.TimeRange, error) {
	rec, err := uc.resolve(ctx, sessionID, fileID)
	if err != nil {
		return nil, err
	}

	f, err := uc.store.Open(rec.StoredName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFileGone
		}
		return nil, fmt.Errorf("failed to open %s: %w", rec.StoredName, err)
	}
	defer f.Close()

	start, err := logquery.FirstTimestamp(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rec.StoredName, err)
	}
	end, err := logquery.LastTimestamp(f, uc.tailDepth, uc.tailBufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to tail %s: %w", rec.StoredName, err)
	}

	return &domain.TimeRange{StartTime: start, EndTime: end}, nil
}

func (uc *QueryLogsUseCase) resolve(ctx context.Context, sessionID, fileID string) (domain.FileRecord, error) {
	files, err := uc.registry.SessionFiles(ctx, sessionID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	for _, rec := range files {
		if rec.ID == fileID {
			return rec, nil
		}
	}
	return domain.FileRecord{}, domain.ErrFileNotFound
}

// buildSpecs validates the request and lowers it into filter specs. A bad
// date bound rejects the whole query before any scan begins.
func (uc *QueryLogsUseCase) buildSpecs(req QueryRequest) ([]logquery.Spec, logquery.Logic, bool, error) {
	var specs []logquery.Spec

	startStr := strings.TrimSpace(req.StartDate)
	endStr := strings.TrimSpace(req.EndDate)
	if startStr != "" || endStr != "" {
		var start, end *time.Time
		if startStr != "" {
			t, err := parseNaiveDate(startStr)
			if err != nil {
				return nil, 0, false, fmt.Errorf("%w: start_date %q: %v", domain.ErrInvalidDate, startStr, err)
			}
			start = &t
		}
		if endStr != "" {
			t, err := parseNaiveDate(endStr)
			if err != nil {
				return nil, 0, false, fmt.Errorf("%w: end_date %q: %v", domain.ErrInvalidDate, endStr, err)
			}
			end = &t
		}
		specs = append(specs, logquery.DateRange(start, end))
	}

	for _, term := range req.Include {
		if term != "" {
			specs = append(specs, logquery.Include(term))
		}
	}
	for _, term := range req.Exclude {
		if term != "" {
			specs = append(specs, logquery.Exclude(term))
		}
	}

	caseSensitive := true
	if req.CaseSensitive != nil {
		caseSensitive = *req.CaseSensitive
	}
	return specs, logquery.ParseLogic(req.Logic), caseSensitive, nil
}

// parseNaiveDate parses a free-form date string permissively and drops any
// timezone component, keeping the wall-clock fields as a naive value.
func parseNaiveDate(value string) (time.Time, error) {
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
}
