package domain

import "time"

// FileRecord is one session's reference to a stored log file. Multiple
// records (across sessions) may point at the same stored content; the
// Fingerprint ties them together.
type FileRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	Fingerprint  string    `json:"hash"`
	UploadTime   time.Time `json:"upload_time"`
}

// LogLine is a single line of a scanned log file. LineNumber is the 1-based
// position in the raw stream and is preserved even when surrounding lines
// are filtered out.
type LogLine struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

// QueryResult is the outcome of a filtered scan over one file. StartTime and
// EndTime are derived from the emitted lines and are nil when no emitted
// line carries a timestamp.
type QueryResult struct {
	Lines      []LogLine
	Total      int
	Truncated  bool
	MaxResults int
	StartTime  *time.Time
	EndTime    *time.Time
}

// TimeRange is the first and last timestamp found in a whole file. Both
// fields are nil when the file contains no parsable timestamp.
type TimeRange struct {
	StartTime *time.Time
	EndTime   *time.Time
}

// RegistryStats is a point-in-time summary of registry contents, served by
// the admin API.
type RegistryStats struct {
	Sessions     int `json:"sessions"`
	FileRefs     int `json:"file_refs"`
	StoredFiles  int `json:"stored_files"`
	Fingerprints int `json:"fingerprints"`
}
