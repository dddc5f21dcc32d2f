package logquery

import (
	"testing"
	"time"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want time.Time
		ok   bool
	}{
		{
			name: "Plain Prefix",
			line: "[2024-01-15 08:30:45] worker started",
			want: time.Date(2024, 1, 15, 8, 30, 45, 0, time.UTC),
			ok:   true,
		},
		{
			name: "Prefix Only",
			line: "[2024-12-31 23:59:59]",
			want: time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			ok:   true,
		},
		{
			name: "Multiple Spaces Between Date And Time",
			line: "[2024-01-15  08:30:45] padded separator",
			want: time.Date(2024, 1, 15, 8, 30, 45, 0, time.UTC),
			ok:   true,
		},
		{
			name: "Tab Separator",
			line: "[2024-01-15\t08:30:45] tab separated",
			want: time.Date(2024, 1, 15, 8, 30, 45, 0, time.UTC),
			ok:   true,
		},
		{
			name: "Trailing Fraction Ignored",
			line: "[2025-11-19 08:03:22].099 payload",
			want: time.Date(2025, 11, 19, 8, 3, 22, 0, time.UTC),
			ok:   true,
		},
		{name: "Empty Line", line: ""},
		{name: "No Bracket", line: "2024-01-15 08:30:45 no brackets"},
		{name: "Mid Line Timestamp", line: "prefix [2024-01-15 08:30:45] not anchored"},
		{name: "Missing Close Bracket", line: "[2024-01-15 08:30:45 unterminated"},
		{name: "Missing Separator", line: "[2024-01-1508:30:45]"},
		{name: "Short Components", line: "[2024-1-15 08:30:45]"},
		{name: "Non Digit", line: "[2024-01-xy 08:30:45]"},
		{name: "Month Thirteen", line: "[2024-13-01 08:30:45]"},
		{name: "Month Zero", line: "[2024-00-10 08:30:45]"},
		{name: "February Thirtieth", line: "[2024-02-30 08:30:45]"},
		{name: "Hour Out Of Range", line: "[2024-01-15 24:00:00]"},
		{name: "Minute Out Of Range", line: "[2024-01-15 08:60:45]"},
		{name: "Second Out Of Range", line: "[2024-01-15 08:30:61]"},
		{name: "Truncated", line: "[2024-01-15 08:3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTimestamp(tt.line)
			if ok != tt.ok {
				t.Fatalf("ExtractTimestamp(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ExtractTimestamp(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestExtractTimestampLeapDay(t *testing.T) {
	if _, ok := ExtractTimestamp("[2024-02-29 00:00:00] leap year"); !ok {
		t.Error("expected 2024-02-29 to parse in a leap year")
	}
	if _, ok := ExtractTimestamp("[2023-02-29 00:00:00] not a leap year"); ok {
		t.Error("expected 2023-02-29 to be rejected")
	}
}

func BenchmarkExtractTimestamp(b *testing.B) {
	line := "[2024-01-15 08:30:45] GET /api/files 200 12ms"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ExtractTimestamp(line)
	}
}
