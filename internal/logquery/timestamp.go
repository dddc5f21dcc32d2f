// Package logquery implements the streaming log-query engine: timestamp
// extraction from bracketed line prefixes, compiled filter plans, chunked
// forward scans, and backward tail scans over log files.
package logquery

import "time"

// Shortest possible prefix: "[YYYY-MM-DD HH:MM:SS]".
const tsMinLen = 21

// ExtractTimestamp parses a bracketed timestamp prefix of the form
// "[YYYY-MM-DD HH:MM:SS]" anchored at the start of line, with one or more
// whitespace bytes between the date and time parts. The value is naive: no
// timezone is ever parsed or attached, and UTC is used purely as a neutral
// location for comparisons. Lines without a well-formed, calendar-valid
// prefix return ok=false, never an error.
//
// This runs once per line on every date-filtered or time-range query, so it
// is a hand-rolled byte walk rather than a regexp or time.Parse call.
func ExtractTimestamp(line string) (ts time.Time, ok bool) {
	if len(line) < tsMinLen || line[0] != '[' {
		return time.Time{}, false
	}

	i := 1
	year, i, ok := fixedDigits(line, i, 4)
	if !ok || !expect(line, i, '-') {
		return time.Time{}, false
	}
	month, i, ok := fixedDigits(line, i+1, 2)
	if !ok || !expect(line, i, '-') {
		return time.Time{}, false
	}
	day, i, ok := fixedDigits(line, i+1, 2)
	if !ok {
		return time.Time{}, false
	}
	i, ok = skipSpace(line, i)
	if !ok {
		return time.Time{}, false
	}
	hour, i, ok := fixedDigits(line, i, 2)
	if !ok || !expect(line, i, ':') {
		return time.Time{}, false
	}
	minute, i, ok := fixedDigits(line, i+1, 2)
	if !ok || !expect(line, i, ':') {
		return time.Time{}, false
	}
	sec, i, ok := fixedDigits(line, i+1, 2)
	if !ok || !expect(line, i, ']') {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	// time.Date normalizes out-of-range components (month 13 rolls into the
	// next year); a round-trip mismatch means the prefix was not a real
	// calendar date.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}, false
	}
	return t, true
}

// fixedDigits reads exactly n ASCII digits starting at i.
func fixedDigits(s string, i, n int) (v, next int, ok bool) {
	if i+n > len(s) {
		return 0, i, false
	}
	for k := 0; k < n; k++ {
		c := s[i+k]
		if c < '0' || c > '9' {
			return 0, i, false
		}
		v = v*10 + int(c-'0')
	}
	return v, i + n, true
}

// skipSpace consumes one or more whitespace bytes starting at i.
func skipSpace(s string, i int) (next int, ok bool) {
	start := i
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			i++
		default:
			return i, i > start
		}
	}
	return i, false
}

func expect(s string, i int, c byte) bool {
	return i < len(s) && s[i] == c
}
