package logquery

import (
	"bufio"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/logview/internal/domain"
)

// DefaultChunkSize is the number of matching lines buffered per chunk.
const DefaultChunkSize = 1000

// Scanner drives a forward, line-by-line scan of a log stream, applying an
// optional Plan and batching surviving lines into fixed-size chunks.
//
// The scanner is a pure producer with no notion of a result cap: a consumer
// that has seen enough simply stops calling Next, and the abandoned scan
// costs nothing beyond the still-open reader. Malformed byte sequences are
// repaired with the Unicode replacement character rather than failing the
// scan. Line numbers are 1-based positions in the raw stream, so lines
// surviving a filter keep their true original position.
type Scanner struct {
	r         *bufio.Reader
	plan      *Plan
	chunkSize int
	lineNo    int
	chunk     []domain.LogLine
	err       error
	done      bool
}

// NewScanner returns a Scanner over r. A nil plan matches every line; a
// non-positive chunkSize falls back to DefaultChunkSize.
func NewScanner(r io.Reader, plan *Plan, chunkSize int) *Scanner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scanner{
		r:         bufio.NewReader(r),
		plan:      plan,
		chunkSize: chunkSize,
	}
}

// Next advances to the next chunk of matching lines, returning false when
// the stream is exhausted or a read error occurred. Callers must check Err
// after the final Next.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	s.chunk = s.chunk[:0]

	for {
		line, err := s.r.ReadString('\n')
		if len(line) > 0 {
			s.lineNo++
			content := repairUTF8(strings.TrimRight(line, "\r\n"))
			if s.plan.Matches(content) {
				s.chunk = append(s.chunk, domain.LogLine{LineNumber: s.lineNo, Content: content})
				if len(s.chunk) >= s.chunkSize {
					return true
				}
			}
		}
		if err != nil {
			s.done = true
			if err != io.EOF {
				s.err = err
				return false
			}
			return len(s.chunk) > 0
		}
	}
}

// Chunk returns the current chunk of matched lines. The returned slice is
// reused by the next call to Next; callers that retain lines must copy them.
func (s *Scanner) Chunk() []domain.LogLine {
	return s.chunk
}

// Err returns the first read error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// TimeBounds derives the time range of a set of emitted lines: the first
// timestamp scanning forward and the first scanning backward. Either value
// is nil when no line in that direction carries a timestamp.
func TimeBounds(lines []domain.LogLine) (start, end *time.Time) {
	for i := range lines {
		if ts, ok := ExtractTimestamp(lines[i].Content); ok {
			start = &ts
			break
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if ts, ok := ExtractTimestamp(lines[i].Content); ok {
			end = &ts
			break
		}
	}
	return start, end
}

// FirstTimestamp reads forward from r and returns the first line timestamp
// found, stopping immediately on a hit rather than scanning the whole
// stream. Returns nil when the stream holds no parsable timestamp.
func FirstTimestamp(r io.Reader) (*time.Time, error) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if ts, ok := ExtractTimestamp(strings.TrimRight(line, "\r\n")); ok {
				return &ts, nil
			}
		}
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func repairUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
