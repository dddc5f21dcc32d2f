package logquery

import (
	"bytes"
	"io"
	"strings"
	"time"
)

const (
	// DefaultTailDepth is how many trailing lines the whole-file time-range
	// lookup inspects for the end timestamp.
	DefaultTailDepth = 1000

	// DefaultTailBufferSize is the byte size of each backward read.
	DefaultTailBufferSize = 8192
)

// TailLines reads the last numLines logical lines of f by seeking backward
// from the end in bufferSize byte chunks, avoiding a forward pass over a
// potentially huge file. Lines come back in file order (oldest of the tail
// first), permissively decoded, with trailing carriage returns stripped and
// empty lines discarded.
func TailLines(f io.ReadSeeker, numLines, bufferSize int) ([]string, error) {
	if numLines <= 0 {
		numLines = DefaultTailDepth
	}
	if bufferSize <= 0 {
		bufferSize = DefaultTailBufferSize
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	var (
		buf    []byte
		lines  [][]byte
		offset int64
	)
	for len(lines) < numLines && offset < size {
		readSize := int64(bufferSize)
		if remaining := size - offset; remaining < readSize {
			readSize = remaining
		}
		offset += readSize

		if _, err := f.Seek(size-offset, io.SeekStart); err != nil {
			return nil, err
		}
		chunk := make([]byte, readSize)
		if _, err := io.ReadFull(f, chunk); err != nil {
			return nil, err
		}

		buf = append(chunk, buf...)
		lines = bytes.Split(buf, []byte{'\n'})
		if len(lines) > numLines {
			break
		}
	}

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		s := repairUTF8(strings.TrimRight(string(ln), "\r"))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) > numLines {
		out = out[len(out)-numLines:]
	}
	return out, nil
}

// LastTimestamp returns the last timestamp within the final depth lines of
// f, scanning the tail window backward for the first hit. Returns nil when
// the window holds no parsable timestamp.
func LastTimestamp(f io.ReadSeeker, depth, bufferSize int) (*time.Time, error) {
	lines, err := TailLines(f, depth, bufferSize)
	if err != nil {
		return nil, err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if ts, ok := ExtractTimestamp(lines[i]); ok {
			return &ts, nil
		}
	}
	return nil, nil
}
