package sse

import (
	"bufio"
	"io"
	"strings"
)

// LineReader frames newline-delimited JSON: every non-blank line is one
// Event with an empty Type.
type LineReader struct {
	scanner *bufio.Scanner
	dest    io.Writer
}

// NewLineReader returns a LineReader over src. A nil dest disables the tee.
func NewLineReader(src io.Reader, dest io.Writer) *LineReader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxEventSize)

	return &LineReader{scanner: scanner, dest: dest}
}

// Next returns the next line as an Event, or nil, nil at the end of src.
func (r *LineReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()
		if err := tee(r.dest, raw); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		return &Event{Data: line}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

var (
	_ Source = (*Reader)(nil)
	_ Source = (*LineReader)(nil)
)
