// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package linewriter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrBufferOverflow is reported by Err when more than the limit was written.
var ErrBufferOverflow = errors.New("output exceeds max buffer size")

// Writer captures output and tracks the last complete line.
// It is safe for concurrent use.
type Writer struct {
	mu        sync.RWMutex
	buf       bytes.Buffer
	partial   strings.Builder
	lastLine  string
	limit     int
	truncated bool
	onLine    func(line string)
}

// New creates a Writer keeping at most limit bytes. A limit <= 0 means unlimited.
// onLine, if not nil, is called for every complete line, without its line ending.
// It runs with the writer's lock released but on the writing goroutine, so it must not block.
func New(limit int, onLine func(line string)) *Writer {
	return &Writer{
		limit:  limit,
		onLine: onLine,
	}
}

// Write implements io.Writer. It never fails: data beyond the limit is
// discarded and recorded so that Err reports the overflow.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()

	keep := p
	if w.limit > 0 {
		room := w.limit - w.buf.Len()
		if room < len(keep) {
			w.truncated = true
			keep = keep[:max(room, 0)]
		}
	}

	w.buf.Write(keep)
	lines := w.splitLines(string(p))

	w.mu.Unlock()

	if w.onLine != nil {
		for _, l := range lines {
			w.onLine(l)
		}
	}

	return len(p), nil
}

// splitLines appends data to the partial line and returns the completed lines.
// Must be called with the write lock held.
func (w *Writer) splitLines(data string) []string {
	w.partial.WriteString(data)

	combined := w.partial.String()
	if !strings.Contains(combined, "\n") {
		if w.limit > 0 && len(combined) > w.limit {
			w.partial.Reset()
		}

		return nil
	}

	parts := strings.Split(combined, "\n")
	complete := parts[:len(parts)-1]

	for i, l := range complete {
		complete[i] = strings.TrimSuffix(l, "\r")
	}

	w.lastLine = complete[len(complete)-1]

	w.partial.Reset()
	w.partial.WriteString(parts[len(parts)-1])

	return complete
}

// String returns everything captured so far.
func (w *Writer) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.buf.String()
}

// Len returns the number of bytes captured.
func (w *Writer) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.buf.Len()
}

// LastLine returns the last complete line, truncated to maxLength when
// maxLength > 0 with "..." marking the cut.
func (w *Writer) LastLine(maxLength int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if maxLength > 3 && len(w.lastLine) > maxLength {
		return w.lastLine[:maxLength-3] + "..."
	}

	return w.lastLine
}

// Partial returns data written after the last newline.
func (w *Writer) Partial() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.partial.String()
}

// Err returns ErrBufferOverflow if output was discarded.
func (w *Writer) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.truncated {
		return fmt.Errorf("%w of %d bytes", ErrBufferOverflow, w.limit)
	}

	return nil
}
