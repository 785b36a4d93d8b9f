//go:build windows

package main

import (
	"strings"
	"sync"
)

// paneWriter receives log output from any goroutine. The UI drains it on
// its own goroutine, so logging never blocks on a draw.
type paneWriter struct {
	mu      sync.Mutex
	partial string
	lines   []string
}

func (w *paneWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := w.partial + string(p)
	parts := strings.Split(text, "\n")
	w.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			w.lines = append(w.lines, line)
		}
	}
	if len(w.lines) > maxLogLines {
		w.lines = w.lines[len(w.lines)-maxLogLines:]
	}
	return len(p), nil
}

func (w *paneWriter) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines := w.lines
	w.lines = nil
	return lines
}
