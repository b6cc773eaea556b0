// Package ringlog keeps the most recent log lines in memory so the dashboard
// can show them without a log aggregator.
package ringlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Buffer is a bounded FIFO of formatted log lines. Safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// New returns a Buffer keeping at most max lines (min 1).
func New(max int) *Buffer {
	if max < 1 {
		max = 1
	}
	return &Buffer{max: max}
}

// Append adds a line, evicting the oldest when full.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Handler adapts the buffer into a slog.Handler for fanout.
func (b *Buffer) Handler(level slog.Leveler) slog.Handler {
	return &ringHandler{buf: b, level: level}
}

type ringHandler struct {
	buf   *Buffer
	level slog.Leveler
	attrs []slog.Attr
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	line := fmt.Sprintf("[%s] %s %s", r.Time.UTC().Format("2006-01-02 15:04:05"), r.Level, r.Message)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.buf.Append(line)
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ringHandler{buf: h.buf, level: h.level, attrs: merged}
}

func (h *ringHandler) WithGroup(string) slog.Handler {
	// Groups are flattened; the ring is for human eyeballs, not parsing.
	return h
}
