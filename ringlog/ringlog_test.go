package ringlog

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Append(fmt.Sprintf("line-%d", i))
	}
	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("len=%d, want 3", len(lines))
	}
	if lines[0] != "line-2" || lines[2] != "line-4" {
		t.Fatalf("lines=%v, want oldest evicted", lines)
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	b := New(5)
	b.Append("a")
	got := b.Lines()
	got[0] = "mutated"
	if b.Lines()[0] != "a" {
		t.Fatal("internal buffer mutated through Lines()")
	}
}

func TestHandlerCapturesRecords(t *testing.T) {
	b := New(10)
	logger := slog.New(b.Handler(slog.LevelInfo))

	logger.Debug("too quiet")
	logger.Info("viewer arrived", slog.String("user", "alice"))

	lines := b.Lines()
	if len(lines) != 1 {
		t.Fatalf("lines=%v, want only the info record", lines)
	}
	if !strings.Contains(lines[0], "viewer arrived") || !strings.Contains(lines[0], "user=alice") {
		t.Fatalf("line=%q, want message and attr", lines[0])
	}
}

func TestHandlerWithAttrs(t *testing.T) {
	b := New(10)
	logger := slog.New(b.Handler(slog.LevelInfo)).With(slog.String("channel", "somechannel"))
	logger.Info("poll ok")
	if got := b.Lines()[0]; !strings.Contains(got, "channel=somechannel") {
		t.Fatalf("line=%q, want inherited attr", got)
	}
}
