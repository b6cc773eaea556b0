// Package logging configures the process-wide slog logger: a stdout handler
// (text or JSON, env-selected) fanned out with an optional rotating JSON
// file and the in-memory ring buffer served at /api/logs.
package logging

import (
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wrenolds/lurkwatch/ringlog"
)

// Env knobs:
//
//	LOG_LEVEL  debug | info | warn | error (default info)
//	LOG_FORMAT text | json (default text)
//	LOG_FILE   path for a rotated JSON log file (empty disables)
func Setup(ring *ringlog.Buffer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var stdout slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdout}
	if path := os.Getenv("LOG_FILE"); path != "" {
		logFile := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64, // megabytes
			MaxBackups: 8,
			MaxAge:     30, // days
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(logFile, opts))
	}
	if ring != nil {
		handlers = append(handlers, ring.Handler(lvl))
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	slog.SetDefault(logger)
	return logger
}
