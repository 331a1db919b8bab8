package app

import (
	"io"
	"log/slog"
)

// newLogger creates a slog.Logger for the build. It does not set the
// global logger, so concurrent apps (and tests) stay isolated.
func newLogger(levelStr, formatStr string, depth int, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	logger := slog.New(handler)
	if depth > 0 {
		logger = logger.With("depth", depth)
	}
	return logger
}
