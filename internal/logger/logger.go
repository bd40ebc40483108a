package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide structured logger. Init replaces it; until then it writes text to stderr.
var Log = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Init configures Log for the given level ("debug", "info", "warn", "error").
func Init(level string, production bool) {
	Log = New(os.Stdout, level, production)
	slog.SetDefault(Log)
}

func New(w io.Writer, level string, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
