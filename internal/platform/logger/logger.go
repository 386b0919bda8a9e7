package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns the process-wide structured logger: JSON to stdout, level from
// DEALROOM_LOG_LEVEL (debug|info|warn|error, default info).
func New() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("DEALROOM_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
