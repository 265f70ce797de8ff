package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so log
// aggregation gets typed fields (entity ids, scores, run ids) instead of
// formatted strings.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("UNIFY_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
