package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output keeps log lines machine
// readable for aggregation; level defaults to info unless FIELDKEY_DEBUG
// is set.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("FIELDKEY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
