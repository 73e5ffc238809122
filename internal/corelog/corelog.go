// Package corelog initializes the process-wide structured logger.
package corelog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog's default logger for service and returns it.
// ACDAT_JSON_LOG=1 selects JSON output (for ingestion by a log
// pipeline); otherwise a human-readable text handler is used.
// ACDAT_LOG_LEVEL selects the minimum level (debug, info, warn,
// error), defaulting to info.
func Init(service string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if os.Getenv("ACDAT_JSON_LOG") == "1" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("ACDAT_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
