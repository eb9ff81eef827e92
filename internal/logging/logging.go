// Package logging builds the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates a configured *slog.Logger, sets it as the default, and
// returns it. level accepts anything slog understands ("debug", "info",
// "warn", "error", with optional offsets like "warn+2", case-insensitive);
// unknown names fall back to info. format accepts "text" or "json" and
// defaults to text, which suits local development; deployments behind a
// log collector want json.
func Setup(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
