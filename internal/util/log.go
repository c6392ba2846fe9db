// Package util provides shared utilities for logging, retries, and rate
// limiting of venue calls.
package util

import (
	"log/slog"
	"os"
)

// NewLogger creates a JSON slog logger at the given level ("debug", "info",
// "warn", "error"). Unrecognised levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
