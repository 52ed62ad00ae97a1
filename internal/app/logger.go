package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output is meant for log
// shippers; anything else falls back to the human-readable text handler.
// Production always logs at Info, development includes Debug.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
