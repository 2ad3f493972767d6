package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger for the front office. Deployments set
// LOG_FORMAT=json so the collector can parse the stream; anything else keeps
// the readable text handler for local work against a dev billing service.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
