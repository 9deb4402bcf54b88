package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a slog logger writing to w at the given level
// ("debug", "info", "warn" or "error"; anything else is info) and format
// ("json" or text).
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// SetupLogger installs a logger for cfg, writing to w, as the slog default.
func SetupLogger(w io.Writer, cfg Config) *slog.Logger {
	l := NewLogger(w, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(l)
	return l
}
