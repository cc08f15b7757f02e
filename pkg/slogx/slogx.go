// Package slogx configures the service-wide structured logger and
// carries request-scoped loggers through contexts.
package slogx

import (
	"log/slog"
	"os"
	"strings"
)

// Config describes the logger for one service instance. Service and
// Version are stamped on every record so aggregated logs across the
// platform's services stay attributable.
type Config struct {
	Service string
	Version string
	Env     string // "dev" adds source locations
	Level   string // debug, info, warn, error (default: info)
	Format  string // json (default) or text
}

// New builds the root logger, installs it as the slog default, and
// returns it. Records go to stdout, where the platform's log shipper
// collects them from the container runtime.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Env == "dev",
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a level name to slog.Level, defaulting to info for
// anything unrecognized.
func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
