// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the run logger and the per-run Prometheus
// metrics.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// NewLogger creates a zerolog logger from configuration.
func NewLogger(cfg types.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		out = os.Stdout
	}
	return NewLoggerTo(cfg, out)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(cfg types.LoggingConfig, out io.Writer) zerolog.Logger {
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().
		Logger()
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithRun tags every entry with the run ID.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithUnit tags entries with a fetch unit's concept and date range.
func WithUnit(logger zerolog.Logger, concept string, r types.DateRange) zerolog.Logger {
	return logger.With().
		Str("concept", concept).
		Str("range", r.String()).
		Logger()
}
