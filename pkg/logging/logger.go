// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for Aleutian services.
//
// The package is a thin layer over Go's standard library slog. Services
// call Setup once at startup; it installs a JSON handler on stderr,
// tags every record with the service name, and returns the logger so
// callers can derive request-scoped children with With.
//
// # Basic Usage
//
//	logger := logging.Setup(logging.Config{Service: "observe"})
//	logger.Info("starting server", "port", 8000)
//
// The minimum level is taken from Config.Level, or from the LOG_LEVEL
// environment variable ("debug", "info", "warn", "error") when Config
// leaves it empty.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers
// must ensure PII, tokens, and secrets are not logged:
//
//	// BAD: logs sensitive data
//	logger.Info("auth", "token", authToken)
//
//	// GOOD: log metadata only
//	logger.Info("auth", "token_present", authToken != "")
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Config configures logger setup.
//
// A zero-value Config produces an Info-level JSON logger on stderr
// with no service attribute.
type Config struct {
	// Service identifies the component generating logs. When set it is
	// included in every record as the "service" attribute.
	Service string

	// Level is the minimum level name: "debug", "info", "warn", "error".
	// When empty, the LOG_LEVEL environment variable is consulted, and
	// failing that the level defaults to info.
	Level string

	// Text switches the handler to human-readable text output.
	// JSON is the default because service logs are machine-consumed.
	Text bool
}

// Setup builds a slog.Logger from cfg, installs it as the process
// default via slog.SetDefault, and returns it.
func Setup(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelName(cfg))}

	var handler slog.Handler
	if cfg.Text {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithTrace returns a child logger carrying the trace_id and span_id
// of the span in ctx, so log lines can be joined to traces. Without a
// recording span the logger is returned unchanged.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to
// Info so a typo in LOG_LEVEL never silences error output.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelName(cfg Config) string {
	if cfg.Level != "" {
		return cfg.Level
	}
	return os.Getenv("LOG_LEVEL")
}
