// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  error  ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := ParseLevel(tc.name); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSetupReturnsUsableLogger(t *testing.T) {
	logger := Setup(Config{Service: "test", Level: "debug"})
	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}
	// Must not panic.
	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
}

func TestWithTrace_NoSpanReturnsSameLogger(t *testing.T) {
	logger := slog.Default()
	if got := WithTrace(context.Background(), logger); got != logger {
		t.Error("WithTrace without a span should return the logger unchanged")
	}
}

func TestWithTrace_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithTrace(ctx, logger).Info("correlated")

	out := buf.String()
	if !strings.Contains(out, sc.TraceID().String()) {
		t.Errorf("log line missing trace_id: %s", out)
	}
	if !strings.Contains(out, sc.SpanID().String()) {
		t.Errorf("log line missing span_id: %s", out)
	}
}

func TestSetupLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger := Setup(Config{Service: "test"})
	if logger.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("warn should be filtered when LOG_LEVEL=error")
	}
	if !logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("error should be enabled when LOG_LEVEL=error")
	}
}
