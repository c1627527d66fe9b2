// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// SDKName is the provenance attribute value stamped on the resource so
// downstream consumers can tell which emitter produced a sample.
const SDKName = "aleutian-observe"

// Config controls telemetry behavior.
//
// All fields have sensible defaults via DefaultConfig().
type Config struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `json:"service_version"`

	// Environment identifies the deployment environment (development, production).
	Environment string `json:"environment"`

	// OTLPEndpoint is the OTLP receiver endpoint. Empty disables OTLP
	// export entirely; the service still runs.
	OTLPEndpoint string `json:"otlp_endpoint"`

	// OTLPProtocol optionally forces the transport: "grpc" or
	// "http/protobuf". When empty the endpoint shape decides.
	OTLPProtocol string `json:"otlp_protocol"`

	// OTLPHeaders is the raw OTEL_EXPORTER_OTLP_HEADERS value
	// ("key1=value1,key2=value2").
	OTLPHeaders string `json:"otlp_headers"`

	// OTLPInsecure disables TLS for OTLP connections to plain-http
	// endpoints. Endpoints with an https scheme always use TLS.
	OTLPInsecure bool `json:"otlp_insecure"`

	// MetricsEnabled turns on the Prometheus pull exposition endpoint.
	MetricsEnabled bool `json:"metrics_enabled"`

	// StdoutExport enables pretty-printed stdout exporters for local
	// development when no OTLP endpoint is configured.
	StdoutExport bool `json:"stdout_export"`

	// ExportInterval is the periodic OTLP metric export interval.
	ExportInterval time.Duration `json:"export_interval"`
}

// DefaultConfig returns opinionated defaults for development.
//
// Environment variables override defaults where applicable:
//   - OTEL_SERVICE_NAME: service name
//   - OTEL_SERVICE_VERSION: service version
//   - ALEUTIAN_ENV: environment name
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
//   - OTEL_EXPORTER_OTLP_PROTOCOL: forced OTLP transport
//   - OTEL_EXPORTER_OTLP_HEADERS: OTLP headers
//   - METRICS_ENABLED: Prometheus exposition toggle
func DefaultConfig() Config {
	return Config{
		ServiceName:    getEnvOr("OTEL_SERVICE_NAME", "observe"),
		ServiceVersion: getEnvOr("OTEL_SERVICE_VERSION", "1.0.0"),
		Environment:    getEnvOr("ALEUTIAN_ENV", "development"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPProtocol:   os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		OTLPHeaders:    os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:   true,
		MetricsEnabled: getEnvOr("METRICS_ENABLED", "true") == "true",
		ExportInterval: 10 * time.Second,
	}
}

// Init initializes the telemetry stack with the given configuration.
//
// Description:
//
//	Sets up OpenTelemetry TracerProvider and MeterProvider based on the
//	configuration. Export transport is negotiated from the endpoint via
//	ResolveEndpoints; header parsing is best-effort and never fails
//	startup. After Init returns successfully, otel.Tracer() and
//	otel.Meter() can be used throughout the application.
//
// Inputs:
//
//	ctx - Context for initialization (used for exporter connections).
//	cfg - Telemetry configuration. Use DefaultConfig() for sensible defaults.
//
// Outputs:
//
//	shutdown - Function to call on application exit for cleanup. Must be called.
//	error - Non-nil if initialization fails.
//
// Example:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// Thread Safety: Call once at application startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("shutdown errors: %v", errs)
		}
		return nil
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
		attribute.String("telemetry.distro.name", SDKName),
	)

	var eps Endpoints
	var headers map[string]string
	if cfg.OTLPEndpoint != "" {
		eps = ResolveEndpoints(cfg.OTLPEndpoint, cfg.OTLPProtocol)
		headers = ParseHeaders(cfg.OTLPHeaders)
		slog.Info("Negotiated OTLP transport",
			"protocol", eps.Protocol,
			"traces_endpoint", eps.Traces,
			"metrics_endpoint", eps.Metrics,
			"header_count", len(headers),
		)
	}

	tp, err := initTracer(ctx, cfg, res, eps, headers)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	mp, err := initMeter(ctx, cfg, res, eps, headers)
	if err != nil {
		return nil, fmt.Errorf("init meter: %w", err)
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return shutdown, nil
}

// initTracer creates and returns a configured TracerProvider, or nil
// when no exporter applies.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource, eps Endpoints, headers map[string]string) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch {
	case cfg.OTLPEndpoint != "" && eps.Protocol == ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(ensureScheme(eps.Traces, cfg.OTLPInsecure))}
		if len(headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)

	case cfg.OTLPEndpoint != "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(stripScheme(eps.Traces))}
		if len(headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(headers))
		}
		if cfg.OTLPInsecure && !strings.HasPrefix(eps.Traces, "https://") {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case cfg.StdoutExport:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())

	default:
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	return tp, nil
}

// initMeter creates and returns a configured MeterProvider, or nil
// when neither Prometheus exposition nor push export is enabled.
func initMeter(ctx context.Context, cfg Config, res *resource.Resource, eps Endpoints, headers map[string]string) (*metric.MeterProvider, error) {
	var opts []metric.Option
	opts = append(opts, metric.WithResource(res))
	readers := 0

	if cfg.MetricsEnabled {
		// Dedicated registry so the exposition surface carries only our
		// instruments. target_info is not part of the GenAI conventions.
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(
			promexporter.WithRegisterer(registry),
			promexporter.WithoutTargetInfo(),
			promexporter.WithoutScopeInfo(),
		)
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		prometheusHandlerMu.Lock()
		prometheusHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		prometheusHandlerMu.Unlock()

		opts = append(opts, metric.WithReader(exporter))
		readers++
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	switch {
	case cfg.OTLPEndpoint != "" && eps.Protocol == ProtocolHTTP:
		exporter, err := func() (metric.Exporter, error) {
			o := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(ensureScheme(eps.Metrics, cfg.OTLPInsecure))}
			if len(headers) > 0 {
				o = append(o, otlpmetrichttp.WithHeaders(headers))
			}
			return otlpmetrichttp.New(ctx, o...)
		}()
		if err != nil {
			return nil, fmt.Errorf("create otlp http metric exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))))
		readers++

	case cfg.OTLPEndpoint != "":
		o := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(stripScheme(eps.Metrics))}
		if len(headers) > 0 {
			o = append(o, otlpmetricgrpc.WithHeaders(headers))
		}
		if cfg.OTLPInsecure && !strings.HasPrefix(eps.Metrics, "https://") {
			o = append(o, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, o...)
		if err != nil {
			return nil, fmt.Errorf("create otlp grpc metric exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))))
		readers++

	case cfg.StdoutExport:
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))))
		readers++
	}

	if readers == 0 {
		return nil, nil
	}
	return metric.NewMeterProvider(opts...), nil
}

// prometheusHandler stores the Prometheus exporter's HTTP handler.
// Access via MetricsHandler().
var (
	prometheusHandler   http.Handler
	prometheusHandlerMu sync.RWMutex
)

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
//
// Returns nil if the Prometheus exporter is disabled. Safe for
// concurrent use.
func MetricsHandler() http.Handler {
	prometheusHandlerMu.RLock()
	defer prometheusHandlerMu.RUnlock()
	return prometheusHandler
}

// getEnvOr returns the environment variable value or the fallback.
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// stripScheme removes an http/https scheme for gRPC dialing, which
// expects a bare host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// ensureScheme prefixes a scheme onto HTTP endpoints that lack one so
// WithEndpointURL can parse them.
func ensureScheme(endpoint string, insecure bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if insecure {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}
