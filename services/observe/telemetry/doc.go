// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the observe service into OpenTelemetry.
//
// It owns four concerns:
//
//   - Transport negotiation: a single OTEL_EXPORTER_OTLP_ENDPOINT is
//     resolved into per-signal gRPC or HTTP endpoints, with an explicit
//     OTEL_EXPORTER_OTLP_PROTOCOL override (transport.go).
//   - Instrument registration: every metric the service emits lives in
//     the Registry, created once with fixed bucket boundaries
//     (metrics.go).
//   - Providers and exposition: Init builds the TracerProvider and
//     MeterProvider, including the Prometheus pull endpoint and the
//     10-second periodic OTLP push reader (telemetry.go).
//   - The fire-and-forget event sink used by recorders to publish
//     per-operation events without blocking the request path
//     (events.go).
//
// Typical startup:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
//	reg, err := telemetry.NewRegistry(otel.Meter("aleutian.observe"))
package telemetry
