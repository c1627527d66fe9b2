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
	"encoding/base64"
	"log/slog"
	"regexp"
	"strings"
)

// Protocol is the OTLP transport flavor used for export.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

// Endpoints holds the per-signal OTLP endpoints after negotiation.
//
// For gRPC, Traces and Metrics are the same scheme-plus-hostport string
// with any path removed. For HTTP they are full signal URLs ending in
// /v1/traces and /v1/metrics respectively.
type Endpoints struct {
	Protocol Protocol
	Traces   string
	Metrics  string
}

var grpcHostPattern = regexp.MustCompile(`^(https?://)?([^/]+)`)

// ChooseProtocol selects the OTLP transport for an endpoint.
//
// An explicit protocol ("grpc", "http", "http/protobuf", "http/json")
// always wins. Otherwise the endpoint itself is inspected: managed
// gateways publish path-style OTLP receivers, so a path containing
// "/otlp" or "/v1/" means HTTP; a bare host:port means gRPC.
func ChooseProtocol(endpoint, explicit string) Protocol {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "grpc":
		return ProtocolGRPC
	case "http", "http/protobuf", "http_json", "http/json":
		return ProtocolHTTP
	}

	ep := strings.ToLower(endpoint)
	if strings.Contains(ep, "/otlp") || strings.Contains(ep, "/v1/") {
		return ProtocolHTTP
	}
	return ProtocolGRPC
}

// ResolveEndpoints normalizes a single configured OTLP endpoint into
// per-signal endpoints for the chosen transport.
//
// HTTP: the base is stripped of trailing slashes, given an "/otlp"
// path when the user supplied only a host, and the standard signal
// paths are appended. gRPC: any path is dropped, keeping only the
// scheme (if present) and host:port.
func ResolveEndpoints(endpoint, explicitProtocol string) Endpoints {
	proto := ChooseProtocol(endpoint, explicitProtocol)

	if proto == ProtocolHTTP {
		base := strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(base, "/otlp") && !strings.HasSuffix(base, "/v1") && !strings.Contains(base, "/v1/") {
			base += "/otlp"
		}
		return Endpoints{
			Protocol: ProtocolHTTP,
			Traces:   base + "/v1/traces",
			Metrics:  base + "/v1/metrics",
		}
	}

	hostport := endpoint
	if m := grpcHostPattern.FindStringSubmatch(endpoint); m != nil {
		hostport = m[1] + m[2]
	}
	return Endpoints{Protocol: ProtocolGRPC, Traces: hostport, Metrics: hostport}
}

// ParseHeaders parses an OTEL_EXPORTER_OTLP_HEADERS style string
// ("key1=value1,key2=value2") into a header map.
//
// The parser is forgiving about common copy-paste mistakes: quotes
// around the whole string or individual values are stripped, and an
// Authorization header carrying raw "instance:token" credentials is
// base64-encoded into proper Basic form. Malformed fragments are
// skipped with a warning; header parsing never fails startup.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	if raw == "" {
		return headers
	}

	trimmed := strings.Trim(strings.TrimSpace(raw), `'"`)
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			slog.Warn("Skipping malformed OTLP header fragment", "fragment", part)
			continue
		}
		k := strings.TrimSpace(key)
		if k == "" {
			slog.Warn("Skipping OTLP header with empty key", "fragment", part)
			continue
		}
		v := strings.Trim(strings.TrimSpace(value), `'"`)

		if strings.EqualFold(k, "authorization") {
			v = normalizeAuthorization(v)
		}
		headers[k] = v
	}
	return headers
}

// normalizeAuthorization fixes Authorization values that carry raw
// "instance:token" credentials instead of base64-encoded ones.
func normalizeAuthorization(v string) string {
	lower := strings.ToLower(v)

	if strings.HasPrefix(lower, "basic ") {
		creds := strings.TrimSpace(v[len("basic "):])
		if strings.Contains(creds, ":") {
			return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
		}
		return v
	}

	if strings.Contains(v, ":") && !strings.HasPrefix(lower, "bearer ") {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(v))
	}
	return v
}
