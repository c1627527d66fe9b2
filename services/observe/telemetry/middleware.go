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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsMiddleware records request duration, request count, and
// in-flight gauge for every route. Tracing is handled separately by
// otelgin; this middleware only feeds the HTTP instruments in the
// Registry.
//
// The path label uses the matched route template (c.FullPath) rather
// than the raw URL to keep label cardinality bounded.
func MetricsMiddleware(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		reg.HTTPActiveRequests.Add(ctx, 1)
		defer reg.HTTPActiveRequests.Add(ctx, -1)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)
		reg.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		reg.HTTPRequestsTotal.Add(ctx, 1, attrs)
	}
}
