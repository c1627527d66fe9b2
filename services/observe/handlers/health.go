// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/costs"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

// HandleHealth reports which collaborators are configured. The local
// backend gets a real probe; absent collaborators are "not_configured"
// rather than errors so the service stays healthy in lightweight mode.
func HandleHealth(client llm.Client, local *llm.LlamaCppClient, store *vector.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := gin.H{
			"openai":    componentState(client != nil),
			"weaviate":  componentState(store != nil),
			"local_llm": "not_configured",
		}

		if local != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := local.Healthy(ctx); err != nil {
				components["local_llm"] = "unreachable"
			} else {
				components["local_llm"] = "ok"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"components": components,
		})
	}
}

// HandleStats exposes operational counters: stored document count,
// known pricing models, and events dropped by the sink under pressure.
func HandleStats(store *vector.Store, table *costs.Table, sink *telemetry.EventSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := gin.H{
			"pricing_models": table.Models(),
		}
		if sink != nil {
			stats["events_dropped"] = sink.Dropped()
		}
		if store != nil {
			count, err := store.Count(c.Request.Context())
			if err != nil {
				stats["documents"] = gin.H{"error": err.Error()}
			} else {
				stats["documents"] = count
				stats["vector_class"] = store.Class()
			}
		}
		c.JSON(http.StatusOK, stats)
	}
}

func componentState(configured bool) string {
	if configured {
		return "ok"
	}
	return "not_configured"
}
