// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/costs"
	"github.com/jinterlante1206/AleutianObserve/services/observe/handlers"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/pipeline"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

// Deps are the shared collaborators routed into the handlers. Client,
// Local, and Store may each be nil; the affected endpoints answer 503.
type Deps struct {
	Recorder   *recorder.Recorder
	Correlator *pipeline.Correlator
	Client     llm.Client
	Local      *llm.LlamaCppClient
	Store      *vector.Store
	Costs      *costs.Table
	Sink       *telemetry.EventSink
	ChatModel  string
	EmbedModel string
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth(deps.Client, deps.Local, deps.Store))
	router.GET("/stats", handlers.HandleStats(deps.Store, deps.Costs, deps.Sink))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", handlers.HandleChat(deps.Recorder, deps.Client, deps.ChatModel))
		v1.POST("/embed", handlers.HandleEmbed(deps.Recorder, deps.Client, deps.Store, deps.EmbedModel))
		v1.POST("/search", handlers.HandleSearch(deps.Recorder, deps.Client, deps.Store, deps.EmbedModel))
		v1.POST("/local-inference", handlers.HandleLocalInference(deps.Recorder, deps.Local))
		v1.POST("/full-pipeline", handlers.HandleFullPipeline(handlers.PipelineDeps{
			Correlator: deps.Correlator,
			Recorder:   deps.Recorder,
			Client:     deps.Client,
			Local:      deps.Local,
			Store:      deps.Store,
			ChatModel:  deps.ChatModel,
			EmbedModel: deps.EmbedModel,
		}))
	}
}
