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

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/pipeline"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

// PipelineDeps bundles the collaborators the full pipeline touches.
// Local and Store may be nil; their steps are then left out.
type PipelineDeps struct {
	Correlator *pipeline.Correlator
	Recorder   *recorder.Recorder
	Client     llm.Client
	Local      *llm.LlamaCppClient
	Store      *vector.Store
	ChatModel  string
	EmbedModel string
}

// HandleFullPipeline exercises the whole stack under one correlation
// id: chat, embed the answer, optionally persist it, optionally run
// the same prompt through the local model, and search for related
// documents. Critical steps are the ones later steps depend on.
func HandleFullPipeline(deps PipelineDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat backend not configured"})
			return
		}

		var req datatypes.PipelineRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		// Steps communicate through these; the correlator runs them
		// sequentially in declared order.
		var (
			answer      string
			localAnswer string
			queryVector []float32
			hits        []vector.Hit
		)

		steps := []pipeline.Step{
			{
				Name:     "chat",
				Critical: true,
				Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
					res, err := deps.Recorder.Record(ctx, recorder.Operation{
						Kind:          recorder.KindChat,
						System:        SystemOpenAI,
						Model:         deps.ChatModel,
						UserID:        req.UserID,
						CorrelationID: correlationID,
					}, func(ctx context.Context) (recorder.Outcome, error) {
						chat, err := deps.Client.Chat(ctx, llm.ChatRequest{
							Model:   deps.ChatModel,
							Message: req.Query,
						})
						if err != nil {
							return recorder.Outcome{}, err
						}
						answer = chat.Text
						return recorder.Outcome{
							Payload:       chat,
							Usage:         chat.Usage,
							GeneratedText: chat.Text,
							ReferenceText: req.Query,
							FinishReason:  chat.FinishReason,
						}, nil
					})
					return res, err
				},
			},
			{
				Name:     "embed",
				Critical: true,
				Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
					res, err := deps.Recorder.Record(ctx, recorder.Operation{
						Kind:          recorder.KindEmbedding,
						System:        SystemOpenAI,
						Model:         deps.EmbedModel,
						UserID:        req.UserID,
						CorrelationID: correlationID,
					}, func(ctx context.Context) (recorder.Outcome, error) {
						emb, err := deps.Client.Embed(ctx, []string{answer}, deps.EmbedModel)
						if err != nil {
							return recorder.Outcome{}, err
						}
						if len(emb.Vectors) == 0 {
							return recorder.Outcome{}, errEmptyEmbedding
						}
						queryVector = emb.Vectors[0]
						return recorder.Outcome{Payload: emb, Usage: emb.Usage}, nil
					})
					return res, err
				},
			},
		}

		if req.StoreResults && deps.Store != nil {
			steps = append(steps, pipeline.Step{
				Name: "store",
				Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
					return deps.Recorder.Record(ctx, recorder.Operation{
						Kind:          recorder.KindVectorAdd,
						System:        SystemWeaviate,
						Model:         deps.Store.Class(),
						UserID:        req.UserID,
						CorrelationID: correlationID,
					}, func(ctx context.Context) (recorder.Outcome, error) {
						docs := []vector.Document{{Content: answer, Source: "pipeline", UserID: req.UserID}}
						stored, err := deps.Store.AddDocuments(ctx, docs, [][]float32{queryVector})
						if err != nil {
							return recorder.Outcome{}, err
						}
						return recorder.Outcome{
							Payload: stored,
							Vector:  &recorder.VectorStats{DocumentsAdded: stored},
						}, nil
					})
				},
			})
		}

		if deps.Local != nil {
			steps = append(steps, pipeline.Step{
				Name: "local_inference",
				Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
					res, err := deps.Recorder.Record(ctx, recorder.Operation{
						Kind:          recorder.KindLocalInference,
						System:        SystemLlamaCpp,
						Model:         deps.Local.Model(),
						UserID:        req.UserID,
						CorrelationID: correlationID,
					}, func(ctx context.Context) (recorder.Outcome, error) {
						gen, err := deps.Local.Generate(ctx, req.Query, 0, 0)
						if err != nil {
							return recorder.Outcome{}, err
						}
						localAnswer = gen.Text
						return recorder.Outcome{
							Payload:       gen,
							Usage:         gen.Usage,
							GeneratedText: gen.Text,
							ReferenceText: req.Query,
						}, nil
					})
					return res, err
				},
			})
		}

		if deps.Store != nil {
			steps = append(steps, pipeline.Step{
				Name: "search",
				Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
					return deps.Recorder.Record(ctx, recorder.Operation{
						Kind:          recorder.KindVectorSearch,
						System:        SystemWeaviate,
						Model:         deps.Store.Class(),
						UserID:        req.UserID,
						CorrelationID: correlationID,
					}, func(ctx context.Context) (recorder.Outcome, error) {
						found, err := deps.Store.Search(ctx, queryVector, defaultSearchResults)
						if err != nil {
							return recorder.Outcome{}, err
						}
						hits = found
						return recorder.Outcome{
							Payload: found,
							Vector:  &recorder.VectorStats{ResultCount: len(found)},
						}, nil
					})
				},
			})
		}

		summary := deps.Correlator.Execute(c.Request.Context(), steps)

		c.JSON(http.StatusOK, datatypes.PipelineResponse{
			CorrelationID:   summary.CorrelationID,
			Status:          summary.Status,
			Steps:           summary.Steps,
			Answer:          answer,
			LocalAnswer:     localAnswer,
			Results:         searchHits(hits),
			TotalCostUSD:    summary.TotalCostUSD,
			TotalUsage:      summary.TotalUsage,
			DurationSeconds: summary.Duration.Seconds(),
		})
	}
}
