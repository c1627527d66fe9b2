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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

// HandleEmbed generates embeddings and optionally persists them to the
// vector store. The embedding call and the store write are recorded as
// two separate operations so each shows up in the metrics on its own.
func HandleEmbed(rec *recorder.Recorder, client llm.Client, store *vector.Store, defaultModel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding backend not configured"})
			return
		}

		var req datatypes.EmbedRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.StoreInVectorDB && store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vector store not configured"})
			return
		}

		model := req.Model
		if model == "" {
			model = defaultModel
		}

		res, err := rec.Record(c.Request.Context(), recorder.Operation{
			Kind:   recorder.KindEmbedding,
			System: SystemOpenAI,
			Model:  model,
			UserID: req.UserID,
		}, func(ctx context.Context) (recorder.Outcome, error) {
			emb, err := client.Embed(ctx, req.Texts, model)
			if err != nil {
				return recorder.Outcome{}, err
			}
			return recorder.Outcome{Payload: emb, Usage: emb.Usage}, nil
		})
		if err != nil {
			slog.Error("Embedding failed", "model", model, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		emb := res.Outcome.Payload.(*llm.EmbedResult)
		resp := datatypes.EmbedResponse{
			EmbeddingCount:  len(emb.Vectors),
			Model:           emb.Model,
			Usage:           emb.Usage,
			CostUSD:         res.CostUSD,
			DurationSeconds: res.Duration.Seconds(),
		}
		if len(emb.Vectors) > 0 {
			resp.Dimensions = len(emb.Vectors[0])
		}

		if req.StoreInVectorDB {
			stored, err := storeDocuments(c.Request.Context(), rec, store, req.Texts, emb.Vectors, req.UserID)
			if err != nil {
				slog.Error("Vector store write failed", "error", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			resp.Stored = stored
		}

		c.JSON(http.StatusOK, resp)
	}
}

// storeDocuments records a vector_add operation wrapping the batch
// import of texts with their vectors.
func storeDocuments(ctx context.Context, rec *recorder.Recorder, store *vector.Store, texts []string, vectors [][]float32, userID string) (int, error) {
	docs := make([]vector.Document, len(texts))
	for i, text := range texts {
		docs[i] = vector.Document{Content: text, Source: "api", UserID: userID}
	}

	res, err := rec.Record(ctx, recorder.Operation{
		Kind:   recorder.KindVectorAdd,
		System: SystemWeaviate,
		Model:  store.Class(),
		UserID: userID,
	}, func(ctx context.Context) (recorder.Outcome, error) {
		stored, err := store.AddDocuments(ctx, docs, vectors)
		if err != nil {
			return recorder.Outcome{}, err
		}
		return recorder.Outcome{
			Payload: stored,
			Vector:  &recorder.VectorStats{DocumentsAdded: stored},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return res.Outcome.Payload.(int), nil
}
