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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

const defaultSearchResults = 5

var errEmptyEmbedding = errors.New("embedding backend returned no vectors")

// HandleSearch embeds the query text, then runs a near-vector search.
// The two hops are recorded as separate operations: embedding cost is
// real money, search latency is a different backend.
func HandleSearch(rec *recorder.Recorder, client llm.Client, store *vector.Store, embedModel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search requires both an embedding backend and a vector store"})
			return
		}

		var req datatypes.SearchRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.NResults <= 0 {
			req.NResults = defaultSearchResults
		}

		embRes, err := rec.Record(c.Request.Context(), recorder.Operation{
			Kind:   recorder.KindEmbedding,
			System: SystemOpenAI,
			Model:  embedModel,
			UserID: req.UserID,
		}, func(ctx context.Context) (recorder.Outcome, error) {
			emb, err := client.Embed(ctx, []string{req.Query}, embedModel)
			if err != nil {
				return recorder.Outcome{}, err
			}
			if len(emb.Vectors) == 0 {
				return recorder.Outcome{}, errEmptyEmbedding
			}
			return recorder.Outcome{Payload: emb, Usage: emb.Usage}, nil
		})
		if err != nil {
			slog.Error("Query embedding failed", "model", embedModel, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		emb := embRes.Outcome.Payload.(*llm.EmbedResult)

		searchRes, err := rec.Record(c.Request.Context(), recorder.Operation{
			Kind:   recorder.KindVectorSearch,
			System: SystemWeaviate,
			Model:  store.Class(),
			UserID: req.UserID,
		}, func(ctx context.Context) (recorder.Outcome, error) {
			hits, err := store.Search(ctx, emb.Vectors[0], req.NResults)
			if err != nil {
				return recorder.Outcome{}, err
			}
			return recorder.Outcome{
				Payload: hits,
				Vector:  &recorder.VectorStats{ResultCount: len(hits)},
			}, nil
		})
		if err != nil {
			slog.Error("Vector search failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		hits := searchRes.Outcome.Payload.([]vector.Hit)
		c.JSON(http.StatusOK, datatypes.SearchResponse{
			Query:           req.Query,
			Results:         searchHits(hits),
			Usage:           emb.Usage,
			CostUSD:         embRes.CostUSD,
			DurationSeconds: embRes.Duration.Seconds() + searchRes.Duration.Seconds(),
		})
	}
}

func searchHits(hits []vector.Hit) []datatypes.SearchHit {
	out := make([]datatypes.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = datatypes.SearchHit{
			Content:    h.Content,
			Source:     h.Source,
			Certainty:  h.Certainty,
			DocumentID: h.DocumentID,
		}
	}
	return out
}
