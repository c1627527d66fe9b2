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
)

// HandleLocalInference runs a completion against the local llama.cpp
// backend. Local tokens carry no price, so the response reports usage
// but never a cost.
func HandleLocalInference(rec *recorder.Recorder, local *llm.LlamaCppClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if local == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local inference backend not configured"})
			return
		}

		var req datatypes.LocalInferenceRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		res, err := rec.Record(c.Request.Context(), recorder.Operation{
			Kind:   recorder.KindLocalInference,
			System: SystemLlamaCpp,
			Model:  local.Model(),
			UserID: req.UserID,
		}, func(ctx context.Context) (recorder.Outcome, error) {
			gen, err := local.Generate(ctx, req.Prompt, req.MaxTokens, req.Temperature)
			if err != nil {
				return recorder.Outcome{}, err
			}
			return recorder.Outcome{
				Payload:       gen,
				Usage:         gen.Usage,
				GeneratedText: gen.Text,
				ReferenceText: req.Prompt,
			}, nil
		})
		if err != nil {
			slog.Error("Local inference failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		gen := res.Outcome.Payload.(*llm.ChatResult)
		c.JSON(http.StatusOK, datatypes.LocalInferenceResponse{
			Response:        gen.Text,
			Model:           gen.Model,
			Usage:           gen.Usage,
			DurationSeconds: res.Duration.Seconds(),
			Eval:            evalReport(res.Eval),
		})
	}
}
