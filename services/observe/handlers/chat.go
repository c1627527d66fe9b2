// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gin endpoints for the observe service.
// Each handler is a closure over its collaborators so tests can
// substitute fakes without global state.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/evals"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
)

// SystemOpenAI and friends label which provider served an operation.
const (
	SystemOpenAI   = "openai"
	SystemLlamaCpp = "llama-cpp"
	SystemWeaviate = "weaviate"
)

// HandleChat proxies a chat completion through the recorder so every
// call lands in the metrics, traces, and cost accounting.
func HandleChat(rec *recorder.Recorder, client llm.Client, defaultModel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat backend not configured"})
			return
		}

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		model := req.Model
		if model == "" {
			model = defaultModel
		}

		res, err := rec.Record(c.Request.Context(), recorder.Operation{
			Kind:      recorder.KindChat,
			System:    SystemOpenAI,
			Model:     model,
			UserID:    req.UserID,
			SessionID: req.SessionID,
		}, func(ctx context.Context) (recorder.Outcome, error) {
			chat, err := client.Chat(ctx, llm.ChatRequest{
				Model:       model,
				Message:     req.Message,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
			})
			if err != nil {
				return recorder.Outcome{}, err
			}
			return recorder.Outcome{
				Payload:       chat,
				Usage:         chat.Usage,
				GeneratedText: chat.Text,
				ReferenceText: req.Message,
				FinishReason:  chat.FinishReason,
			}, nil
		})
		if err != nil {
			slog.Error("Chat completion failed", "model", model, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		chat := res.Outcome.Payload.(*llm.ChatResult)
		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Response:        chat.Text,
			Model:           chat.Model,
			FinishReason:    chat.FinishReason,
			Usage:           chat.Usage,
			CostUSD:         res.CostUSD,
			DurationSeconds: res.Duration.Seconds(),
			Eval:            evalReport(res.Eval),
		})
	}
}

// evalReport converts the internal eval result to the response shape.
func evalReport(ev *evals.Result) *datatypes.EvalReport {
	if ev == nil {
		return nil
	}
	return &datatypes.EvalReport{
		Score:    ev.Score,
		Passed:   ev.Passed,
		Criteria: ev.Criteria,
	}
}
