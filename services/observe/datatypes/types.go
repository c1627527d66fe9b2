// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request/response shapes shared across the
// observe service: handler payloads, token usage, and search results.
package datatypes

// Usage is the token accounting for a single model invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

type ChatRequest struct {
	Message     string  `json:"message" binding:"required"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	UserID      string  `json:"user_id"`
	SessionID   string  `json:"session_id"`
}

type ChatResponse struct {
	Response        string      `json:"response"`
	Model           string      `json:"model"`
	FinishReason    string      `json:"finish_reason,omitempty"`
	Usage           Usage       `json:"usage"`
	CostUSD         float64     `json:"cost_usd"`
	DurationSeconds float64     `json:"duration_seconds"`
	Eval            *EvalReport `json:"eval,omitempty"`
}

type EmbedRequest struct {
	Texts           []string `json:"texts" binding:"required,min=1"`
	Model           string   `json:"model"`
	StoreInVectorDB bool     `json:"store_in_vector_db"`
	UserID          string   `json:"user_id"`
}

type EmbedResponse struct {
	EmbeddingCount  int     `json:"embedding_count"`
	Dimensions      int     `json:"dimensions"`
	Model           string  `json:"model"`
	Stored          int     `json:"stored,omitempty"`
	Usage           Usage   `json:"usage"`
	CostUSD         float64 `json:"cost_usd"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type SearchRequest struct {
	Query    string `json:"query" binding:"required"`
	NResults int    `json:"n_results"`
	UserID   string `json:"user_id"`
}

// SearchHit is one nearest-neighbour match from the vector store.
type SearchHit struct {
	Content    string  `json:"content"`
	Source     string  `json:"source,omitempty"`
	Certainty  float64 `json:"certainty"`
	DocumentID string  `json:"document_id,omitempty"`
}

type SearchResponse struct {
	Query           string      `json:"query"`
	Results         []SearchHit `json:"results"`
	Usage           Usage       `json:"usage"`
	CostUSD         float64     `json:"cost_usd"`
	DurationSeconds float64     `json:"duration_seconds"`
}

type LocalInferenceRequest struct {
	Prompt      string  `json:"prompt" binding:"required"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	UserID      string  `json:"user_id"`
}

type LocalInferenceResponse struct {
	Response        string      `json:"response"`
	Model           string      `json:"model"`
	Usage           Usage       `json:"usage"`
	DurationSeconds float64     `json:"duration_seconds"`
	Eval            *EvalReport `json:"eval,omitempty"`
}

type PipelineRequest struct {
	Query        string `json:"query" binding:"required"`
	StoreResults bool   `json:"store_results"`
	UserID       string `json:"user_id"`
}

// PipelineStepResult summarizes one executed (or skipped) pipeline step.
type PipelineStepResult struct {
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	Critical        bool    `json:"critical"`
	DurationSeconds float64 `json:"duration_seconds"`
	CostUSD         float64 `json:"cost_usd"`
	Usage           Usage   `json:"usage"`
	Error           string  `json:"error,omitempty"`
}

type PipelineResponse struct {
	CorrelationID   string               `json:"correlation_id"`
	Status          string               `json:"status"`
	Steps           []PipelineStepResult `json:"steps"`
	Answer          string               `json:"answer,omitempty"`
	LocalAnswer     string               `json:"local_answer,omitempty"`
	Results         []SearchHit          `json:"results,omitempty"`
	TotalCostUSD    float64              `json:"total_cost_usd"`
	TotalUsage      Usage                `json:"total_usage"`
	DurationSeconds float64              `json:"duration_seconds"`
}

// EvalReport is the heuristic quality assessment attached to generative
// responses.
type EvalReport struct {
	Score    float64         `json:"score"`
	Passed   bool            `json:"passed"`
	Criteria map[string]bool `json:"criteria"`
}
