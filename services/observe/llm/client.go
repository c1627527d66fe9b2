// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm holds the model-provider collaborators: the hosted
// OpenAI client and the local llama.cpp client. Clients do the work
// and report usage; all telemetry is the recorder's job.
package llm

import (
	"context"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
)

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Message     string
	Temperature float32
	MaxTokens   int
}

// ChatResult is the provider's answer plus token accounting.
type ChatResult struct {
	Text         string
	Model        string
	FinishReason string
	Usage        datatypes.Usage
}

// EmbedResult carries embedding vectors plus token accounting.
type EmbedResult struct {
	Vectors [][]float32
	Model   string
	Usage   datatypes.Usage
}

// Client is the hosted-model backend used by the chat, embed, and
// search endpoints.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	Embed(ctx context.Context, texts []string, model string) (*EmbedResult, error)
}
