// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
)

// ErrNoChoices is returned when the provider answers with an empty
// choice list, which the API contract allows but callers cannot use.
var ErrNoChoices = errors.New("provider returned no choices")

const defaultSystemPrompt = "You are a helpful assistant."

// OpenAIClient implements Client against the OpenAI API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client from an API key.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAIClient{client: openai.NewClient(apiKey)}, nil
}

// Chat performs a chat completion and maps the provider usage onto
// our token accounting.
func (o *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}

	apiReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Message},
		},
	}
	if req.Temperature > 0 {
		apiReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		apiReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices", "model", req.Model)
		return nil, ErrNoChoices
	}

	return &ChatResult{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: datatypes.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed generates embeddings for the given texts.
func (o *OpenAIClient) Embed(ctx context.Context, texts []string, model string) (*EmbedResult, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings failed: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	return &EmbedResult{
		Vectors: vectors,
		Model:   model,
		Usage: datatypes.Usage{
			InputTokens: resp.Usage.PromptTokens,
			TotalTokens: resp.Usage.TotalTokens,
		},
	}, nil
}
