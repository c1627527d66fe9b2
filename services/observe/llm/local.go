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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
)

// LlamaCppClient talks to a llama.cpp server's /completion endpoint.
type LlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
	model      string

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

type llamaCppRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float32  `json:"temperature"`
	TopK        int      `json:"top_k"`
	TopP        float32  `json:"top_p"`
	Stop        []string `json:"stop,omitempty"`
}

type llamaCppResponse struct {
	Content         string `json:"content"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensPredicted int    `json:"tokens_predicted"`
}

// NewLlamaCppClient builds a client for the llama.cpp server at baseURL.
// The model name only labels results; llama.cpp serves whatever it loaded.
func NewLlamaCppClient(baseURL, model string) (*LlamaCppClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local LLM base URL not set")
	}
	return &LlamaCppClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}, nil
}

// Generate runs a completion. Usage comes from the server's
// tokens_evaluated/tokens_predicted fields; when the server omits
// them, tokens are counted locally with tiktoken as a fallback.
func (l *LlamaCppClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (*ChatResult, error) {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if temperature <= 0 {
		temperature = 0.2
	}
	payload := llamaCppRequest{
		Prompt:      prompt,
		NPredict:    maxTokens,
		Temperature: temperature,
		TopK:        20,
		TopP:        0.9,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call llama.cpp completion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llama.cpp response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed llamaCppResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse llama.cpp response: %w", err)
	}

	usage := datatypes.Usage{
		InputTokens:  parsed.TokensEvaluated,
		OutputTokens: parsed.TokensPredicted,
	}
	if usage.InputTokens == 0 {
		usage.InputTokens = l.countTokens(prompt)
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = l.countTokens(parsed.Content)
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &ChatResult{
		Text:  parsed.Content,
		Model: l.model,
		Usage: usage,
	}, nil
}

// Model returns the label configured for this backend's results.
func (l *LlamaCppClient) Model() string {
	return l.model
}

// Healthy probes the llama.cpp /health endpoint.
func (l *LlamaCppClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llama.cpp health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama.cpp health check returned status %d", resp.StatusCode)
	}
	return nil
}

// countTokens is a best-effort local count with the cl100k_base
// encoding. Zero on encoder failure; usage is never a reason to fail
// a completion that already succeeded.
func (l *LlamaCppClient) countTokens(text string) int {
	if text == "" {
		return 0
	}
	l.encOnce.Do(func() {
		l.enc, l.encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if l.encErr != nil || l.enc == nil {
		return 0
	}
	return len(l.enc.Encode(text, nil, nil))
}
