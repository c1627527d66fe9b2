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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLlamaCppClient_GenerateUsesServerTokenCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("path = %q, want /completion", r.URL.Path)
		}
		var req llamaCppRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "hello" {
			t.Errorf("prompt = %q, want hello", req.Prompt)
		}
		json.NewEncoder(w).Encode(llamaCppResponse{
			Content:         "world",
			TokensEvaluated: 7,
			TokensPredicted: 3,
		})
	}))
	defer srv.Close()

	client, err := NewLlamaCppClient(srv.URL, "llama-cpp")
	if err != nil {
		t.Fatalf("NewLlamaCppClient() error = %v", err)
	}

	res, err := client.Generate(context.Background(), "hello", 64, 0.1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Text != "world" {
		t.Errorf("text = %q, want world", res.Text)
	}
	if res.Usage.InputTokens != 7 || res.Usage.OutputTokens != 3 || res.Usage.TotalTokens != 10 {
		t.Errorf("usage = %+v, want 7/3/10", res.Usage)
	}
	if res.Model != "llama-cpp" {
		t.Errorf("model = %q, want llama-cpp", res.Model)
	}
}

func TestLlamaCppClient_GenerateFallsBackToLocalCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Older llama.cpp builds omit the token count fields.
		json.NewEncoder(w).Encode(map[string]string{"content": "a generated answer with several words"})
	}))
	defer srv.Close()

	client, err := NewLlamaCppClient(srv.URL, "llama-cpp")
	if err != nil {
		t.Fatalf("NewLlamaCppClient() error = %v", err)
	}

	res, err := client.Generate(context.Background(), "count my tokens please", 64, 0.1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Usage.InputTokens <= 0 {
		t.Errorf("input tokens = %d, want > 0 from local fallback", res.Usage.InputTokens)
	}
	if res.Usage.OutputTokens <= 0 {
		t.Errorf("output tokens = %d, want > 0 from local fallback", res.Usage.OutputTokens)
	}
	if got := res.Usage.InputTokens + res.Usage.OutputTokens; res.Usage.TotalTokens != got {
		t.Errorf("total tokens = %d, want %d", res.Usage.TotalTokens, got)
	}
}

func TestLlamaCppClient_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewLlamaCppClient(srv.URL, "llama-cpp")
	if err != nil {
		t.Fatalf("NewLlamaCppClient() error = %v", err)
	}

	if _, err := client.Generate(context.Background(), "hello", 64, 0.1); err == nil {
		t.Fatal("Generate() error = nil, want non-nil on 503")
	}
}

func TestLlamaCppClient_Healthy(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client, err := NewLlamaCppClient(srv.URL, "llama-cpp")
	if err != nil {
		t.Fatalf("NewLlamaCppClient() error = %v", err)
	}

	if err := client.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy() error = %v, want nil", err)
	}
	healthy = false
	if err := client.Healthy(context.Background()); err == nil {
		t.Error("Healthy() error = nil, want non-nil when server unhealthy")
	}
}

func TestNewClientsRejectEmptyConfig(t *testing.T) {
	if _, err := NewLlamaCppClient("", "m"); err == nil {
		t.Error("NewLlamaCppClient(\"\") error = nil, want non-nil")
	}
	if _, err := NewOpenAIClient(""); err == nil {
		t.Error("NewOpenAIClient(\"\") error = nil, want non-nil")
	}
}
