// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the observe service configuration from the
// environment. Every field has a working development default so the
// service starts with no configuration at all.
package config

import (
	"os"
	"strconv"
)

// Config is the full observe service configuration.
type Config struct {
	// HTTPPort is the port the API server listens on.
	HTTPPort int

	// PrometheusPort serves the /metrics exposition endpoint when it
	// differs from HTTPPort. Zero means expose on the API server.
	PrometheusPort int

	// OpenAIAPIKey authenticates against the OpenAI API. Empty runs
	// the service in degraded mode: chat/embed endpoints return 503.
	OpenAIAPIKey string

	// DefaultChatModel is used when a request omits the model.
	DefaultChatModel string

	// DefaultEmbeddingModel is used for embeddings and search.
	DefaultEmbeddingModel string

	// LocalLLMURL is the llama.cpp server base URL. Empty disables the
	// local-inference endpoint.
	LocalLLMURL string

	// LocalModelName labels local inference metrics.
	LocalModelName string

	// WeaviateURL is the vector store endpoint, scheme included.
	WeaviateURL string

	// VectorClass is the Weaviate class used for document storage.
	VectorClass string

	// PricingFile optionally overrides the embedded pricing table.
	PricingFile string

	// PricingWatch enables hot reload of PricingFile on change.
	PricingWatch bool
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		HTTPPort:              getEnvInt("OBSERVE_PORT", 8000),
		PrometheusPort:        getEnvInt("PROMETHEUS_PORT", 0),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		DefaultChatModel:      getEnvOr("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		DefaultEmbeddingModel: getEnvOr("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
		LocalLLMURL:           os.Getenv("LOCAL_LLM_URL"),
		LocalModelName:        getEnvOr("LOCAL_MODEL_NAME", "llama-cpp"),
		WeaviateURL:           getEnvOr("WEAVIATE_URL", "http://localhost:8080"),
		VectorClass:           getEnvOr("VECTOR_CLASS", "ObserveDocument"),
		PricingFile:           os.Getenv("OBSERVE_PRICING_FILE"),
		PricingWatch:          getEnvOr("OBSERVE_PRICING_WATCH", "true") == "true",
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
