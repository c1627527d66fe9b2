// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OBSERVE_PORT", "")
	t.Setenv("OPENAI_CHAT_MODEL", "")
	t.Setenv("WEAVIATE_URL", "")

	cfg := Load()
	if cfg.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d, want 8000", cfg.HTTPPort)
	}
	if cfg.DefaultChatModel != "gpt-3.5-turbo" {
		t.Errorf("DefaultChatModel = %q", cfg.DefaultChatModel)
	}
	if cfg.WeaviateURL != "http://localhost:8080" {
		t.Errorf("WeaviateURL = %q", cfg.WeaviateURL)
	}
	if !cfg.PricingWatch {
		t.Error("PricingWatch should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OBSERVE_PORT", "9100")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4")
	t.Setenv("OBSERVE_PRICING_FILE", "/etc/observe/pricing.yaml")
	t.Setenv("OBSERVE_PRICING_WATCH", "false")

	cfg := Load()
	if cfg.HTTPPort != 9100 {
		t.Errorf("HTTPPort = %d, want 9100", cfg.HTTPPort)
	}
	if cfg.DefaultChatModel != "gpt-4" {
		t.Errorf("DefaultChatModel = %q, want gpt-4", cfg.DefaultChatModel)
	}
	if cfg.PricingFile != "/etc/observe/pricing.yaml" {
		t.Errorf("PricingFile = %q", cfg.PricingFile)
	}
	if cfg.PricingWatch {
		t.Error("PricingWatch should be false")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("OBSERVE_PORT", "not-a-number")
	if cfg := Load(); cfg.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d, want fallback 8000", cfg.HTTPPort)
	}
}
