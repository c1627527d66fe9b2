// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evals

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

func TestScore_EmptyOutputIsZero(t *testing.T) {
	result := Score("", "anything")
	if result.Score != 0 {
		t.Errorf("Score = %v, want 0", result.Score)
	}
	if result.Passed {
		t.Error("empty output must not pass")
	}
}

func TestScore_WhitespaceOnlyIsZero(t *testing.T) {
	// Spaces satisfy no criterion once the content is trimmed away:
	// has_spaces is true but everything else fails, so 1/5 at most.
	result := Score("   ", "anything")
	if result.Passed {
		t.Error("whitespace-only output must not pass")
	}
	if result.Score > 0.2 {
		t.Errorf("Score = %v, want <= 0.2", result.Score)
	}
}

func TestScore_GoodSentenceIsPerfect(t *testing.T) {
	result := Score("The quick brown fox jumps", "fox")
	if result.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0 (criteria: %v)", result.Score, result.Criteria)
	}
	if !result.Passed {
		t.Error("perfect score must pass")
	}
}

func TestScore_PromptEchoFailsNotJustInput(t *testing.T) {
	result := Score("What is the capital of France?", "what is the capital of france?")
	if result.Criteria["not_just_input"] {
		t.Error("case-insensitive echo must fail not_just_input")
	}
	// 4/5 still passes the 0.6 threshold.
	if !result.Passed {
		t.Errorf("4/5 should pass, got score %v", result.Score)
	}
}

func TestScore_GibberishSingleToken(t *testing.T) {
	result := Score("asdfghjklqwertyuiop", "prompt")
	if result.Criteria["not_gibberish"] {
		t.Error("single token must fail not_gibberish")
	}
	if result.Criteria["has_spaces"] {
		t.Error("no spaces present")
	}
	if result.Passed {
		t.Errorf("score %v should not pass", result.Score)
	}
}

func TestScore_BoundsAndDeterminism(t *testing.T) {
	inputs := []struct{ out, ref string }{
		{"", ""},
		{"a", "b"},
		{"one two three four", "one two three four"},
		{"completely different text here", "prompt"},
	}
	for _, in := range inputs {
		first := Score(in.out, in.ref)
		if first.Score < 0 || first.Score > 1 {
			t.Errorf("Score(%q) = %v out of [0,1]", in.out, first.Score)
		}
		for i := 0; i < 5; i++ {
			if got := Score(in.out, in.ref); got.Score != first.Score {
				t.Fatalf("Score not deterministic for %q", in.out)
			}
		}
	}
}

func TestScorer_RunEmitsWithoutPanic(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	reg, err := telemetry.NewRegistry(provider.Meter("test_evals"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	scorer := NewScorer(reg)
	result := scorer.Run(context.Background(), "The quick brown fox jumps", "fox", Attribution{
		System:    "openai",
		Operation: "chat",
		Model:     "gpt-4",
		UserID:    "u1",
	})
	if !result.Passed {
		t.Errorf("expected pass, got %v", result.Score)
	}
}
