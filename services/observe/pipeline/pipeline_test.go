// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

func newCorrelator(t *testing.T) *Correlator {
	t.Helper()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	reg, err := telemetry.NewRegistry(provider.Meter("test_pipeline"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewCorrelator(reg, nil)
}

func okStep(name string, cost float64, usage datatypes.Usage) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
			return &recorder.Result{CostUSD: cost, Outcome: recorder.Outcome{Usage: usage}}, nil
		},
	}
}

func failStep(name string, critical bool) Step {
	return Step{
		Name:     name,
		Critical: critical,
		Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
			return nil, errors.New(name + " failed")
		},
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	c := newCorrelator(t)

	summary := c.Execute(context.Background(), []Step{
		okStep("chat", 0.01, datatypes.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}),
		okStep("embed", 0.001, datatypes.Usage{InputTokens: 5, TotalTokens: 5}),
	})

	if summary.Status != StatusSuccess {
		t.Errorf("status = %q, want success", summary.Status)
	}
	if len(summary.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(summary.Steps))
	}
	if math.Abs(summary.TotalCostUSD-0.011) > 1e-12 {
		t.Errorf("total cost = %v, want 0.011", summary.TotalCostUSD)
	}
	if summary.TotalUsage.TotalTokens != 35 {
		t.Errorf("total tokens = %d, want 35", summary.TotalUsage.TotalTokens)
	}
	if _, err := uuid.Parse(summary.CorrelationID); err != nil {
		t.Errorf("correlation id %q is not a uuid", summary.CorrelationID)
	}
}

func TestExecute_NonCriticalFailureContinues(t *testing.T) {
	c := newCorrelator(t)

	summary := c.Execute(context.Background(), []Step{
		okStep("chat", 0.01, datatypes.Usage{TotalTokens: 10}),
		failStep("store", false),
		okStep("search", 0.002, datatypes.Usage{TotalTokens: 4}),
	})

	if summary.Status != StatusPartial {
		t.Errorf("status = %q, want partial", summary.Status)
	}
	if len(summary.Steps) != 3 {
		t.Fatalf("steps = %d, want 3 (failure recorded, pipeline continued)", len(summary.Steps))
	}
	if summary.Steps[1].Status != StepError {
		t.Errorf("step 2 status = %q, want error", summary.Steps[1].Status)
	}
	if summary.Steps[2].Status != StepSuccess {
		t.Errorf("step 3 status = %q, want success (must run after non-critical failure)", summary.Steps[2].Status)
	}
	// Totals sum only executed, successful steps.
	if math.Abs(summary.TotalCostUSD-0.012) > 1e-12 {
		t.Errorf("total cost = %v, want 0.012", summary.TotalCostUSD)
	}
	if summary.TotalUsage.TotalTokens != 14 {
		t.Errorf("total tokens = %d, want 14", summary.TotalUsage.TotalTokens)
	}
}

func TestExecute_CriticalFailureAborts(t *testing.T) {
	c := newCorrelator(t)

	ran := false
	summary := c.Execute(context.Background(), []Step{
		okStep("chat", 0.01, datatypes.Usage{TotalTokens: 10}),
		failStep("embed", true),
		{
			Name: "search",
			Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
				ran = true
				return &recorder.Result{}, nil
			},
		},
	})

	if ran {
		t.Error("step after critical failure must not run")
	}
	if summary.Status != StatusPartial {
		t.Errorf("status = %q, want partial", summary.Status)
	}
	if len(summary.Steps) != 3 {
		t.Fatalf("steps = %d, want 3 (skipped step still reported)", len(summary.Steps))
	}
	if summary.Steps[2].Status != StepSkipped {
		t.Errorf("step 3 status = %q, want skipped", summary.Steps[2].Status)
	}
	if math.Abs(summary.TotalCostUSD-0.01) > 1e-12 {
		t.Errorf("total cost = %v, want 0.01 (only the executed step)", summary.TotalCostUSD)
	}
}

func TestExecute_StepsShareCorrelationID(t *testing.T) {
	c := newCorrelator(t)

	seen := make([]string, 0, 2)
	step := func(name string) Step {
		return Step{
			Name: name,
			Run: func(ctx context.Context, correlationID string) (*recorder.Result, error) {
				seen = append(seen, correlationID)
				return &recorder.Result{}, nil
			},
		}
	}

	summary := c.Execute(context.Background(), []Step{step("a"), step("b")})
	if len(seen) != 2 || seen[0] != seen[1] {
		t.Errorf("steps saw different correlation ids: %v", seen)
	}
	if seen[0] != summary.CorrelationID {
		t.Errorf("summary correlation id %q differs from steps' %q", summary.CorrelationID, seen[0])
	}
}

func TestExecute_EmptyPipeline(t *testing.T) {
	c := newCorrelator(t)

	summary := c.Execute(context.Background(), nil)
	if summary.Status != StatusSuccess {
		t.Errorf("status = %q, want success for empty pipeline", summary.Status)
	}
	if summary.TotalCostUSD != 0 {
		t.Errorf("total cost = %v, want 0", summary.TotalCostUSD)
	}
}
