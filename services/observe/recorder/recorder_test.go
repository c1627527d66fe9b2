// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recorder

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jinterlante1206/AleutianObserve/services/observe/costs"
	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/evals"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

type harness struct {
	rec    *Recorder
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	reg, err := telemetry.NewRegistry(provider.Meter("test_recorder"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	table, err := costs.NewTable(nil)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	rec := New(reg, table, evals.NewScorer(reg), nil, nil)
	return &harness{rec: rec, reader: reader}
}

// counterPoints returns the datapoints of an Int64 sum instrument, or
// nil when the instrument has no data yet.
func (h *harness) counterPoints(t *testing.T, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", name)
			}
			return sum.DataPoints
		}
	}
	return nil
}

func attrValue(dp metricdata.DataPoint[int64], key string) string {
	if v, ok := dp.Attributes.Value(attribute.Key(key)); ok {
		return v.AsString()
	}
	return ""
}

func chatOp() Operation {
	return Operation{
		Kind:   KindChat,
		System: "openai",
		Model:  "gpt-3.5-turbo",
		UserID: "u1",
	}
}

func TestRecord_SuccessEmitsExactlyOneCount(t *testing.T) {
	h := newHarness(t)

	result, err := h.rec.Record(context.Background(), chatOp(), func(ctx context.Context) (Outcome, error) {
		return Outcome{
			Usage:         datatypes.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
			GeneratedText: "The quick brown fox jumps over the lazy dog",
			ReferenceText: "tell me about foxes",
		}, nil
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	points := h.counterPoints(t, "gen_ai.client.operation.count")
	if len(points) != 1 {
		t.Fatalf("operation count has %d datapoints, want 1", len(points))
	}
	if points[0].Value != 1 {
		t.Errorf("operation count = %d, want 1", points[0].Value)
	}
	if got := attrValue(points[0], "status"); got != "success" {
		t.Errorf("status = %q, want success", got)
	}

	if result.CostUSD <= 0 {
		t.Errorf("CostUSD = %v, want > 0 for a priced model", result.CostUSD)
	}
	if result.Eval == nil || !result.Eval.Passed {
		t.Errorf("expected a passing eval, got %+v", result.Eval)
	}
	if result.Duration <= 0 {
		t.Error("Duration not measured")
	}
}

func TestRecord_ErrorPropagatesUntouched(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("upstream exploded")

	_, err := h.rec.Record(context.Background(), chatOp(), func(ctx context.Context) (Outcome, error) {
		return Outcome{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Record() error = %v, want the collaborator error", err)
	}

	points := h.counterPoints(t, "gen_ai.client.operation.count")
	if len(points) != 1 {
		t.Fatalf("operation count has %d datapoints, want 1", len(points))
	}
	if got := attrValue(points[0], "status"); got != "error" {
		t.Errorf("status = %q, want error", got)
	}

	// No cost on the error path.
	if cost := h.counterPoints(t, "gen_ai.usage.input_tokens"); len(cost) != 0 {
		t.Errorf("input tokens recorded on error path: %v", cost)
	}
}

func TestRecord_CancellationIsLabelled(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.rec.Record(ctx, chatOp(), func(ctx context.Context) (Outcome, error) {
		cancel()
		return Outcome{}, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Record() error = %v, want context.Canceled", err)
	}

	points := h.counterPoints(t, "gen_ai.client.operation.count")
	if len(points) != 1 {
		t.Fatalf("operation count has %d datapoints, want 1", len(points))
	}
	if got := attrValue(points[0], "error_type"); got != "cancelled" {
		t.Errorf("error_type = %q, want cancelled", got)
	}
}

func TestRecord_PanicStillClosesScope(t *testing.T) {
	h := newHarness(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the collaborator panic to propagate")
			}
		}()
		_, _ = h.rec.Record(context.Background(), chatOp(), func(ctx context.Context) (Outcome, error) {
			panic("collaborator bug")
		})
	}()

	points := h.counterPoints(t, "gen_ai.client.operation.count")
	if len(points) != 1 {
		t.Fatalf("operation count has %d datapoints after panic, want 1", len(points))
	}
	if got := attrValue(points[0], "status"); got != "error" {
		t.Errorf("status = %q, want error", got)
	}
}

func TestRecord_NilCollaborator(t *testing.T) {
	h := newHarness(t)
	if _, err := h.rec.Record(context.Background(), chatOp(), nil); !errors.Is(err, ErrNilCollaborator) {
		t.Fatalf("err = %v, want ErrNilCollaborator", err)
	}
}

func TestRecord_VectorSearchMetrics(t *testing.T) {
	h := newHarness(t)

	op := Operation{Kind: KindVectorSearch, System: "weaviate", Model: "text-embedding-ada-002", UserID: "u1"}
	_, err := h.rec.Record(context.Background(), op, func(ctx context.Context) (Outcome, error) {
		return Outcome{Vector: &VectorStats{ResultCount: 5}}, nil
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	points := h.counterPoints(t, "vector_operations_total")
	if len(points) != 1 {
		t.Fatalf("vector operations has %d datapoints, want 1", len(points))
	}
	if got := attrValue(points[0], "operation"); got != "vector_search" {
		t.Errorf("operation = %q, want vector_search", got)
	}
	if got := attrValue(points[0], "status"); got != "success" {
		t.Errorf("status = %q, want success", got)
	}
}

func TestRecord_VectorAddMovesGauge(t *testing.T) {
	h := newHarness(t)

	op := Operation{Kind: KindVectorAdd, System: "weaviate", UserID: "u1"}
	_, err := h.rec.Record(context.Background(), op, func(ctx context.Context) (Outcome, error) {
		return Outcome{Vector: &VectorStats{DocumentsAdded: 3}}, nil
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	points := h.counterPoints(t, "vector_storage_documents_total")
	if len(points) != 1 || points[0].Value != 3 {
		t.Fatalf("stored documents = %v, want one datapoint of 3", points)
	}
}

func TestRecord_VectorErrorCountsError(t *testing.T) {
	h := newHarness(t)

	op := Operation{Kind: KindVectorAdd, System: "weaviate", UserID: "u1"}
	_, err := h.rec.Record(context.Background(), op, func(ctx context.Context) (Outcome, error) {
		return Outcome{}, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	points := h.counterPoints(t, "vector_errors_total")
	if len(points) != 1 {
		t.Fatalf("vector errors has %d datapoints, want 1", len(points))
	}
}

func TestRecord_NoEvalForEmbeddings(t *testing.T) {
	h := newHarness(t)

	op := Operation{Kind: KindEmbedding, System: "openai", Model: "text-embedding-ada-002", UserID: "u1"}
	result, err := h.rec.Record(context.Background(), op, func(ctx context.Context) (Outcome, error) {
		return Outcome{Usage: datatypes.Usage{InputTokens: 42, TotalTokens: 42}}, nil
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if result.Eval != nil {
		t.Error("embeddings must not be evaled")
	}
}
