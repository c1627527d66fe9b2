// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recorder wraps AI operations in a span, derives usage and
// cost, and emits the full metric set for each call.
//
// The contract with callers: the collaborator closure does the work
// and reports what happened (payload, token usage, generated text);
// the Recorder owns every telemetry side effect. Exactly one
// operation-count sample with a terminal status is emitted per call,
// on every exit path, including panics in the collaborator. Only the
// collaborator's error crosses the Record boundary; eval and export
// failures are absorbed.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jinterlante1206/AleutianObserve/services/observe/costs"
	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/evals"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

const tracerName = "observe.recorder"

// ErrNilCollaborator is returned when Record is called without a closure.
var ErrNilCollaborator = errors.New("collaborator must not be nil")

// Kind identifies the type of AI operation being recorded.
type Kind string

const (
	KindChat           Kind = "chat"
	KindEmbedding      Kind = "embedding"
	KindLocalInference Kind = "local_inference"
	KindVectorAdd      Kind = "vector_add"
	KindVectorSearch   Kind = "vector_search"
)

// Generative reports whether outputs of this kind get an eval pass.
func (k Kind) Generative() bool {
	return k == KindChat || k == KindLocalInference
}

// Vector reports whether this kind targets the vector store.
func (k Kind) Vector() bool {
	return k == KindVectorAdd || k == KindVectorSearch
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Operation describes one unit of AI work before it runs.
type Operation struct {
	Kind          Kind
	System        string // provider: "openai", "llama-cpp", "weaviate"
	Model         string
	UserID        string
	SessionID     string
	CorrelationID string
}

// VectorStats carries vector-store result shapes back from the
// collaborator for metric emission.
type VectorStats struct {
	// ResultCount is the number of hits a search returned.
	ResultCount int

	// DocumentsAdded moves the stored-documents gauge.
	DocumentsAdded int
}

// Outcome is what a successful collaborator reports back.
type Outcome struct {
	// Payload is handed through to the caller untouched.
	Payload any

	// Usage is the token accounting, zero for vector operations.
	Usage datatypes.Usage

	// GeneratedText and ReferenceText feed the eval pass on
	// generative kinds.
	GeneratedText string
	ReferenceText string

	// FinishReason is the provider's stop reason, when it has one.
	FinishReason string

	// TimeToFirstToken is reported by streaming-capable backends.
	// Zero means unknown and is not recorded.
	TimeToFirstToken time.Duration

	// Vector carries result shapes for vector kinds.
	Vector *VectorStats
}

// Result is what Record returns alongside the collaborator payload.
type Result struct {
	Outcome  Outcome
	CostUSD  float64
	Duration time.Duration
	Eval     *evals.Result
}

// Recorder emits telemetry for AI operations.
//
// All dependencies are explicit so tests can substitute an in-memory
// meter and assert on collected metrics.
type Recorder struct {
	reg    *telemetry.Registry
	costs  *costs.Table
	scorer *evals.Scorer
	sink   *telemetry.EventSink
	logger *slog.Logger
}

// New builds a Recorder. The sink may be nil when fire-and-forget
// events are not wanted (tests, tools).
func New(reg *telemetry.Registry, table *costs.Table, scorer *evals.Scorer, sink *telemetry.EventSink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{reg: reg, costs: table, scorer: scorer, sink: sink, logger: logger}
}

// Record runs the collaborator inside a span and emits the metric set
// for the operation.
//
// Emission rules:
//   - one operation-count sample with status success|error, always
//   - duration histogram sample, always
//   - token usage, token totals, and cost only on success
//   - vector metrics for vector kinds; errors feed vector_errors_total
//   - generative kinds get a heuristic eval whose failures are absorbed
//
// Cancellation surfaces as status=error with error_type=cancelled and
// no cost is accrued. The collaborator's error is returned untouched.
func (r *Recorder) Record(ctx context.Context, op Operation, fn func(context.Context) (Outcome, error)) (*Result, error) {
	if fn == nil {
		return nil, ErrNilCollaborator
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, spanName(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(r.spanAttrs(op)...),
	)

	status := statusError
	errType := ""
	var elapsed time.Duration
	var out Outcome

	defer func() {
		if elapsed == 0 {
			// Collaborator panicked before elapsed was set.
			elapsed = time.Since(start)
		}
		base := r.baseAttrs(op)

		countAttrs := append(base[:len(base):len(base)], attribute.String("status", status))
		if errType != "" {
			countAttrs = append(countAttrs, attribute.String("error_type", errType))
		}
		r.reg.OperationCount.Add(ctx, 1, metric.WithAttributes(countAttrs...))
		r.reg.OperationDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(base...))

		if op.Kind.Vector() {
			vattrs := metric.WithAttributes(
				attribute.String("operation", string(op.Kind)),
				attribute.String("status", status),
			)
			r.reg.VectorOperationDuration.Record(ctx, elapsed.Seconds(), vattrs)
			r.reg.VectorOperations.Add(ctx, 1, vattrs)
			if status == statusError {
				r.reg.VectorErrors.Add(ctx, 1, metric.WithAttributes(
					attribute.String("operation", string(op.Kind)),
					attribute.String("error_type", errType),
				))
			}
		}

		if r.sink != nil {
			r.sink.Publish(telemetry.Event{
				Name:   "ai.operation",
				Kind:   string(op.Kind),
				Status: status,
				Value:  elapsed.Seconds(),
				Attributes: map[string]string{
					"model":          op.Model,
					"system":         op.System,
					"user_id":        op.UserID,
					"correlation_id": op.CorrelationID,
					"error_type":     errType,
				},
			})
		}

		span.End()
	}()

	r.reg.TotalRequests.Add(ctx, 1, metric.WithAttributes(r.baseAttrs(op)...))

	var err error
	out, err = fn(ctx)
	elapsed = time.Since(start)
	if err != nil {
		errType = errorType(err)
		telemetry.RecordError(span, err, attribute.String("error.type", errType))
		return nil, err
	}
	status = statusSuccess

	result := &Result{Outcome: out, Duration: elapsed}
	base := r.baseAttrs(op)

	if usage := out.Usage; usage.InputTokens > 0 || usage.OutputTokens > 0 {
		if usage.InputTokens > 0 {
			r.reg.TokenUsage.Record(ctx, int64(usage.InputTokens), metric.WithAttributes(
				append(base[:len(base):len(base)], attribute.String("gen_ai.token.type", "input"))...,
			))
			r.reg.InputTokens.Add(ctx, int64(usage.InputTokens), metric.WithAttributes(base...))
		}
		if usage.OutputTokens > 0 {
			r.reg.TokenUsage.Record(ctx, int64(usage.OutputTokens), metric.WithAttributes(
				append(base[:len(base):len(base)], attribute.String("gen_ai.token.type", "output"))...,
			))
			r.reg.OutputTokens.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(base...))

			// Non-streaming approximation of per-token latency.
			r.reg.TimePerOutputToken.Record(ctx, elapsed.Seconds()/float64(usage.OutputTokens), metric.WithAttributes(base...))
		}

		result.CostUSD = r.costs.Compute(op.Model, usage.InputTokens, usage.OutputTokens)
		r.reg.OperationCost.Add(ctx, result.CostUSD, metric.WithAttributes(base...))
		r.reg.CostDistribution.Record(ctx, result.CostUSD, metric.WithAttributes(base...))
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", usage.InputTokens),
			attribute.Int("gen_ai.usage.output_tokens", usage.OutputTokens),
			attribute.Float64("gen_ai.usage.cost_usd", result.CostUSD),
		)
	}

	if out.TimeToFirstToken > 0 {
		r.reg.TimeToFirstToken.Record(ctx, out.TimeToFirstToken.Seconds(), metric.WithAttributes(base...))
	}

	if out.Vector != nil {
		if out.Vector.DocumentsAdded != 0 {
			r.reg.VectorStorageDocuments.Add(ctx, int64(out.Vector.DocumentsAdded))
		}
		if op.Kind == KindVectorSearch {
			r.reg.VectorSearchResults.Record(ctx, int64(out.Vector.ResultCount), metric.WithAttributes(
				attribute.String("operation", string(op.Kind)),
			))
		}
	}

	if op.Kind.Generative() && out.GeneratedText != "" {
		result.Eval = r.runEval(ctx, op, out)
	}

	telemetry.SetSpanOK(span)
	return result, nil
}

// runEval scores the generated text. Any panic is absorbed: a broken
// eval must never fail a healthy operation.
func (r *Recorder) runEval(ctx context.Context, op Operation, out Outcome) (res *evals.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("Eval failed, skipping", "kind", op.Kind, "panic", p)
			res = nil
		}
	}()
	if r.scorer == nil {
		return nil
	}
	ev := r.scorer.Run(ctx, out.GeneratedText, out.ReferenceText, evals.Attribution{
		System:    op.System,
		Operation: string(op.Kind),
		Model:     op.Model,
		UserID:    op.UserID,
	})
	return &ev
}

func (r *Recorder) baseAttrs(op Operation) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("gen_ai.system", op.System),
		attribute.String("gen_ai.operation.name", string(op.Kind)),
		attribute.String("gen_ai.request.model", op.Model),
		attribute.String("user.id", op.UserID),
		attribute.String("telemetry.sdk.name", telemetry.SDKName),
	}
}

func (r *Recorder) spanAttrs(op Operation) []attribute.KeyValue {
	attrs := r.baseAttrs(op)
	if op.SessionID != "" {
		attrs = append(attrs, attribute.String("session.id", op.SessionID))
	}
	if op.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation.id", op.CorrelationID))
	}
	return attrs
}

func spanName(op Operation) string {
	if op.Model == "" {
		return string(op.Kind)
	}
	return fmt.Sprintf("%s %s", op.Kind, op.Model)
}

// errorType maps an error to a low-cardinality label. Context
// cancellation and deadline expiry get their own labels so dashboards
// can split client aborts from provider failures.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("openai_api_%d", apiErr.HTTPStatusCode)
	}
	return "error"
}
