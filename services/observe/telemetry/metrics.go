// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Bucket boundaries follow the OpenTelemetry GenAI semantic conventions:
// https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/
// They are fixed here, at instrument registration, and nowhere else.
var (
	tokenUsageBuckets = []float64{
		1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144,
		1048576, 4194304, 16777216, 67108864,
	}

	operationDurationBuckets = []float64{
		0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56,
		5.12, 10.24, 20.48, 40.96, 81.92,
	}

	serverLatencyBuckets = []float64{
		0.001, 0.005, 0.01, 0.02, 0.04, 0.06, 0.08, 0.1,
		0.25, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5, 10.0,
	}

	costBuckets = []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
	}

	evalScoreBuckets = []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}

	vectorDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	searchResultBuckets = []float64{1, 2, 5, 10, 20, 50, 100}

	httpDurationBuckets = []float64{
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
	}
)

// Registry contains every instrument the observe service emits.
//
// Description:
//
//	Instruments are registered exactly once via NewRegistry and shared
//	by all recorders. Histogram bucket boundaries are part of the
//	registration and can never vary per call site.
//
// Thread Safety: Safe for concurrent use after creation.
type Registry struct {
	// --- GenAI client metrics ---

	// OperationDuration records end-to-end AI operation duration in seconds.
	OperationDuration metric.Float64Histogram

	// TokenUsage records input/output token counts per operation.
	TokenUsage metric.Int64Histogram

	// OperationCount counts completed operations by kind and status.
	OperationCount metric.Int64Counter

	// OperationCost accumulates operation cost in USD.
	OperationCost metric.Float64Counter

	// CostDistribution records per-operation cost in USD as a histogram.
	CostDistribution metric.Float64Histogram

	// InputTokens and OutputTokens accumulate token totals.
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// TotalRequests counts AI requests regardless of outcome.
	TotalRequests metric.Int64Counter

	// TimeToFirstToken records server-side first-token latency in seconds.
	TimeToFirstToken metric.Float64Histogram

	// TimePerOutputToken records per-token generation latency in seconds.
	TimePerOutputToken metric.Float64Histogram

	// --- GenAI eval metrics ---

	// EvalScore records heuristic quality scores in [0, 1].
	EvalScore metric.Float64Histogram

	// EvalPassed and EvalFailed count eval outcomes.
	EvalPassed metric.Int64Counter
	EvalFailed metric.Int64Counter

	// EvalDuration records eval run duration in seconds.
	EvalDuration metric.Float64Histogram

	// --- Vector store metrics ---

	// VectorOperationDuration records vector store operation duration in seconds.
	VectorOperationDuration metric.Float64Histogram

	// VectorOperations counts vector store operations by type and status.
	VectorOperations metric.Int64Counter

	// VectorStorageDocuments tracks the stored document count.
	VectorStorageDocuments metric.Int64UpDownCounter

	// VectorSearchResults records result counts per similarity search.
	VectorSearchResults metric.Int64Histogram

	// VectorErrors counts vector store failures by type.
	VectorErrors metric.Int64Counter

	// --- Pipeline metrics ---

	// PipelineRuns counts pipeline executions by status.
	PipelineRuns metric.Int64Counter

	// PipelineStepDuration records per-step duration in seconds.
	PipelineStepDuration metric.Float64Histogram

	// --- HTTP metrics ---

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter
}

// NewRegistry registers every instrument with the provided meter.
//
// Inputs:
//
//	meter - The OTel meter to register instruments with.
//
// Outputs:
//
//	*Registry - All instruments, ready for use.
//	error - Non-nil if any registration fails.
//
// Example:
//
//	meter := otel.Meter("aleutian.observe")
//	reg, err := telemetry.NewRegistry(meter)
//	if err != nil {
//	    return fmt.Errorf("create metric registry: %w", err)
//	}
func NewRegistry(meter metric.Meter) (*Registry, error) {
	r := &Registry{}
	var err error

	r.OperationDuration, err = meter.Float64Histogram(
		"gen_ai.client.operation.duration",
		metric.WithDescription("GenAI operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(operationDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation duration histogram: %w", err)
	}

	r.TokenUsage, err = meter.Int64Histogram(
		"gen_ai.client.token.usage",
		metric.WithDescription("Measures number of input and output tokens used"),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(tokenUsageBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create token usage histogram: %w", err)
	}

	r.OperationCount, err = meter.Int64Counter(
		"gen_ai.client.operation.count",
		metric.WithDescription("Number of GenAI operations by status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation count counter: %w", err)
	}

	r.OperationCost, err = meter.Float64Counter(
		"gen_ai.client.operation.cost",
		metric.WithDescription("Cost of GenAI operations in USD"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation cost counter: %w", err)
	}

	r.CostDistribution, err = meter.Float64Histogram(
		"gen_ai.usage.cost",
		metric.WithDescription("Per-operation cost distribution in USD"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(costBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create cost distribution histogram: %w", err)
	}

	r.InputTokens, err = meter.Int64Counter(
		"gen_ai.usage.input_tokens",
		metric.WithDescription("Total input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create input tokens counter: %w", err)
	}

	r.OutputTokens, err = meter.Int64Counter(
		"gen_ai.usage.output_tokens",
		metric.WithDescription("Total output tokens generated"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create output tokens counter: %w", err)
	}

	r.TotalRequests, err = meter.Int64Counter(
		"gen_ai.total_requests",
		metric.WithDescription("Total GenAI requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create total requests counter: %w", err)
	}

	r.TimeToFirstToken, err = meter.Float64Histogram(
		"gen_ai.server.time_to_first_token",
		metric.WithDescription("Time to generate the first token"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(serverLatencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create time to first token histogram: %w", err)
	}

	r.TimePerOutputToken, err = meter.Float64Histogram(
		"gen_ai.server.time_per_output_token",
		metric.WithDescription("Time per output token after the first"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(serverLatencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create time per output token histogram: %w", err)
	}

	r.EvalScore, err = meter.Float64Histogram(
		"gen_ai.eval.score",
		metric.WithDescription("Evaluation score for GenAI output"),
		metric.WithUnit("{score}"),
		metric.WithExplicitBucketBoundaries(evalScoreBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create eval score histogram: %w", err)
	}

	r.EvalPassed, err = meter.Int64Counter(
		"gen_ai.eval.passed",
		metric.WithDescription("Number of evals passed"),
		metric.WithUnit("{eval}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create eval passed counter: %w", err)
	}

	r.EvalFailed, err = meter.Int64Counter(
		"gen_ai.eval.failed",
		metric.WithDescription("Number of evals failed"),
		metric.WithUnit("{eval}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create eval failed counter: %w", err)
	}

	r.EvalDuration, err = meter.Float64Histogram(
		"gen_ai.eval.duration",
		metric.WithDescription("Duration of eval runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(serverLatencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create eval duration histogram: %w", err)
	}

	r.VectorOperationDuration, err = meter.Float64Histogram(
		"vector_operation_duration_seconds",
		metric.WithDescription("Vector store operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(vectorDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector operation duration histogram: %w", err)
	}

	r.VectorOperations, err = meter.Int64Counter(
		"vector_operations_total",
		metric.WithDescription("Total vector store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector operations counter: %w", err)
	}

	r.VectorStorageDocuments, err = meter.Int64UpDownCounter(
		"vector_storage_documents_total",
		metric.WithDescription("Documents currently stored in the vector store"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector storage documents counter: %w", err)
	}

	r.VectorSearchResults, err = meter.Int64Histogram(
		"vector_search_results_count",
		metric.WithDescription("Result counts returned by similarity searches"),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(searchResultBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector search results histogram: %w", err)
	}

	r.VectorErrors, err = meter.Int64Counter(
		"vector_errors_total",
		metric.WithDescription("Total vector store errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector errors counter: %w", err)
	}

	r.PipelineRuns, err = meter.Int64Counter(
		"observe_pipeline_runs_total",
		metric.WithDescription("Pipeline executions by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline runs counter: %w", err)
	}

	r.PipelineStepDuration, err = meter.Float64Histogram(
		"observe_pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(operationDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline step duration histogram: %w", err)
	}

	r.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create http request duration histogram: %w", err)
	}

	r.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http requests total counter: %w", err)
	}

	r.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_requests_active",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http active requests counter: %w", err)
	}

	return r, nil
}
