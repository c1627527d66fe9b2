// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline chains recorded AI operations under one correlation
// id and aggregates their cost and usage.
//
// Steps run in declared order. A non-critical step failure is recorded
// and the pipeline moves on; a critical failure aborts the remaining
// steps. Totals sum only steps that actually executed.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jinterlante1206/AleutianObserve/pkg/logging"
	"github.com/jinterlante1206/AleutianObserve/services/observe/datatypes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

const tracerName = "observe.pipeline"

// Step statuses reported in the summary.
const (
	StepSuccess = "success"
	StepError   = "error"
	StepSkipped = "skipped"
)

// Pipeline statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// StepFunc executes one pipeline step. The correlation id is passed so
// the step can stamp it onto the recorder.Operation it runs.
type StepFunc func(ctx context.Context, correlationID string) (*recorder.Result, error)

// Step is one declared pipeline stage.
type Step struct {
	Name string

	// Critical steps abort the pipeline on failure. Non-critical
	// failures are recorded and execution continues.
	Critical bool

	Run StepFunc
}

// Summary is the aggregated outcome of one pipeline run.
type Summary struct {
	CorrelationID string
	Status        string
	Steps         []datatypes.PipelineStepResult
	TotalCostUSD  float64
	TotalUsage    datatypes.Usage
	Duration      time.Duration
}

// accumulator gathers cost and usage across steps. It is mutex-guarded
// so a future move to concurrent step execution is a drop-in change.
type accumulator struct {
	mu    sync.Mutex
	cost  float64
	usage datatypes.Usage
}

func (a *accumulator) add(cost float64, usage datatypes.Usage) {
	a.mu.Lock()
	a.cost += cost
	a.usage.Add(usage)
	a.mu.Unlock()
}

func (a *accumulator) totals() (float64, datatypes.Usage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cost, a.usage
}

// Correlator executes pipelines and emits pipeline metrics.
type Correlator struct {
	reg    *telemetry.Registry
	logger *slog.Logger
}

// NewCorrelator builds a Correlator emitting through reg.
func NewCorrelator(reg *telemetry.Registry, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{reg: reg, logger: logger}
}

// Execute runs the steps in order under a fresh correlation id.
//
// The summary preserves the declared step order, including steps that
// were skipped after a critical failure. Execute itself never returns
// an error: per-step errors are part of the summary, and callers
// decide what a partial pipeline means for their response.
func (c *Correlator) Execute(ctx context.Context, steps []Step) Summary {
	correlationID := uuid.NewString()
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "pipeline.execute",
		trace.WithAttributes(
			attribute.String("correlation.id", correlationID),
			attribute.Int("pipeline.step_count", len(steps)),
		),
	)
	defer span.End()

	var acc accumulator
	results := make([]datatypes.PipelineStepResult, 0, len(steps))
	status := StatusSuccess
	aborted := false

	for _, step := range steps {
		if aborted {
			results = append(results, datatypes.PipelineStepResult{
				Name:     step.Name,
				Status:   StepSkipped,
				Critical: step.Critical,
			})
			continue
		}

		stepStart := time.Now()
		res, err := step.Run(ctx, correlationID)
		stepElapsed := time.Since(stepStart)

		c.reg.PipelineStepDuration.Record(ctx, stepElapsed.Seconds(), metric.WithAttributes(
			attribute.String("step", step.Name),
			attribute.String("status", stepStatus(err)),
		))

		if err != nil {
			status = StatusPartial
			results = append(results, datatypes.PipelineStepResult{
				Name:            step.Name,
				Status:          StepError,
				Critical:        step.Critical,
				DurationSeconds: stepElapsed.Seconds(),
				Error:           err.Error(),
			})
			log := logging.WithTrace(ctx, c.logger)
			if step.Critical {
				log.Error("Critical pipeline step failed, aborting",
					"correlation_id", correlationID, "step", step.Name, "error", err)
				aborted = true
			} else {
				log.Warn("Non-critical pipeline step failed, continuing",
					"correlation_id", correlationID, "step", step.Name, "error", err)
			}
			continue
		}

		acc.add(res.CostUSD, res.Outcome.Usage)
		results = append(results, datatypes.PipelineStepResult{
			Name:            step.Name,
			Status:          StepSuccess,
			Critical:        step.Critical,
			DurationSeconds: stepElapsed.Seconds(),
			CostUSD:         res.CostUSD,
			Usage:           res.Outcome.Usage,
		})
	}

	cost, usage := acc.totals()
	elapsed := time.Since(start)

	c.reg.PipelineRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	span.SetAttributes(
		attribute.String("pipeline.status", status),
		attribute.Float64("pipeline.total_cost_usd", cost),
	)

	return Summary{
		CorrelationID: correlationID,
		Status:        status,
		Steps:         results,
		TotalCostUSD:  cost,
		TotalUsage:    usage,
		Duration:      elapsed,
	}
}

func stepStatus(err error) string {
	if err != nil {
		return StepError
	}
	return StepSuccess
}
