// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evals scores generated text with a cheap deterministic
// heuristic. It is not a quality judge; it exists to catch obviously
// broken generations (empty output, prompt echo, token soup) and to
// feed the gen_ai.eval.* metrics.
package evals

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
)

// PassThreshold is the minimum score considered a pass.
const PassThreshold = 0.6

// Result is the outcome of one heuristic eval.
type Result struct {
	Score    float64
	Passed   bool
	Criteria map[string]bool
}

// Score evaluates generated output against the reference input using
// five boolean criteria, each worth 1/5 of the score:
//
//	has_content       - non-empty after trimming
//	reasonable_length - longer than 10 characters
//	not_just_input    - non-empty and differs from the reference, case-insensitively
//	has_spaces        - contains at least one space
//	not_gibberish     - more than two whitespace-separated tokens
//
// Score is pure: no I/O, no randomness, no clock.
func Score(output, reference string) Result {
	trimmed := strings.TrimSpace(output)

	criteria := map[string]bool{
		"has_content":       len(trimmed) > 0,
		"reasonable_length": len(trimmed) > 10,
		"not_just_input":    len(trimmed) > 0 && !strings.EqualFold(trimmed, strings.TrimSpace(reference)),
		"has_spaces":        strings.Contains(output, " "),
		"not_gibberish":     len(strings.Fields(output)) > 2,
	}

	met := 0
	for _, ok := range criteria {
		if ok {
			met++
		}
	}
	score := float64(met) / float64(len(criteria))

	return Result{
		Score:    score,
		Passed:   score >= PassThreshold,
		Criteria: criteria,
	}
}

// Attribution identifies which operation an eval belongs to on the
// emitted metrics.
type Attribution struct {
	System    string
	Operation string
	Model     string
	UserID    string
}

// Scorer runs heuristic evals and emits the gen_ai.eval.* metrics.
type Scorer struct {
	reg *telemetry.Registry
}

// NewScorer returns a Scorer emitting through the given registry.
func NewScorer(reg *telemetry.Registry) *Scorer {
	return &Scorer{reg: reg}
}

// Run scores output against reference and records score, pass/fail,
// and duration metrics. The heuristic itself cannot fail, so Run has
// no error path; recorder callers treat the whole eval as optional.
func (s *Scorer) Run(ctx context.Context, output, reference string, attr Attribution) Result {
	start := time.Now()
	result := Score(output, reference)

	attrs := metric.WithAttributes(
		attribute.String("gen_ai.system", attr.System),
		attribute.String("gen_ai.operation.name", attr.Operation),
		attribute.String("gen_ai.request.model", attr.Model),
		attribute.String("user.id", attr.UserID),
	)

	s.reg.EvalScore.Record(ctx, result.Score, attrs)
	s.reg.EvalDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if result.Passed {
		s.reg.EvalPassed.Add(ctx, 1, attrs)
	} else {
		s.reg.EvalFailed.Add(ctx, 1, attrs)
	}

	return result
}
