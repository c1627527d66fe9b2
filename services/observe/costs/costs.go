// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package costs maps token usage to USD amounts.
//
// Rates are per 1K tokens with independent input and output rates. The
// embedded pricing table ships with the binary; deployments can layer
// a pricing file on top via OBSERVE_PRICING_FILE and have it hot
// reloaded on change. An unknown model never fails an operation: it
// costs $0 and logs a warning so the gap is visible.
package costs

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var embeddedPricing []byte

// Rates holds the per-1K-token USD rates for one model.
type Rates struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type pricingFile struct {
	Models map[string]Rates `yaml:"models"`
}

// Table is a concurrency-safe pricing table.
//
// Reads vastly outnumber writes (writes only happen on hot reload), so
// the table is guarded by a RWMutex.
type Table struct {
	mu     sync.RWMutex
	rates  map[string]Rates
	logger *slog.Logger

	// warnLimiter keeps unknown-model warnings from flooding the log
	// when a high-volume caller uses an unpriced model.
	warnLimiter *rate.Limiter
}

// NewTable builds a Table from the embedded pricing data.
func NewTable(logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Table{
		logger:      logger,
		warnLimiter: rate.NewLimiter(rate.Every(30*time.Second), 3),
	}
	rates, err := parsePricing(embeddedPricing)
	if err != nil {
		return nil, fmt.Errorf("parse embedded pricing: %w", err)
	}
	t.rates = rates
	return t, nil
}

// LoadFile merges rates from a pricing file over the current table.
// Models present in the file replace embedded entries; models absent
// from the file keep their embedded rates.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pricing file: %w", err)
	}
	rates, err := parsePricing(data)
	if err != nil {
		return fmt.Errorf("parse pricing file %s: %w", path, err)
	}

	t.mu.Lock()
	for model, r := range rates {
		t.rates[model] = r
	}
	t.mu.Unlock()

	t.logger.Info("Loaded pricing overrides", "path", path, "models", len(rates))
	return nil
}

// Watch reloads the pricing file whenever it changes, until ctx is
// cancelled. Reload failures are logged and the previous table stays
// in effect; a broken half-written file must never zero out pricing.
func (t *Table) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pricing watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch pricing file %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.LoadFile(path); err != nil {
					t.logger.Error("Pricing reload failed, keeping previous table", "path", path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.logger.Error("Pricing watcher error", "error", err)
			}
		}
	}()

	return nil
}

// Compute returns the USD cost of an operation: tokens are billed per
// 1K at the model's input and output rates. Unknown models cost $0.
//
// Compute is pure with respect to the table contents: the same
// arguments against the same table always yield the same amount, and
// the cost is monotonic in both token counts.
func (t *Table) Compute(model string, inputTokens, outputTokens int) float64 {
	t.mu.RLock()
	r, ok := t.rates[model]
	t.mu.RUnlock()

	if !ok {
		if t.warnLimiter.Allow() {
			t.logger.Warn("No pricing for model, assuming $0", "model", model)
		}
		return 0
	}

	return float64(inputTokens)/1000*r.Input + float64(outputTokens)/1000*r.Output
}

// Models returns the priced model names, sorted, for stats reporting.
func (t *Table) Models() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.rates))
	for model := range t.rates {
		names = append(names, model)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

func parsePricing(data []byte) (map[string]Rates, error) {
	var pf pricingFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	if len(pf.Models) == 0 {
		return nil, fmt.Errorf("pricing data contains no models")
	}
	return pf.Models, nil
}
