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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSinkCapacity = 1024
	sinkFlushBatch      = 64
	sinkFlushInterval   = 5 * time.Second
)

// Event is one fire-and-forget operation event published by recorders.
type Event struct {
	Name       string
	Kind       string
	Status     string
	Value      float64
	Attributes map[string]string
	Timestamp  time.Time
}

// EventSink is a bounded, non-blocking queue of operation events.
//
// Publish never blocks the request path: when the queue is full the
// oldest queued event is discarded to make room. Drops are counted and
// surfaced through a rate-limited warning so a slow consumer cannot
// flood the logs. A background goroutine batches queued events and
// flushes them to the structured log on its own schedule.
type EventSink struct {
	ch      chan Event
	logger  *slog.Logger
	limiter *rate.Limiter
	dropped atomic.Int64
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewEventSink creates a sink with the given queue capacity (<= 0 uses
// the default) and starts its consumer goroutine.
func NewEventSink(capacity int, logger *slog.Logger) *EventSink {
	if capacity <= 0 {
		capacity = defaultSinkCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &EventSink{
		ch:      make(chan Event, capacity),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Publish enqueues an event without blocking. When the queue is full
// the oldest queued event is dropped to make room. Publishing to a
// closed sink is a no-op.
func (s *EventSink) Publish(ev Event) {
	if s.closed.Load() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			n := s.dropped.Add(1)
			if s.limiter.Allow() {
				s.logger.Warn("Event sink full, dropping oldest events", "dropped_total", n)
			}
		default:
			// Consumer emptied the queue between selects; retry the send.
		}
	}
}

// Dropped returns the total number of events discarded so far.
func (s *EventSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the consumer after draining queued events. Safe to call
// more than once.
func (s *EventSink) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	s.wg.Wait()
}

func (s *EventSink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(sinkFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, sinkFlushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			s.logger.Debug("operation event",
				"name", ev.Name,
				"kind", ev.Kind,
				"status", ev.Status,
				"value", ev.Value,
				"attributes", ev.Attributes,
				"event_time", ev.Timestamp,
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-s.ch:
			batch = append(batch, ev)
			if len(batch) >= sinkFlushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case ev := <-s.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		}
	}
}
