// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package promotion

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// DefaultEventBuffer is the capacity of a runner's event channel.
const DefaultEventBuffer = 16

// Trigger labels for run metrics.
const (
	TriggerManual = "manual"
	TriggerTicker = "ticker"
)

// Runner drives promotion runs in the background.
//
// Thread Safety: Safe for concurrent use. Runs themselves serialize through
// the store's writer; the runner only schedules them.
type Runner struct {
	engine  *Engine
	metrics *Metrics
	logger  *slog.Logger
	events  chan Event
}

// NewRunner wraps an engine with background scheduling.
//
// Inputs:
//
//	engine - The promotion engine. Must not be nil.
//	metrics - Prometheus metrics; nil disables instrumentation
//	logger - Logger; nil falls back to slog.Default()
func NewRunner(engine *Engine, metrics *Metrics, logger *slog.Logger) (*Runner, error) {
	if engine == nil {
		return nil, ErrMissingDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
		events:  make(chan Event, DefaultEventBuffer),
	}, nil
}

// Events exposes completed run events.
//
// The channel is buffered; when no consumer keeps up, events are dropped
// rather than blocking a run.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// RunNow executes one promotion run synchronously.
//
// A panicking run is recovered, logged, and counted; the caller gets a
// zero Event instead of the panic.
func (r *Runner) RunNow(ctx context.Context) (ev Event) {
	defer r.recoverPanic()
	return r.run(ctx, TriggerManual)
}

// RunAsync executes one promotion run on its own goroutine.
//
// Description:
//
//	The goroutine carries a recover boundary so a panicking run cannot
//	take down the process; the panic is logged and counted instead.
func (r *Runner) RunAsync(ctx context.Context) {
	go func() {
		defer r.recoverPanic()
		r.run(ctx, TriggerManual)
	}()
}

// Start launches periodic promotion runs until ctx is cancelled.
//
// Description:
//
//	Runs every interval. A non-positive interval disables the ticker and
//	Start returns immediately; callers then drive runs through RunNow or
//	RunAsync only. Each tick carries its own recover boundary, so a
//	panicking cycle is logged and counted while the ticker keeps
//	running.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runTick(ctx)
			}
		}
	}()
}

// runTick wraps one ticker cycle in its own failure boundary.
func (r *Runner) runTick(ctx context.Context) {
	defer r.recoverPanic()
	r.run(ctx, TriggerTicker)
}

func (r *Runner) run(ctx context.Context, trigger string) Event {
	start := time.Now()
	ev := r.engine.Run(ctx)

	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(trigger).Inc()
		r.metrics.CandidatesPerRun.Observe(float64(ev.TotalCandidates))
		r.metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())
		for source, n := range ev.BySource {
			r.metrics.PromotedTotal.WithLabelValues(string(source)).Add(float64(n))
		}
	}

	select {
	case r.events <- ev:
	default:
		r.logger.Debug("Dropping promotion event, channel full")
	}
	return ev
}

func (r *Runner) recoverPanic() {
	if rec := recover(); rec != nil {
		r.logger.Error("Recovered panic in promotion run",
			"panic", rec,
			"stack", string(debug.Stack()))
		if r.metrics != nil {
			r.metrics.PanicsTotal.Inc()
		}
	}
}
