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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the promotion engine.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// RunsTotal counts completed promotion runs by trigger.
	RunsTotal *prometheus.CounterVec

	// PromotedTotal counts durable records written by candidate source.
	PromotedTotal *prometheus.CounterVec

	// CandidatesPerRun measures qualifying candidates per run before the cap.
	CandidatesPerRun prometheus.Histogram

	// RunDurationSeconds measures wall time per promotion run.
	RunDurationSeconds prometheus.Histogram

	// PanicsTotal counts recovered panics in background runs.
	PanicsTotal prometheus.Counter
}

// NewMetrics creates and registers all promotion metrics.
//
// Description:
//
//	Uses promauto for automatic registration with the default registerer.
//	Initialize once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "memory_promotion",
				Name:      "runs_total",
				Help:      "Total promotion runs by trigger (manual, ticker)",
			},
			[]string{"trigger"},
		),

		PromotedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "memory_promotion",
				Name:      "promoted_total",
				Help:      "Total durable records written by candidate source",
			},
			[]string{"source"},
		),

		CandidatesPerRun: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aleutian",
				Subsystem: "memory_promotion",
				Name:      "candidates_per_run",
				Help:      "Qualifying candidates per run before the per-run cap",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),

		RunDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aleutian",
				Subsystem: "memory_promotion",
				Name:      "run_duration_seconds",
				Help:      "Wall time per promotion run",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "memory_promotion",
				Name:      "panics_total",
				Help:      "Recovered panics in background promotion runs",
			},
		),
	}
}
