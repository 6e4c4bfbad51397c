// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer for pipeline stages.
const tracerName = "intake.pipeline"

var (
	// normalizeStrategyTotal counts recovery strategy attempts.
	// Labels: strategy (direct, fenced, braces), outcome (accepted, rejected, skipped)
	normalizeStrategyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "normalize_strategy_total",
		Help:      "Response normalizer strategy attempts by outcome",
	}, []string{"strategy", "outcome"})

	// reconcileDroppedTotal counts values removed during reconciliation.
	// Labels: reason (no_project, blank_title, unknown_label, project_downgrade)
	reconcileDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "reconcile_dropped_total",
		Help:      "Candidates or identifiers dropped or downgraded during reconciliation",
	}, []string{"reason"})

	// commitResultsTotal counts per-record commit outcomes.
	// Labels: outcome (created, labels_attached, label_failure, create_failure)
	commitResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "commit_results_total",
		Help:      "Per-record commit outcomes",
	}, []string{"outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "runs_total",
		Help:      "Pipeline runs by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "intake",
		Name:      "run_duration_seconds",
		Help:      "End-to-end pipeline run latency",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
)
