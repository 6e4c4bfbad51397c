// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vikunja

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const storeTracerName = "intake.vikunja"

var (
	// storeRequestsTotal counts task store requests.
	// Labels: op (list_projects, list_labels, list_tasks, create_task, bulk_labels), status (success, error)
	storeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "store",
		Name:      "requests_total",
		Help:      "Total task store requests by operation and status",
	}, []string{"op", "status"})

	storeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intake",
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Task store request latency by operation",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"op"})
)

func recordStoreRequest(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeRequestsTotal.WithLabelValues(op, status).Inc()
	storeRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}
