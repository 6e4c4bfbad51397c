// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// llmTracerName is the shared OTel tracer name for all completion clients.
const llmTracerName = "intake.llm"

// Package-level Prometheus metrics for completion calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// llmCallDuration measures the duration of completion calls.
	//
	// Labels:
	//   - provider: "together", "ollama", or a custom OpenAI-compatible name
	//   - status: "success" or "error"
	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of LLM completion calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM completion calls.",
		},
		[]string{"provider", "status"},
	)

	// llmErrorsTotal counts completion errors by type.
	//
	// Labels:
	//   - error_type: "timeout", "auth", "rate_limit", "server",
	//     "empty_response", "unknown"
	llmErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total LLM completion errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)

// classifyError maps an error to a label-safe error type string.
//
// Description:
//
//	Typed errors are checked first (EmptyResponseError, ProviderError with
//	a status code); anything else falls back to message inspection. Keeps
//	raw error text out of metric labels.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server",
//	         "empty_response", "unknown". Empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	var emptyErr *EmptyResponseError
	if errors.As(err, &emptyErr) {
		return "empty_response"
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode != 0 {
		switch {
		case provErr.StatusCode == 401 || provErr.StatusCode == 403:
			return "auth"
		case provErr.StatusCode == 429:
			return "rate_limit"
		case provErr.StatusCode >= 500:
			return "server"
		}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	default:
		return "unknown"
	}
}

// recordLLMMetrics records Prometheus metrics for a completed call.
//
// Thread Safety: Safe for concurrent use.
func recordLLMMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		llmErrorsTotal.WithLabelValues(provider, classifyError(err)).Inc()
	}

	llmCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	llmCallsTotal.WithLabelValues(provider, status).Inc()
}

// llmTokens counts tokens reported by the provider's usage block.
//
// Created against the global MeterProvider, which delegates to whatever
// provider telemetry.SetupMetrics installs later.
var llmTokens = mustInt64Counter("intake.llm.tokens",
	metric.WithDescription("Tokens consumed by completion calls."),
	metric.WithUnit("{token}"))

func mustInt64Counter(name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := otel.Meter(llmTracerName).Int64Counter(name, opts...)
	if err != nil {
		slog.Warn("Failed to create OTel counter", slog.String("name", name), slog.String("error", err.Error()))
	}
	return c
}

// recordTokenUsage adds prompt and completion token counts.
//
// Thread Safety: Safe for concurrent use.
func recordTokenUsage(ctx context.Context, provider, model string, prompt, completion int64) {
	if llmTokens == nil {
		return
	}
	base := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", model),
	}
	llmTokens.Add(ctx, prompt, metric.WithAttributes(append(base, attribute.String("token_type", "prompt"))...))
	llmTokens.Add(ctx, completion, metric.WithAttributes(append(base, attribute.String("token_type", "completion"))...))
}
