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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Metric exporter names accepted by SetupMetrics. ExporterNone and
// ExporterStdout are shared with SetupTracing.
const (
	ExporterPrometheus = "prometheus"
)

// SetupMetrics installs the global OTel MeterProvider.
//
// Description:
//
//	"prometheus" bridges OTel instruments into reg so they are served next
//	to the promauto metrics on GET /metrics. "stdout" periodically writes
//	pretty-printed metrics to stdoutWriter. "none" leaves the global
//	provider as a no-op.
//
// Inputs:
//
//	exporter - One of ExporterNone, ExporterPrometheus, ExporterStdout.
//	serviceName - Value of the service.name resource attribute.
//	reg - Registry for the prometheus exporter. nil uses the default.
//	stdoutWriter - Destination for the stdout exporter. May be nil.
//
// Outputs:
//
//	ShutdownFunc - Always non-nil.
//	error - Non-nil for an unknown exporter or a construction failure.
func SetupMetrics(exporter, serviceName string, reg prometheus.Registerer, stdoutWriter io.Writer) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	var reader sdkmetric.Reader
	switch exporter {
	case "", ExporterNone:
		return noop, nil
	case ExporterPrometheus:
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		exp, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return noop, fmt.Errorf("telemetry: creating prometheus exporter: %w", err)
		}
		reader = exp
	case ExporterStdout:
		if stdoutWriter == nil {
			stdoutWriter = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(stdoutWriter), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return noop, fmt.Errorf("telemetry: creating stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	default:
		return noop, fmt.Errorf("telemetry: unknown metric exporter %q", exporter)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics enabled",
		slog.String("exporter", exporter),
		slog.String("service", serviceName))
	return mp.Shutdown, nil
}
