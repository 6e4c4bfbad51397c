// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry configures OpenTelemetry tracing for the intake binaries.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Exporter names accepted by SetupTracing.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// SetupTracing installs the global tracer provider and W3C propagator.
//
// Description:
//
//	"none" installs only the propagator; spans stay no-op. "stdout" writes
//	pretty-printed spans to stdoutWriter (os.Stdout when nil). "otlp"
//	exports over gRPC, configured by the standard OTEL_EXPORTER_OTLP_*
//	environment variables.
//
// Inputs:
//
//	ctx - Context for exporter construction.
//	exporter - One of ExporterNone, ExporterStdout, ExporterOTLP.
//	serviceName - Value of the service.name resource attribute.
//	stdoutWriter - Destination for the stdout exporter. May be nil.
//
// Outputs:
//
//	ShutdownFunc - Always non-nil; a no-op for "none".
//	error - Non-nil for an unknown exporter or a construction failure.
func SetupTracing(ctx context.Context, exporter, serviceName string, stdoutWriter io.Writer) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	noop := func(context.Context) error { return nil }

	var spanExporter sdktrace.SpanExporter
	switch exporter {
	case "", ExporterNone:
		return noop, nil
	case ExporterStdout:
		if stdoutWriter == nil {
			stdoutWriter = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdoutWriter), stdouttrace.WithPrettyPrint())
		if err != nil {
			return noop, fmt.Errorf("telemetry: creating stdout exporter: %w", err)
		}
		spanExporter = exp
	case ExporterOTLP:
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(serviceName)))
		if err != nil {
			return noop, fmt.Errorf("telemetry: creating otlp exporter: %w", err)
		}
		spanExporter = exp
	default:
		return noop, fmt.Errorf("telemetry: unknown trace exporter %q", exporter)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("Tracing enabled",
		slog.String("exporter", exporter),
		slog.String("service", serviceName))
	return tp.Shutdown, nil
}

// LoggerWithTrace returns logger annotated with the trace and span ids of
// the span in ctx, if any.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
