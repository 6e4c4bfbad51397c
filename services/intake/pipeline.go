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
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianIntake/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultTemperature is the sampling temperature for extraction.
const DefaultTemperature = 0.2

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	// Temperature for the completion call. nil uses DefaultTemperature.
	Temperature *float64

	// MaxTokens caps the completion length. nil leaves it to the provider.
	MaxTokens *int

	// ExistingTaskSample is the per_page of the existing-task fetch.
	ExistingTaskSample int
}

// Pipeline runs one freetext input through all five stages.
//
// Thread Safety: Safe for concurrent use. No state is shared between runs.
type Pipeline struct {
	builder    *ContextBuilder
	completer  llm.Completer
	reconciler *Reconciler
	committer  *Committer
	params     llm.GenerationParams
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline wires the stages.
//
// Inputs:
//
//	store - Task store for reference data and commits.
//	completer - Completion provider.
//	cfg - Tuning.
//	logger - nil uses slog.Default().
func NewPipeline(store TaskStore, completer llm.Completer, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	temp := cfg.Temperature
	if temp == nil {
		temp = llm.Float64Ptr(DefaultTemperature)
	}
	return &Pipeline{
		builder:    NewContextBuilder(store, cfg.ExistingTaskSample, logger),
		completer:  completer,
		reconciler: NewReconciler(logger),
		committer:  NewCommitter(store, logger),
		params: llm.GenerationParams{
			Temperature: temp,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    true,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the pipeline.
//
// Outputs:
//
//	*RunResult - Per-record outcomes. Individual records may have failed.
//	error - ErrEmptyFreetext, ErrNoValidTasks, *UnparsableResponseError,
//	  *llm.EmptyResponseError or *ProviderTransportError. Nothing has been
//	  committed when an error is returned.
func (p *Pipeline) Run(ctx context.Context, freetext string) (result *RunResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "intake.Pipeline.Run")
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			runsTotal.WithLabelValues(runErrorLabel(err)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			runsTotal.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	if strings.TrimSpace(freetext) == "" {
		return nil, ErrEmptyFreetext
	}

	snap, err := p.builder.Build(ctx)
	if err != nil {
		return nil, &ProviderTransportError{Service: "store", Err: err}
	}

	raw, err := p.completer.Complete(ctx, BuildMessages(snap, freetext, p.now()), p.params)
	if err != nil {
		var emptyErr *llm.EmptyResponseError
		if errors.As(err, &emptyErr) {
			return nil, err
		}
		return nil, &ProviderTransportError{Service: "llm", Err: err}
	}

	_, nspan := otel.Tracer(tracerName).Start(ctx, "intake.Normalize")
	batch, err := Normalize(raw)
	if err != nil {
		nspan.RecordError(err)
		nspan.SetStatus(codes.Error, "unparsable")
	}
	nspan.End()
	if err != nil {
		return nil, err
	}

	_, rspan := otel.Tracer(tracerName).Start(ctx, "intake.Reconcile")
	records := p.reconciler.Reconcile(batch, snap.Projects, snap.Labels)
	rspan.SetAttributes(
		attribute.Int("candidates", len(batch.Tasks)),
		attribute.Int("records", len(records)),
	)
	rspan.End()
	if len(records) == 0 {
		return nil, ErrNoValidTasks
	}

	results := p.committer.Commit(ctx, records)
	succeeded := Succeeded(results)
	p.logger.Info("Intake run completed",
		slog.String("provider", p.completer.Name()),
		slog.Int("succeeded", succeeded),
		slog.Int("total", len(results)))
	return &RunResult{Results: results, Succeeded: succeeded, Total: len(results)}, nil
}

func runErrorLabel(err error) string {
	var unparsable *UnparsableResponseError
	var transport *ProviderTransportError
	var empty *llm.EmptyResponseError
	switch {
	case errors.Is(err, ErrEmptyFreetext):
		return "empty_input"
	case errors.Is(err, ErrNoValidTasks):
		return "no_tasks"
	case errors.As(err, &unparsable), errors.As(err, &empty):
		return "unparsable"
	case errors.As(err, &transport):
		return "provider_error"
	default:
		return "error"
	}
}
