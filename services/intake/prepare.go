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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DefaultExistingTaskSample is the page size used for sample tasks.
const DefaultExistingTaskSample = 20

// ContextBuilder fetches the reference snapshot for a run.
//
// Thread Safety: Safe for concurrent use if the TaskStore is.
type ContextBuilder struct {
	store      TaskStore
	sampleSize int
	logger     *slog.Logger
}

// NewContextBuilder creates a ContextBuilder.
//
// Inputs:
//
//	store - Task store to read from.
//	sampleSize - per_page for the existing-task sample. <= 0 uses
//	  DefaultExistingTaskSample.
//	logger - nil uses slog.Default().
func NewContextBuilder(store TaskStore, sampleSize int, logger *slog.Logger) *ContextBuilder {
	if sampleSize <= 0 {
		sampleSize = DefaultExistingTaskSample
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{store: store, sampleSize: sampleSize, logger: logger}
}

// Build fetches projects, labels and a sample of existing tasks
// concurrently.
//
// Description:
//
//	Projects and labels are required; either failing fails the build. The
//	existing-task sample is optional: its failure is logged and the
//	snapshot carries an empty sample.
//
// Outputs:
//
//	*Snapshot - The reference data.
//	error - The first project or label fetch failure.
func (b *ContextBuilder) Build(ctx context.Context) (*Snapshot, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "intake.Prepare")
	defer span.End()

	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		projects, err := b.store.GetProjects(gctx)
		if err != nil {
			return fmt.Errorf("fetching projects: %w", err)
		}
		snap.Projects = make([]ReferenceProject, 0, len(projects))
		for _, p := range projects {
			snap.Projects = append(snap.Projects, ReferenceProject{ID: p.ID, Title: p.Title})
		}
		return nil
	})

	g.Go(func() error {
		labels, err := b.store.GetLabels(gctx)
		if err != nil {
			return fmt.Errorf("fetching labels: %w", err)
		}
		snap.Labels = make([]ReferenceLabel, 0, len(labels))
		for _, l := range labels {
			snap.Labels = append(snap.Labels, ReferenceLabel{ID: l.ID, Title: l.Title})
		}
		return nil
	})

	g.Go(func() error {
		tasks, err := b.store.GetTasks(gctx, 1, b.sampleSize)
		if err != nil {
			b.logger.Warn("Failed to fetch existing tasks, continuing without them",
				slog.String("error", err.Error()))
			return nil
		}
		snap.ExistingTasks = make([]ExistingTask, 0, len(tasks))
		for _, t := range tasks {
			snap.ExistingTasks = append(snap.ExistingTasks, ExistingTask{Title: t.Title, ProjectID: t.ProjectID})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("projects", len(snap.Projects)),
		attribute.Int("labels", len(snap.Labels)),
		attribute.Int("existing_tasks", len(snap.ExistingTasks)),
	)
	b.logger.Info("Fetched reference snapshot",
		slog.Int("projects", len(snap.Projects)),
		slog.Int("labels", len(snap.Labels)),
		slog.Int("existing_tasks", len(snap.ExistingTasks)))
	return snap, nil
}
