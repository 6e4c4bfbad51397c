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

	"github.com/AleutianAI/AleutianIntake/services/vikunja"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Committer persists records one at a time.
//
// Description:
//
//	Each record is created, then labeled with a single bulk call. A failure
//	in either step is captured in that record's CommitResult and the loop
//	moves on. A created task is never rolled back when labeling fails.
//
// Thread Safety: Safe for concurrent use if the TaskStore is.
type Committer struct {
	store  TaskStore
	logger *slog.Logger
}

// NewCommitter creates a Committer. A nil logger uses slog.Default().
func NewCommitter(store TaskStore, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: store, logger: logger}
}

// Commit persists records sequentially.
//
// Description:
//
//	Returns one result per record in input order. When ctx is canceled,
//	the remaining records are not attempted and carry the context error.
//	Records committed before cancellation stay committed.
//
// Outputs:
//
//	[]CommitResult - len(results) == len(records).
func (c *Committer) Commit(ctx context.Context, records []Record) []CommitResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "intake.Commit",
		trace.WithAttributes(attribute.Int("record_count", len(records))),
	)
	defer span.End()

	results := make([]CommitResult, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			commitResultsTotal.WithLabelValues("create_failure").Inc()
			results = append(results, CommitResult{
				Title:     rec.Title,
				ProjectID: rec.ProjectID,
				Error:     fmt.Sprintf("not attempted: %v", err),
			})
			continue
		}
		results = append(results, c.commitOne(ctx, rec))
	}

	succeeded := Succeeded(results)
	span.SetAttributes(
		attribute.Int("succeeded", succeeded),
		attribute.Int("failed", len(results)-succeeded),
	)
	c.logger.Info("Commit completed",
		slog.Int("succeeded", succeeded),
		slog.Int("total", len(results)))
	return results
}

// commitOne runs Pending -> Created -> LabelsAttached for a single record.
func (c *Committer) commitOne(ctx context.Context, rec Record) CommitResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "intake.Commit.Record",
		trace.WithAttributes(
			attribute.Int64("project_id", rec.ProjectID),
			attribute.Int("label_count", len(rec.LabelIDs)),
		),
	)
	defer span.End()

	result := CommitResult{Title: rec.Title, ProjectID: rec.ProjectID}

	created, err := c.store.CreateTask(ctx, rec.ProjectID, toStoreTask(rec))
	if err != nil {
		commitResultsTotal.WithLabelValues("create_failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		c.logger.Error("Failed to create task",
			slog.String("title", rec.Title),
			slog.String("error", err.Error()))
		result.Error = err.Error()
		return result
	}

	taskID := created.ID
	result.TaskID = &taskID
	span.SetAttributes(attribute.Int64("task_id", taskID))
	c.logger.Info("Created task",
		slog.Int64("task_id", taskID),
		slog.String("title", rec.Title),
		slog.Int64("project_id", rec.ProjectID))

	if len(rec.LabelIDs) == 0 {
		commitResultsTotal.WithLabelValues("created").Inc()
		return result
	}

	if err := c.store.BulkAddLabels(ctx, taskID, rec.LabelIDs); err != nil {
		commitResultsTotal.WithLabelValues("label_failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "label attach failed")
		c.logger.Error("Failed to attach labels",
			slog.Int64("task_id", taskID),
			slog.String("error", err.Error()))
		result.TaskID = nil
		result.Error = fmt.Sprintf("task %d created but labels were not attached: %v", taskID, err)
		return result
	}

	result.LabelsAdded = len(rec.LabelIDs)
	commitResultsTotal.WithLabelValues("labels_attached").Inc()
	c.logger.Info("Attached labels",
		slog.Int64("task_id", taskID),
		slog.Int("label_count", result.LabelsAdded))
	return result
}

func toStoreTask(rec Record) vikunja.Task {
	task := vikunja.Task{
		Title:       rec.Title,
		Description: rec.Description,
		ProjectID:   rec.ProjectID,
		Priority:    rec.Priority,
	}
	if rec.DueDate != nil {
		task.DueDate = *rec.DueDate
	}
	return task
}

// Succeeded counts results without an error.
func Succeeded(results []CommitResult) int {
	n := 0
	for _, r := range results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}
