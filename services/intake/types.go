// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intake turns free-form text into tasks in a Vikunja store.
//
// A run flows strictly forward through five stages:
//
//	ContextBuilder -> llm.Completer -> Normalize -> Reconciler -> Committer
//
// The Pipeline type wires them together and the Handlers type exposes the
// pipeline over HTTP.
package intake

import (
	"context"

	"github.com/AleutianAI/AleutianIntake/services/vikunja"
)

// =============================================================================
// Reference Snapshot
// =============================================================================

// ReferenceProject is a project known to the store at the start of a run.
type ReferenceProject struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ReferenceLabel is a label known to the store at the start of a run.
type ReferenceLabel struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ExistingTask is a sampled task shown to the model as a style reference.
type ExistingTask struct {
	Title     string `json:"title"`
	ProjectID int64  `json:"project_id"`
}

// Snapshot is the reference data for one run. Immutable once built.
type Snapshot struct {
	Projects      []ReferenceProject
	Labels        []ReferenceLabel
	ExistingTasks []ExistingTask
}

// =============================================================================
// Extraction
// =============================================================================

// Candidate is one unvalidated task parsed from a completion.
//
// Description:
//
//	Identifiers may reference projects or labels that do not exist. JSON
//	property names are matched case-insensitively by encoding/json.
type Candidate struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ProjectID   *int64  `json:"project_id,omitempty"`
	LabelIDs    []int64 `json:"label_ids,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
}

// Batch is a fully parsed completion.
type Batch struct {
	Tasks []Candidate `json:"tasks"`
}

// =============================================================================
// Persistence
// =============================================================================

// Record is a reconciled candidate that is ready to commit.
//
// Description:
//
//	ProjectID is always a member of the snapshot's projects and every entry
//	of LabelIDs is a member of the snapshot's labels.
type Record struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   int64   `json:"project_id"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	LabelIDs    []int64 `json:"label_ids,omitempty"`
}

// CommitResult is the outcome of committing one Record.
//
// Exactly one of TaskID or Error is set.
type CommitResult struct {
	TaskID      *int64 `json:"taskId,omitempty"`
	Title       string `json:"title"`
	ProjectID   int64  `json:"projectId"`
	LabelsAdded int    `json:"labelsAdded"`
	Error       string `json:"error,omitempty"`
}

// Succeeded reports whether the task was created and, if labels were
// requested, attached.
func (r CommitResult) Succeeded() bool {
	return r.Error == ""
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	Results   []CommitResult `json:"tasks"`
	Succeeded int            `json:"succeeded"`
	Total     int            `json:"total"`
}

// =============================================================================
// Collaborators
// =============================================================================

// TaskStore is the subset of the Vikunja API the pipeline consumes.
//
// *vikunja.Client satisfies this interface.
type TaskStore interface {
	GetProjects(ctx context.Context) ([]vikunja.Project, error)
	GetLabels(ctx context.Context) ([]vikunja.Label, error)
	GetTasks(ctx context.Context, page, perPage int) ([]vikunja.Task, error)
	CreateTask(ctx context.Context, projectID int64, task vikunja.Task) (*vikunja.Task, error)
	BulkAddLabels(ctx context.Context, taskID int64, labelIDs []int64) error
}

// Runner executes the pipeline for one freetext input.
//
// *Pipeline satisfies this interface. Handlers depend on Runner so tests
// can substitute a fake.
type Runner interface {
	Run(ctx context.Context, freetext string) (*RunResult, error)
}
