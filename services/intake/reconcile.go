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
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
)

// Reconciler maps candidates onto the identifiers in a Snapshot.
//
// Description:
//
//	Applies two fixed rules. A missing or unknown project falls back to the
//	first project in the snapshot. Unknown labels are dropped one by one
//	without rejecting the candidate. A candidate is dropped only when the
//	snapshot has no projects at all, or when its title is blank.
//
// Thread Safety: Safe for concurrent use.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a Reconciler. A nil logger uses slog.Default().
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile converts the batch into persistence-ready records.
//
// Inputs:
//
//	batch - Normalized candidates. A nil batch yields no records.
//	projects - Known projects in store order; the first is the default.
//	labels - Known labels.
//
// Outputs:
//
//	[]Record - One record per surviving candidate, in input order. Never nil.
func (r *Reconciler) Reconcile(batch *Batch, projects []ReferenceProject, labels []ReferenceLabel) []Record {
	records := make([]Record, 0)
	if batch == nil {
		return records
	}

	validProjects := make(map[int64]struct{}, len(projects))
	for _, p := range projects {
		validProjects[p.ID] = struct{}{}
	}
	validLabels := make(map[int64]struct{}, len(labels))
	for _, l := range labels {
		validLabels[l.ID] = struct{}{}
	}

	var defaultProject *int64
	if len(projects) > 0 {
		id := projects[0].ID
		defaultProject = &id
	}

	for _, c := range batch.Tasks {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			reconcileDroppedTotal.WithLabelValues("blank_title").Inc()
			r.logger.Warn("Dropping candidate with blank title")
			continue
		}

		projectID := c.ProjectID
		if projectID != nil {
			if _, ok := validProjects[*projectID]; !ok {
				reconcileDroppedTotal.WithLabelValues("project_downgrade").Inc()
				r.logger.Warn("Unknown project_id, falling back to default",
					slog.Int64("project_id", *projectID),
					slog.String("title", title))
				projectID = defaultProject
			}
		} else {
			projectID = defaultProject
		}
		if projectID == nil {
			reconcileDroppedTotal.WithLabelValues("no_project").Inc()
			r.logger.Error("No valid project for candidate, skipping",
				slog.String("title", title))
			continue
		}

		labelIDs, dropped := filterLabels(c.LabelIDs, validLabels)
		if len(dropped) > 0 {
			reconcileDroppedTotal.WithLabelValues("unknown_label").Add(float64(len(dropped)))
			r.logger.Warn("Dropped unknown label_ids",
				slog.Any("label_ids", dropped),
				slog.String("title", title))
		}

		if c.DueDate != nil && !strfmt.IsDateTime(*c.DueDate) {
			r.logger.Warn("due_date is not an RFC 3339 date-time, passing through",
				slog.String("due_date", *c.DueDate),
				slog.String("title", title))
		}

		var description string
		if c.Description != nil {
			description = strings.TrimSpace(*c.Description)
		}

		records = append(records, Record{
			Title:       title,
			Description: description,
			ProjectID:   *projectID,
			DueDate:     c.DueDate,
			Priority:    c.Priority,
			LabelIDs:    labelIDs,
		})
	}

	r.logger.Info("Reconciled candidates",
		slog.Int("candidates", len(batch.Tasks)),
		slog.Int("records", len(records)))
	return records
}

// filterLabels keeps the first occurrence of each known id, in input order.
func filterLabels(ids []int64, valid map[int64]struct{}) (kept, dropped []int64) {
	kept = make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := valid[id]; !ok {
			dropped = append(dropped, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	return kept, dropped
}

