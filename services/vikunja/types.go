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

// Project is a Vikunja project as returned by GET /api/v1/projects.
type Project struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Label is a Vikunja label as returned by GET /api/v1/labels.
type Label struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Task is a Vikunja task.
//
// Description:
//
//	Used both for listing (GET /api/v1/tasks) and for creation
//	(PUT /api/v1/projects/{id}/tasks). Optional fields are omitted from the
//	create payload when unset so the store applies its own defaults.
type Task struct {
	ID          int64   `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   int64   `json:"project_id,omitempty"`
	DueDate     string  `json:"due_date,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Labels      []Label `json:"labels,omitempty"`
}

// LabelBulkRequest is the body of POST /api/v1/tasks/{id}/labels/bulk.
type LabelBulkRequest struct {
	Labels []LabelID `json:"labels"`
}

// LabelID references a label by identifier.
type LabelID struct {
	ID int64 `json:"id"`
}
