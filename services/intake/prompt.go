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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianIntake/services/llm"
)

// maxPromptSampleTasks caps the existing tasks rendered into the prompt.
const maxPromptSampleTasks = 10

const systemPromptHeader = `You are a task extraction assistant. Given free text from a user, extract one or more actionable tasks.

Output ONLY valid JSON matching this exact schema (no markdown, no explanation):
{
  "tasks": [
    {
      "title": "string (required, concise task title)",
      "description": "string or null (optional, extra details)",
      "project_id": number or null (optional, must be an id from the projects list below),
      "label_ids": [number] or null (optional, must be ids from the labels list below),
      "due_date": "ISO 8601 datetime string" or null (optional, e.g. "2026-03-01T00:00:00Z"),
      "priority": number or null (optional, 0=unset, 1=low, 2=medium, 3=high, 4=urgent, 5=DO NOW)
    }
  ]
}

Rules:
- Extract ALL tasks mentioned in the text.
- If the user mentions a project by name, match it to the closest project_id from the list.
- If the user mentions labels/tags, match them to label_ids from the list.
- If you cannot confidently match a project or label, omit that field (set to null).
- For relative dates like "tomorrow", "next Monday", calculate from today's date.
`

// BuildSystemPrompt renders the extraction instructions for a snapshot.
//
// Description:
//
//	The prompt is the fixed schema and rules block, today's UTC date, and
//	three context sections: available projects, available labels, and up
//	to ten sample existing tasks.
//
// Inputs:
//
//	snap - Reference data for the run.
//	now - Clock reading; only the UTC date is used.
func BuildSystemPrompt(snap *Snapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	fmt.Fprintf(&b, "- Today's date is: %s\n\n", now.UTC().Format("2006-01-02"))

	b.WriteString("## Available Projects\n")
	for _, p := range snap.Projects {
		fmt.Fprintf(&b, "- id: %d, title: %q\n", p.ID, p.Title)
	}

	b.WriteString("\n## Available Labels\n")
	if len(snap.Labels) == 0 {
		b.WriteString("(no labels exist yet)\n")
	}
	for _, l := range snap.Labels {
		fmt.Fprintf(&b, "- id: %d, title: %q\n", l.ID, l.Title)
	}

	b.WriteString("\n## Sample Existing Tasks (for reference)\n")
	for i, t := range snap.ExistingTasks {
		if i >= maxPromptSampleTasks {
			break
		}
		fmt.Fprintf(&b, "- %q (project_id: %d)\n", t.Title, t.ProjectID)
	}
	return b.String()
}

// BuildMessages returns the system prompt followed by the user's text.
func BuildMessages(snap *Snapshot, freetext string, now time.Time) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: BuildSystemPrompt(snap, now)},
		{Role: llm.RoleUser, Content: freetext},
	}
}
