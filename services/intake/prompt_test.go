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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianIntake/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt_Sections(t *testing.T) {
	snap := &Snapshot{
		Projects:      []ReferenceProject{{ID: 1, Title: "Work"}, {ID: 2, Title: "Home"}},
		Labels:        []ReferenceLabel{{ID: 5, Title: "urgent"}},
		ExistingTasks: []ExistingTask{{Title: "Pay rent", ProjectID: 2}},
	}
	now := time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))

	prompt := BuildSystemPrompt(snap, now)

	assert.True(t, strings.HasPrefix(prompt, "You are a task extraction assistant."))
	assert.Contains(t, prompt, `"tasks": [`)
	assert.Contains(t, prompt, "5=DO NOW")
	assert.Contains(t, prompt, "- Today's date is: 2026-10-15\n")
	assert.Contains(t, prompt, "## Available Projects\n- id: 1, title: \"Work\"\n- id: 2, title: \"Home\"\n")
	assert.Contains(t, prompt, "## Available Labels\n- id: 5, title: \"urgent\"\n")
	assert.Contains(t, prompt, "## Sample Existing Tasks (for reference)\n- \"Pay rent\" (project_id: 2)\n")
	assert.NotContains(t, prompt, "(no labels exist yet)")
}

func TestBuildSystemPrompt_NoLabels(t *testing.T) {
	prompt := BuildSystemPrompt(&Snapshot{Projects: []ReferenceProject{{ID: 1, Title: "Work"}}}, time.Now())
	assert.Contains(t, prompt, "## Available Labels\n(no labels exist yet)\n")
}

func TestBuildSystemPrompt_CapsSampleTasks(t *testing.T) {
	snap := &Snapshot{}
	for i := 0; i < 20; i++ {
		snap.ExistingTasks = append(snap.ExistingTasks, ExistingTask{Title: fmt.Sprintf("task-%02d", i), ProjectID: 1})
	}

	prompt := BuildSystemPrompt(snap, time.Now())
	assert.Contains(t, prompt, "task-09")
	assert.NotContains(t, prompt, "task-10")
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(&Snapshot{}, "buy milk tomorrow", time.Now())
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "buy milk tomorrow", msgs[1].Content)
}
