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
	"testing"

	"github.com/AleutianAI/AleutianIntake/services/vikunja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestContextBuilder_Build(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &MockTaskStore{
		getProjectsFunc: func(ctx context.Context) ([]vikunja.Project, error) {
			return []vikunja.Project{{ID: 3, Title: "Inbox"}}, nil
		},
		getLabelsFunc: func(ctx context.Context) ([]vikunja.Label, error) {
			return []vikunja.Label{{ID: 9, Title: "home"}}, nil
		},
		getTasksFunc: func(ctx context.Context, page, perPage int) ([]vikunja.Task, error) {
			assert.Equal(t, 1, page)
			assert.Equal(t, DefaultExistingTaskSample, perPage)
			return []vikunja.Task{{ID: 4, Title: "Old", ProjectID: 3}}, nil
		},
	}

	snap, err := NewContextBuilder(store, 0, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ReferenceProject{{ID: 3, Title: "Inbox"}}, snap.Projects)
	assert.Equal(t, []ReferenceLabel{{ID: 9, Title: "home"}}, snap.Labels)
	assert.Equal(t, []ExistingTask{{Title: "Old", ProjectID: 3}}, snap.ExistingTasks)
}

func TestContextBuilder_TaskSampleFailureIsTolerated(t *testing.T) {
	store := &MockTaskStore{
		getTasksFunc: func(ctx context.Context, page, perPage int) ([]vikunja.Task, error) {
			return nil, errors.New("tasks endpoint down")
		},
	}

	snap, err := NewContextBuilder(store, 5, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Projects, 1)
	assert.Empty(t, snap.ExistingTasks)
}

func TestContextBuilder_EssentialFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name  string
		store *MockTaskStore
		want  string
	}{
		{
			name: "projects",
			store: &MockTaskStore{getProjectsFunc: func(ctx context.Context) ([]vikunja.Project, error) {
				return nil, errors.New("projects down")
			}},
			want: "fetching projects: projects down",
		},
		{
			name: "labels",
			store: &MockTaskStore{getLabelsFunc: func(ctx context.Context) ([]vikunja.Label, error) {
				return nil, errors.New("labels down")
			}},
			want: "fetching labels: labels down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := NewContextBuilder(tt.store, 0, nil).Build(context.Background())
			assert.Nil(t, snap)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}
