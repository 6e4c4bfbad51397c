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
	"sync"

	"github.com/AleutianAI/AleutianIntake/services/llm"
	"github.com/AleutianAI/AleutianIntake/services/vikunja"
)

// MockTaskStore implements TaskStore for testing.
type MockTaskStore struct {
	mu sync.Mutex

	getProjectsFunc   func(ctx context.Context) ([]vikunja.Project, error)
	getLabelsFunc     func(ctx context.Context) ([]vikunja.Label, error)
	getTasksFunc      func(ctx context.Context, page, perPage int) ([]vikunja.Task, error)
	createTaskFunc    func(ctx context.Context, projectID int64, task vikunja.Task) (*vikunja.Task, error)
	bulkAddLabelsFunc func(ctx context.Context, taskID int64, labelIDs []int64) error

	created   []vikunja.Task
	labelCall map[int64][]int64
	nextID    int64
}

func (m *MockTaskStore) GetProjects(ctx context.Context) ([]vikunja.Project, error) {
	if m.getProjectsFunc != nil {
		return m.getProjectsFunc(ctx)
	}
	return []vikunja.Project{{ID: 1, Title: "Work"}}, nil
}

func (m *MockTaskStore) GetLabels(ctx context.Context) ([]vikunja.Label, error) {
	if m.getLabelsFunc != nil {
		return m.getLabelsFunc(ctx)
	}
	return []vikunja.Label{}, nil
}

func (m *MockTaskStore) GetTasks(ctx context.Context, page, perPage int) ([]vikunja.Task, error) {
	if m.getTasksFunc != nil {
		return m.getTasksFunc(ctx, page, perPage)
	}
	return []vikunja.Task{}, nil
}

func (m *MockTaskStore) CreateTask(ctx context.Context, projectID int64, task vikunja.Task) (*vikunja.Task, error) {
	if m.createTaskFunc != nil {
		return m.createTaskFunc(ctx, projectID, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = 100 + m.nextID
	m.created = append(m.created, task)
	return &task, nil
}

func (m *MockTaskStore) BulkAddLabels(ctx context.Context, taskID int64, labelIDs []int64) error {
	if m.bulkAddLabelsFunc != nil {
		return m.bulkAddLabelsFunc(ctx, taskID, labelIDs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labelCall == nil {
		m.labelCall = make(map[int64][]int64)
	}
	m.labelCall[taskID] = append([]int64(nil), labelIDs...)
	return nil
}

// MockCompleter implements llm.Completer for testing.
type MockCompleter struct {
	completeFunc func(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error)

	lastMessages []llm.Message
	lastParams   llm.GenerationParams
}

func (m *MockCompleter) Complete(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	m.lastMessages = messages
	m.lastParams = params
	if m.completeFunc != nil {
		return m.completeFunc(ctx, messages, params)
	}
	return `{"tasks":[{"title":"Mock task"}]}`, nil
}

func (m *MockCompleter) Name() string {
	return "mock"
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	runFunc func(ctx context.Context, freetext string) (*RunResult, error)
}

func (m *MockRunner) Run(ctx context.Context, freetext string) (*RunResult, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, freetext)
	}
	id := int64(1)
	return &RunResult{
		Results:   []CommitResult{{TaskID: &id, Title: "Mock", ProjectID: 1}},
		Succeeded: 1,
		Total:     1,
	}, nil
}

func strPtr(s string) *string { return &s }
func int64Ptr(i int64) *int64 { return &i }
func intPtr(i int) *int       { return &i }
