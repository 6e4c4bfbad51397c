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

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "tk_test", 0, 5*time.Second)
}

func TestClient_GetProjects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/projects", r.URL.Path)
		assert.Equal(t, "Bearer tk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"Work","hex_color":"ff0000"},{"id":2,"title":"Home"}]`))
	})

	projects, err := client.GetProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Project{{ID: 1, Title: "Work"}, {ID: 2, Title: "Home"}}, projects)
}

func TestClient_GetLabels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/labels", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":7,"title":"urgent"}]`))
	})

	labels, err := client.GetLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Label{{ID: 7, Title: "urgent"}}, labels)
}

func TestClient_GetTasks_Pagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[{"id":3,"title":"Existing","project_id":1}]`))
	})

	tasks, err := client.GetTasks(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), tasks[0].ProjectID)
}

func TestClient_CreateTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/projects/4/tasks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Call Bob", got["title"])
		assert.Equal(t, float64(4), got["project_id"])
		assert.NotContains(t, got, "description")
		assert.NotContains(t, got, "priority")
		assert.NotContains(t, got, "id")

		_, _ = w.Write([]byte(`{"id":42,"title":"Call Bob","project_id":4}`))
	})

	created, err := client.CreateTask(context.Background(), 4, Task{Title: "Call Bob", ProjectID: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
}

func TestClient_BulkAddLabels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tasks/42/labels/bulk", r.URL.Path)

		var got LabelBulkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, []LabelID{{ID: 1}, {ID: 3}}, got.Labels)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"labels":[{"id":1},{"id":3}]}`))
	})

	require.NoError(t, client.BulkAddLabels(context.Background(), 42, []int64{1, 3}))
}

func TestClient_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Forbidden","token":"tk_0123456789abcdef0123456789"}`))
	})

	_, err := client.GetProjects(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "list_projects", apiErr.Op)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.NotContains(t, apiErr.Body, "tk_0123456789abcdef")
	assert.True(t, strings.HasPrefix(err.Error(), "vikunja: list_projects returned status 403"))
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "tk_test", 0, time.Second)
	_, err := client.GetLabels(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "vikunja: list_labels failed")
}

func TestClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.GetProjects(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "decoding response")
}

func TestClient_CanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetProjects(ctx)
	require.Error(t, err)
}

func TestNewClient_RateLimiter(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		wantBurst int
	}{
		{name: "unlimited", rate: 0, wantBurst: 0},
		{name: "fractional", rate: 0.5, wantBurst: 1},
		{name: "whole", rate: 5, wantBurst: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("http://localhost", "t", tt.rate, 0)
			assert.Equal(t, tt.wantBurst, c.limiter.Burst())
			assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
		})
	}
}
