// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vikunja is a minimal REST client for the Vikunja task store.
package vikunja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianIntake/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// APIError reports a failed task store request.
//
// Description:
//
//	StatusCode is zero for transport failures (no HTTP response). Err is set
//	for transport and decode failures. Body is redacted and truncated before
//	it is stored.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vikunja: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vikunja: %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client talks to the Vikunja REST API with a bearer token.
//
// Description:
//
//	Every request waits on a token-bucket limiter before it is sent. A
//	limit of zero or less disables pacing.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// NewClient creates a Vikunja client.
//
// Inputs:
//   - baseURL: Vikunja root URL (e.g., "https://tasks.example.com").
//   - token: API token sent as "Authorization: Bearer <token>".
//   - ratePerSecond: Maximum requests per second. <= 0 means unlimited.
//   - timeout: HTTP client timeout. Defaults to 30s when zero.
//
// Outputs:
//   - *Client: The configured client.
func NewClient(baseURL, token string, ratePerSecond float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		limiter:    limiter,
	}
}

// GetProjects lists all projects visible to the token.
func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, "list_projects", http.MethodGet, "/api/v1/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetLabels lists all labels visible to the token.
func (c *Client) GetLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	if err := c.do(ctx, "list_labels", http.MethodGet, "/api/v1/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// GetTasks lists one page of existing tasks.
//
// Inputs:
//   - page: 1-based page number.
//   - perPage: Page size.
func (c *Client) GetTasks(ctx context.Context, page, perPage int) ([]Task, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var tasks []Task
	if err := c.do(ctx, "list_tasks", http.MethodGet, "/api/v1/tasks?"+q.Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task under a project and returns the stored task.
func (c *Client) CreateTask(ctx context.Context, projectID int64, task Task) (*Task, error) {
	path := fmt.Sprintf("/api/v1/projects/%d/tasks", projectID)
	var created Task
	if err := c.do(ctx, "create_task", http.MethodPut, path, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkAddLabels attaches a set of labels to a task in one request.
func (c *Client) BulkAddLabels(ctx context.Context, taskID int64, labelIDs []int64) error {
	body := LabelBulkRequest{Labels: make([]LabelID, 0, len(labelIDs))}
	for _, id := range labelIDs {
		body.Labels = append(body.Labels, LabelID{ID: id})
	}
	path := fmt.Sprintf("/api/v1/tasks/%d/labels/bulk", taskID)
	return c.do(ctx, "bulk_labels", http.MethodPost, path, body, nil)
}

// do performs one JSON request.
//
// Description:
//
//	Waits on the limiter, sends the request, rejects non-2xx responses and
//	decodes the body into out when out is non-nil. Records a span and
//	Prometheus metrics for every call.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "vikunja.Client."+op,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("store.op", op),
		),
	)
	start := time.Now()
	defer func() {
		recordStoreRequest(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("vikunja: %s: marshaling request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("vikunja: %s: creating HTTP request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		redacted := llm.Truncate(llm.SafeLogString(string(respBody)), 500)
		slog.Warn("Vikunja request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", redacted),
		)
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: redacted}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
