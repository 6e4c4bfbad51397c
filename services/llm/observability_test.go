// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "empty response", err: &EmptyResponseError{Provider: "together"}, expected: "empty_response"},
		{name: "wrapped empty response", err: fmt.Errorf("ask: %w", &EmptyResponseError{}), expected: "empty_response"},
		{name: "401 status", err: &ProviderError{Provider: "together", StatusCode: 401}, expected: "auth"},
		{name: "403 status", err: &ProviderError{Provider: "together", StatusCode: 403}, expected: "auth"},
		{name: "429 status", err: &ProviderError{Provider: "together", StatusCode: 429}, expected: "rate_limit"},
		{name: "502 status", err: &ProviderError{Provider: "together", StatusCode: 502}, expected: "server"},
		{name: "context deadline", err: &ProviderError{Provider: "together", Err: errors.New("context deadline exceeded")}, expected: "timeout"},
		{name: "context canceled", err: errors.New("context canceled"), expected: "timeout"},
		{name: "invalid api key text", err: errors.New("invalid api key"), expected: "auth"},
		{name: "rate limit text", err: errors.New("rate limit reached"), expected: "rate_limit"},
		{name: "port number not confused with status code", err: errors.New("connection refused on port 5001"), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got != tt.expected {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRecordLLMMetrics(t *testing.T) {
	// promauto registers on the default registry; verify both paths don't panic.
	recordLLMMetrics("together", 500*time.Millisecond, nil)
	recordLLMMetrics("ollama", time.Second, nil)
	recordLLMMetrics("together", time.Second, &ProviderError{Provider: "together", StatusCode: 500})
	recordLLMMetrics("ollama", time.Second, &EmptyResponseError{})
}

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{name: "status", err: &ProviderError{Provider: "together", StatusCode: 500, Body: "boom"}, want: "together: API returned status 500: boom"},
		{name: "cause", err: &ProviderError{Provider: "ollama", Err: errors.New("dial tcp")}, want: "ollama: dial tcp"},
		{name: "bare", err: &ProviderError{Provider: "together"}, want: "together: request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordTokenUsage_FromChatResponse(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()
	otel.SetMeterProvider(mp)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}],` +
			`"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`))
	}))
	defer server.Close()

	client := newTestChatClient(server.URL)
	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, GenerationParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "intake.llm.tokens" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("intake.llm.tokens data = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				tokenType, _ := dp.Attributes.Value(attribute.Key("token_type"))
				got[tokenType.AsString()] += dp.Value
			}
		}
	}
	if got["prompt"] != 120 || got["completion"] != 30 {
		t.Errorf("token counts = %v, want prompt=120 completion=30", got)
	}
}
