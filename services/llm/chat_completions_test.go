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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestChatClient(serverURL string) *ChatCompletionsClient {
	return NewChatCompletionsClient("together", "test-key", "test-model", serverURL, 5*time.Second)
}

func writeChatResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := chatResponse{
		Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewChatCompletionsClient_Defaults(t *testing.T) {
	client := NewChatCompletionsClient("", "k", "", "", 0)
	if client.provider != "together" {
		t.Errorf("provider = %q, want %q", client.provider, "together")
	}
	if client.model != DefaultTogetherModel {
		t.Errorf("model = %q, want %q", client.model, DefaultTogetherModel)
	}
	if client.endpoint != "https://api.together.xyz/v1/chat/completions" {
		t.Errorf("endpoint = %q", client.endpoint)
	}
	if client.httpClient.Timeout != 120*time.Second {
		t.Errorf("timeout = %v, want 120s", client.httpClient.Timeout)
	}
}

func TestChatCompletionsClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want %q", req.Model, "test-model")
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v, want 0.2", req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v, want system then user", req.Messages)
		}

		writeChatResponse(t, w, `{"tasks":[{"title":"Buy milk"}]}`)
	}))
	defer server.Close()

	client := newTestChatClient(server.URL)
	messages := []Message{
		{Role: RoleSystem, Content: "extract tasks"},
		{Role: RoleUser, Content: "buy milk"},
	}

	result, err := client.Complete(context.Background(), messages, GenerationParams{
		Temperature: Float64Ptr(0.2),
		JSONMode:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"tasks":[{"title":"Buy milk"}]}` {
		t.Errorf("result = %q", result)
	}
}

func TestChatCompletionsClient_Complete_OmitsResponseFormatWithoutJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := raw["response_format"]; ok {
			t.Error("response_format should be omitted when JSONMode is false")
		}
		if _, ok := raw["temperature"]; ok {
			t.Error("temperature should be omitted when nil")
		}
		writeChatResponse(t, w, "ok")
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChatCompletionsClient_Complete_UnknownRoleMappedToUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		for _, msg := range req.Messages {
			if msg.Content == "unknown role content" && msg.Role != "user" {
				t.Errorf("unknown role should be mapped to 'user', got %q", msg.Role)
			}
		}
		writeChatResponse(t, w, "response")
	}))
	defer server.Close()

	messages := []Message{
		{Role: RoleUser, Content: "normal message"},
		{Role: "tool_result", Content: "unknown role content"},
	}
	if _, err := newTestChatClient(server.URL).Complete(context.Background(), messages, GenerationParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChatCompletionsClient_Complete_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid key tgp_v1_abcdefghijklmnopqrstuvwxyz", "type": "auth_error"}}`))
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error should be *ProviderError, got %T", err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", provErr.StatusCode)
	}
	if !strings.HasPrefix(err.Error(), "together:") {
		t.Errorf("error should include 'together:' prefix, got: %s", err.Error())
	}
	if strings.Contains(err.Error(), "tgp_v1_abcdefghij") {
		t.Errorf("error leaked provider key: %s", err.Error())
	}
}

func TestChatCompletionsClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{}})
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %q, want mention of no choices", err.Error())
	}
}

func TestChatCompletionsClient_Complete_MalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
}

func TestChatCompletionsClient_Complete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(t, w, "   \n ")
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{})
	var emptyErr *EmptyResponseError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected *EmptyResponseError, got %v", err)
	}
	if !strings.Contains(err.Error(), "returned an empty response") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestChatCompletionsClient_Complete_ModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "override-model" {
			t.Errorf("model = %q, want %q (should be overridden)", req.Model, "override-model")
		}
		writeChatResponse(t, w, "using override model")
	}))
	defer server.Close()

	result, err := newTestChatClient(server.URL).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{ModelOverride: "override-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "using override model" {
		t.Errorf("result = %q", result)
	}
}

func TestChatCompletionsClient_Complete_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestChatClient(url).Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "Hi"}}, GenerationParams{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if provErr.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for transport failure", provErr.StatusCode)
	}
}
