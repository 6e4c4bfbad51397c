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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Chat Completions Wire Types
// =============================================================================

const (
	// DefaultTogetherBaseURL is the Together.ai API root.
	DefaultTogetherBaseURL = "https://api.together.xyz/"

	// DefaultTogetherModel is used when no model is configured.
	DefaultTogetherModel = "meta-llama/Llama-3.3-70B-Instruct-Turbo"

	chatCompletionsPath = "v1/chat/completions"
)

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// ChatCompletionsClient implements Completer for OpenAI-compatible chat
// completion APIs using raw net/http.
//
// Description:
//
//	Targets Together.ai by default. Any provider exposing
//	POST {base}/v1/chat/completions with bearer auth works.
//
// Thread Safety: ChatCompletionsClient is safe for concurrent use.
type ChatCompletionsClient struct {
	httpClient *http.Client
	provider   string
	apiKey     string
	model      string
	endpoint   string
}

// NewChatCompletionsClient creates a client with explicit configuration.
//
// Inputs:
//   - provider: Label for logs and metrics (e.g., "together").
//   - apiKey: Bearer token for the provider.
//   - model: Model name. Defaults to DefaultTogetherModel when empty.
//   - baseURL: API root. Defaults to DefaultTogetherBaseURL when empty.
//   - timeout: HTTP client timeout. Defaults to 120s when zero.
//
// Outputs:
//   - *ChatCompletionsClient: The configured client.
func NewChatCompletionsClient(provider, apiKey, model, baseURL string, timeout time.Duration) *ChatCompletionsClient {
	if provider == "" {
		provider = "together"
	}
	if model == "" {
		model = DefaultTogetherModel
	}
	if baseURL == "" {
		baseURL = DefaultTogetherBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChatCompletionsClient{
		httpClient: &http.Client{Timeout: timeout},
		provider:   provider,
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + chatCompletionsPath,
	}
}

// Name implements Completer.
func (c *ChatCompletionsClient) Name() string {
	return c.provider
}

// Complete implements Completer using the chat completions API.
//
// Description:
//
//	Sends the messages with the configured model. Unknown roles are mapped
//	to "user". Returns the content of the first choice.
//
// Outputs:
//   - string: The completion text. Never blank on success.
//   - error: *ProviderError on transport, status, or envelope failure;
//     *EmptyResponseError when the content is blank.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ChatCompletionsClient) Complete(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := c.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.ChatCompletionsClient.Complete",
		trace.WithAttributes(
			attribute.String("provider", c.provider),
			attribute.String("model", model),
			attribute.Int("message_count", len(messages)),
			attribute.Bool("json_mode", params.JSONMode),
		),
	)
	defer span.End()

	start := time.Now()
	content, err := c.complete(ctx, model, messages, params)
	duration := time.Since(start)
	recordLLMMetrics(c.provider, duration, err)

	if err != nil {
		if emptyErr, ok := err.(*EmptyResponseError); ok {
			emptyErr.Duration = duration
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("response_len", len(content)))
	slog.Info("Received LLM response",
		slog.String("provider", c.provider),
		slog.String("model", model),
		slog.Int("length", len(content)),
		slog.Duration("duration", duration),
	)
	return content, nil
}

func (c *ChatCompletionsClient) complete(ctx context.Context, model string, messages []Message, params GenerationParams) (string, error) {
	wireMessages := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			slog.Warn("unknown message role, mapping to user",
				slog.String("provider", c.provider),
				slog.String("unknown_role", role),
			)
			role = RoleUser
		}
		wireMessages = append(wireMessages, chatMessage{Role: role, Content: msg.Content})
	}

	payload := chatRequest{
		Model:       model,
		Messages:    wireMessages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	if params.JSONMode {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: marshaling request: %w", c.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%s: creating HTTP request: %w", c.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	slog.Info("Sending request to LLM provider",
		slog.String("provider", c.provider),
		slog.String("model", model),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := SafeLogString(string(bodyBytes))
		slog.Error("LLM provider returned non-success status",
			slog.String("provider", c.provider),
			slog.Int("status", resp.StatusCode),
			slog.String("body", Truncate(body, 500)),
		)
		return "", &ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Body: body}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("parsing response JSON: %w", err)}
	}
	if apiResp.Error != nil {
		return "", &ProviderError{
			Provider: c.provider,
			Err:      fmt.Errorf("API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message)),
		}
	}
	if len(apiResp.Choices) == 0 {
		return "", &ProviderError{Provider: c.provider, Err: fmt.Errorf("returned no choices")}
	}

	if apiResp.Usage != nil {
		recordTokenUsage(ctx, c.provider, model, apiResp.Usage.PromptTokens, apiResp.Usage.CompletionTokens)
	}

	content := apiResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &EmptyResponseError{Provider: c.provider, Model: model, MessageCount: len(messages)}
	}
	return content, nil
}
