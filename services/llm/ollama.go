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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultOllamaBaseURL is the local Ollama server address.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "llama3.1"
)

// OllamaCompleter implements Completer for a local Ollama model.
//
// Description:
//
//	Drives Ollama through langchaingo's llms.Model abstraction. The model
//	is created with format=json so replies are structured-object-only.
//
// Thread Safety: OllamaCompleter is safe for concurrent use.
type OllamaCompleter struct {
	model     llms.Model
	modelName string
}

// NewOllamaCompleter connects a langchaingo Ollama model.
//
// Inputs:
//   - baseURL: Ollama server URL. Defaults to DefaultOllamaBaseURL.
//   - model: Model name. Defaults to DefaultOllamaModel.
//
// Outputs:
//   - *OllamaCompleter: The configured completer.
//   - error: Non-nil if langchaingo rejects the options.
func NewOllamaCompleter(baseURL, model string) (*OllamaCompleter, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	m, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating model: %w", err)
	}
	slog.Info("Initializing Ollama completer",
		slog.String("url", baseURL),
		slog.String("model", model))
	return &OllamaCompleter{model: m, modelName: model}, nil
}

// NewOllamaCompleterWithModel wraps an existing llms.Model. Used by tests.
func NewOllamaCompleterWithModel(model llms.Model, modelName string) *OllamaCompleter {
	return &OllamaCompleter{model: model, modelName: modelName}
}

// Name implements Completer.
func (o *OllamaCompleter) Name() string {
	return "ollama"
}

// Complete implements Completer.
//
// Description:
//
//	Converts messages to langchaingo MessageContent parts. JSONMode is
//	already applied at construction time via format=json.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OllamaCompleter) Complete(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.OllamaCompleter.Complete",
		trace.WithAttributes(
			attribute.String("provider", "ollama"),
			attribute.String("model", o.modelName),
			attribute.Int("message_count", len(messages)),
		),
	)
	defer span.End()

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(toLangchainRole(msg.Role), msg.Content))
	}

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*params.Temperature))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.ModelOverride != "" {
		opts = append(opts, llms.WithModel(params.ModelOverride))
	}

	start := time.Now()
	resp, err := o.model.GenerateContent(ctx, content, opts...)
	duration := time.Since(start)

	if err != nil {
		provErr := &ProviderError{Provider: "ollama", Err: err}
		recordLLMMetrics("ollama", duration, provErr)
		span.RecordError(provErr)
		span.SetStatus(codes.Error, provErr.Error())
		return "", provErr
	}

	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		emptyErr := &EmptyResponseError{
			Provider:     "ollama",
			Model:        o.modelName,
			MessageCount: len(messages),
			Duration:     duration,
		}
		recordLLMMetrics("ollama", duration, emptyErr)
		span.RecordError(emptyErr)
		span.SetStatus(codes.Error, emptyErr.Error())
		return "", emptyErr
	}

	recordLLMMetrics("ollama", duration, nil)
	text := resp.Choices[0].Content
	span.SetAttributes(attribute.Int("response_len", len(text)))
	slog.Info("Received LLM response",
		slog.String("provider", "ollama"),
		slog.String("model", o.modelName),
		slog.Int("length", len(text)),
		slog.Duration("duration", duration),
	)
	return text, nil
}

func toLangchainRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
