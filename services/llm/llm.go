// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides completion clients for the intake pipeline.
//
// Two backends are supported: an OpenAI-compatible chat completions client
// (Together.ai by default) and a local Ollama model driven through
// langchaingo. Both implement Completer.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Message roles accepted by the completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams controls a single completion request.
//
// Description:
//
//	Nil pointer fields mean "use the backend default". JSONMode asks the
//	provider for a structured-object-only reply (response_format json_object
//	for OpenAI-compatible APIs, format=json for Ollama).
type GenerationParams struct {
	Temperature   *float64
	MaxTokens     *int
	JSONMode      bool
	ModelOverride string
}

// Completer sends an ordered list of messages to an LLM and returns the
// raw completion text.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Completer interface {
	// Complete returns the text of the first completion choice.
	Complete(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Name returns the provider label used in logs and metrics.
	Name() string
}

// ProviderError reports a transport, status, or envelope failure from a
// completion provider.
//
// Description:
//
//	StatusCode is zero when the request never produced an HTTP response
//	(dial failure, timeout, cancelled context). Body is already redacted.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return e.Provider + ": request failed"
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// EmptyResponseError is returned when the provider answered successfully
// but the completion content was blank.
type EmptyResponseError struct {
	Provider     string
	Model        string
	MessageCount int
	Duration     time.Duration
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned an empty response (model=%s, messages=%d, duration=%s)",
		e.Provider, e.Model, e.MessageCount, e.Duration)
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
