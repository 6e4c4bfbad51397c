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
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianIntake/services/llm"
)

// fencePattern captures the interior of the first ``` or ```json block.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// recoveryStrategy extracts a candidate JSON document from raw completion
// text. ok is false when the strategy does not apply to the input.
type recoveryStrategy struct {
	name    string
	extract func(raw string) (doc string, ok bool)
}

// recoveryStrategies are tried in order; the first accepted parse wins.
var recoveryStrategies = []recoveryStrategy{
	{name: "direct", extract: extractDirect},
	{name: "fenced", extract: extractFenced},
	{name: "braces", extract: extractBraces},
}

func extractDirect(raw string) (string, bool) {
	return strings.TrimSpace(raw), true
}

func extractFenced(raw string) (string, bool) {
	m := fencePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func extractBraces(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// parseBatch decodes doc and reports whether it holds a non-empty task list.
func parseBatch(doc string) (*Batch, bool) {
	var batch Batch
	if err := json.Unmarshal([]byte(doc), &batch); err != nil {
		return nil, false
	}
	if len(batch.Tasks) == 0 {
		return nil, false
	}
	return &batch, true
}

// Normalize recovers a validated Batch from raw completion text.
//
// Description:
//
//	Tries direct parse, then the first fenced code block, then the span
//	from the first '{' to the last '}'. The first strategy that decodes a
//	non-empty task list is validated: candidates with blank titles are
//	removed, and the batch is rejected if none remain. Validation failure
//	is final; later strategies are not tried.
//
// Inputs:
//
//	raw - The completion text.
//
// Outputs:
//
//	*Batch - At least one candidate, each with a non-blank title.
//	error - *UnparsableResponseError when no usable batch exists.
//
// Thread Safety: Safe for concurrent use.
func Normalize(raw string) (*Batch, error) {
	for _, s := range recoveryStrategies {
		doc, ok := s.extract(raw)
		if !ok {
			normalizeStrategyTotal.WithLabelValues(s.name, "skipped").Inc()
			continue
		}
		batch, ok := parseBatch(doc)
		if !ok {
			normalizeStrategyTotal.WithLabelValues(s.name, "rejected").Inc()
			slog.Warn("Completion recovery strategy failed",
				slog.String("strategy", s.name))
			continue
		}
		normalizeStrategyTotal.WithLabelValues(s.name, "accepted").Inc()
		return validateBatch(batch, s.name)
	}

	return nil, &UnparsableResponseError{
		Message: "could not parse completion into tasks",
		Raw:     llm.Truncate(raw, maxDiagnosticChars),
	}
}

func validateBatch(batch *Batch, strategy string) (*Batch, error) {
	kept := make([]Candidate, 0, len(batch.Tasks))
	for _, c := range batch.Tasks {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil, &UnparsableResponseError{Message: "no candidate retained a valid title"}
	}

	slog.Info("Normalized completion",
		slog.String("strategy", strategy),
		slog.Int("candidates", len(kept)),
		slog.Int("discarded", len(batch.Tasks)-len(kept)),
	)
	return &Batch{Tasks: kept}, nil
}
