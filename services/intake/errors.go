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
	"errors"
	"fmt"
)

// maxDiagnosticChars bounds raw completion text carried in errors.
const maxDiagnosticChars = 500

var (
	// ErrEmptyFreetext is returned when the input is blank.
	ErrEmptyFreetext = errors.New("freetext is required")

	// ErrNoValidTasks is returned when reconciliation leaves no records.
	ErrNoValidTasks = errors.New("no valid tasks could be extracted from the input")
)

// UnparsableResponseError means no recovery strategy produced a usable batch.
//
// Raw holds at most maxDiagnosticChars runes of the completion text.
type UnparsableResponseError struct {
	Message string
	Raw     string
}

func (e *UnparsableResponseError) Error() string {
	if e.Raw == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Raw)
}

// ProviderTransportError wraps a completion provider or task store failure.
//
// Service is "llm" or "store".
type ProviderTransportError struct {
	Service string
	Err     error
}

func (e *ProviderTransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ProviderTransportError) Unwrap() error {
	return e.Err
}
