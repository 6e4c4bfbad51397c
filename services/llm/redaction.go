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
	"regexp"
)

// redactionPattern pairs a compiled regex with a replacement label.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact.
//
// IMPORTANT: Order matters. The Together key pattern must run before the
// generic bearer pattern so the label names the key class.
var redactionPatterns = []redactionPattern{
	// Together.ai key: tgp_v1_<base64url>
	{
		Pattern:     regexp.MustCompile(`tgp_v1_[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:together_key]",
	},
	// Vikunja API token: tk_<hex>
	{
		Pattern:     regexp.MustCompile(`tk_[a-f0-9]{20,}`),
		Replacement: "[REDACTED:vikunja_token]",
	},
	// OpenAI-compatible key: sk-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	{
		Pattern:     regexp.MustCompile(`(?i)x-api-key:\s*\S+`),
		Replacement: "X-Api-Key: [REDACTED]",
	},
}

// SafeLogString redacts known secret patterns from a string before logging.
//
// Description:
//
//	Provider error bodies sometimes echo request headers back. Every body
//	that reaches a log line or an error message goes through here first.
//
// Examples:
//
//	SafeLogString("invalid key tgp_v1_abcdefghijklmnopqrstuvwxyz")
//	// Returns: "invalid key [REDACTED:together_key]"
//
// Limitations:
//   - Pattern-based only; unknown key formats pass through unchanged.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
