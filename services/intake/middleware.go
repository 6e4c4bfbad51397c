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
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request correlation id.
	RequestIDHeader = "X-Request-ID"

	// APIKeyHeader carries the shared secret for authenticated routes.
	APIKeyHeader = "X-Api-Key"

	requestIDKey = "request_id"
)

// RequestID assigns every request an id, reusing X-Request-ID when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// getOrCreateRequestID returns the id set by RequestID, or a fresh one
// when the middleware is not installed.
func getOrCreateRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	return id
}

// RequireAPIKey rejects requests whose X-Api-Key does not match apiKey.
//
// Description:
//
//	Comparison is constant-time. An empty configured key rejects every
//	request. Rejections are 401 with no body.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		provided := c.GetHeader(APIKeyHeader)
		if len(expected) == 0 || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			slog.Warn("Rejected unauthenticated request",
				slog.String("request_id", getOrCreateRequestID(c)),
				slog.String("path", c.FullPath()))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
