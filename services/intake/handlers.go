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
	"log/slog"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianIntake/services/llm"
	"github.com/AleutianAI/AleutianIntake/services/telemetry"
	"github.com/gin-gonic/gin"
)

// AddTaskRequest is the body of POST /add-task.
type AddTaskRequest struct {
	Freetext string `json:"freetext"`
}

// AddTaskResponse is the 200 body of POST /add-task.
type AddTaskResponse struct {
	Message string         `json:"message"`
	Tasks   []CommitResult `json:"tasks"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Handlers serves the intake HTTP endpoints.
type Handlers struct {
	runner Runner
}

// NewHandlers creates Handlers around a Runner.
func NewHandlers(runner Runner) *Handlers {
	return &Handlers{runner: runner}
}

// HandleHealth handles GET /health.
//
// Response:
//
//	200 OK: "Healthy" (text/plain)
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.String(http.StatusOK, "Healthy")
}

// HandleAddTask handles POST /add-task.
//
// Description:
//
//	Runs the pipeline for the request's freetext and reports one result per
//	committed record. Individual record failures do not change the status
//	code; they appear in the per-task "error" field.
//
// Request Body:
//
//	AddTaskRequest
//
// Response:
//
//	200 OK: AddTaskResponse
//	400 Bad Request: Missing freetext, unparsable completion, or no tasks
//	401 Unauthorized: Missing or wrong X-Api-Key (see RequireAPIKey)
//	502 Bad Gateway: Completion provider or task store failure
//	500 Internal Server Error: Anything else
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleAddTask(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(),
		slog.With("request_id", requestID, "handler", "HandleAddTask"))

	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if strings.TrimSpace(req.Freetext) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Freetext is required",
			Code:  "MISSING_FREETEXT",
		})
		return
	}

	logger.Info("Processing add-task request", slog.Int("freetext_len", len(req.Freetext)))

	result, err := h.runner.Run(c.Request.Context(), req.Freetext)
	if err != nil {
		status, body := errorToResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Add-task request failed",
				slog.Int("status", status),
				slog.String("error", llm.SafeLogString(err.Error())))
		} else {
			logger.Warn("Add-task request rejected",
				slog.Int("status", status),
				slog.String("error", llm.SafeLogString(err.Error())))
		}
		c.JSON(status, body)
		return
	}

	logger.Info("Add-task request completed",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Total-result.Succeeded))

	c.JSON(http.StatusOK, AddTaskResponse{
		Message: fmt.Sprintf("Created %d task(s)", result.Succeeded),
		Tasks:   result.Results,
	})
}

// errorToResponse maps a pipeline error to a status code and body.
func errorToResponse(err error) (int, ErrorResponse) {
	var transport *ProviderTransportError
	var unparsable *UnparsableResponseError
	var empty *llm.EmptyResponseError

	switch {
	case errors.Is(err, ErrEmptyFreetext):
		return http.StatusBadRequest, ErrorResponse{Error: "Freetext is required", Code: "MISSING_FREETEXT"}
	case errors.Is(err, ErrNoValidTasks):
		return http.StatusBadRequest, ErrorResponse{
			Error: "No valid tasks could be extracted from the input",
			Code:  "NO_VALID_TASKS",
		}
	case errors.As(err, &unparsable):
		return http.StatusBadRequest, ErrorResponse{Error: unparsable.Error(), Code: "UNPARSABLE_RESPONSE"}
	case errors.As(err, &empty):
		return http.StatusBadRequest, ErrorResponse{Error: empty.Error(), Code: "EMPTY_RESPONSE"}
	case errors.As(err, &transport):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "External service error",
			Code:    "EXTERNAL_SERVICE_ERROR",
			Details: llm.SafeLogString(transport.Err.Error()),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "INTERNAL_ERROR"}
	}
}
