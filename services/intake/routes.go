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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the intake endpoints.
//
// Description:
//
//	The router group should already carry RequestID and tracing
//	middleware. RequireAPIKey is applied to /add-task only.
//
// Inputs:
//
//	rg - Gin router group (typically the engine root)
//	handlers - The handlers instance
//	apiKey - Shared secret expected in X-Api-Key
//
// Endpoints:
//
//	GET  /health - Health check (unauthenticated)
//	GET  /metrics - Prometheus metrics (unauthenticated)
//	POST /add-task - Extract and create tasks from freetext
//
// Example:
//
//	pipeline := intake.NewPipeline(store, completer, intake.PipelineConfig{}, nil)
//	handlers := intake.NewHandlers(pipeline)
//	intake.RegisterRoutes(&router.RouterGroup, handlers, cfg.Server.APIKey)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, apiKey string) {
	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
	rg.POST("/add-task", RequireAPIKey(apiKey), handlers.HandleAddTask)
}
