// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command intake starts the Aleutian Intake API server.
//
// Aleutian Intake turns free text into Vikunja tasks:
//   - Fetches projects, labels and a sample of existing tasks
//   - Asks an LLM to extract structured tasks
//   - Repairs and validates the completion
//   - Creates each task and attaches its labels
//
// Usage:
//
//	go run ./cmd/intake
//	go run ./cmd/intake -port 9090 -config ./intake.yaml
//
// With Together.ai (default provider):
//
//	INTAKE_API_KEY=secret VIKUNJA_BASE_URL=https://tasks.example.com \
//	  VIKUNJA_API_TOKEN=tk_... TOGETHER_API_KEY=... go run ./cmd/intake
//
// With a local Ollama:
//
//	INTAKE_LLM_PROVIDER=ollama OLLAMA_MODEL=llama3.1 ... go run ./cmd/intake
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/health
//
//	# Extract and create tasks
//	curl -X POST http://localhost:8080/add-task \
//	  -H "Content-Type: application/json" \
//	  -H "X-Api-Key: secret" \
//	  -d '{"freetext": "Call the plumber tomorrow, high priority"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/AleutianIntake/services/intake"
	"github.com/AleutianAI/AleutianIntake/services/intake/config"
	"github.com/AleutianAI/AleutianIntake/services/llm"
	"github.com/AleutianAI/AleutianIntake/services/telemetry"
	"github.com/AleutianAI/AleutianIntake/services/vikunja"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (overrides INTAKE_CONFIG)")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.TraceExporter, cfg.Telemetry.ServiceName, nil)
	if err != nil {
		slog.Error("Failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownMetrics, err := telemetry.SetupMetrics(cfg.Telemetry.MetricsExporter, cfg.Telemetry.ServiceName, nil, nil)
	if err != nil {
		slog.Error("Failed to set up metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	completer, err := buildCompleter(cfg.LLM)
	if err != nil {
		slog.Error("Failed to create completion provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store := vikunja.NewClient(cfg.Vikunja.BaseURL, cfg.Vikunja.APIToken, cfg.Vikunja.RatePerSecond, cfg.Vikunja.Timeout)

	router := newRouter(cfg, store, completer, *debug)

	printBanner(cfg.Server.Port, completer.Name())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting Aleutian Intake server", slog.String("address", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down Aleutian Intake server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown did not complete", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Failed to flush traces", slog.String("error", err.Error()))
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("Failed to flush metrics", slog.String("error", err.Error()))
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// buildCompleter constructs the configured completion provider.
func buildCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "together":
		return llm.NewChatCompletionsClient("together", cfg.TogetherAPIKey, cfg.TogetherModel, cfg.TogetherBaseURL, cfg.Timeout), nil
	case "ollama":
		return llm.NewOllamaCompleter(cfg.OllamaBaseURL, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// newRouter wires the pipeline into a gin engine with the standard middleware.
func newRouter(cfg *config.Config, store intake.TaskStore, completer llm.Completer, debug bool) *gin.Engine {
	temperature := cfg.LLM.Temperature
	pipeline := intake.NewPipeline(store, completer, intake.PipelineConfig{
		Temperature:        &temperature,
		ExistingTaskSample: cfg.Pipeline.ExistingTaskSample,
	}, slog.Default())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(intake.RequestID())
	if debug {
		router.Use(gin.Logger())
	}

	intake.RegisterRoutes(&router.RouterGroup, intake.NewHandlers(pipeline), cfg.Server.APIKey)
	return router
}

// printBanner prints startup information.
func printBanner(port int, provider string) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      ALEUTIAN INTAKE SERVER                       ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Free text in, Vikunja tasks out.                                 ║
║  Provider: %-54s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  # Health check                                                   ║
║  curl http://localhost:%d/health
║                                                                   ║
║  # Create tasks                                                   ║
║  curl -X POST http://localhost:%d/add-task \
║    -H "X-Api-Key: $INTAKE_API_KEY" \
║    -d '{"freetext": "Renew passport before June"}'
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, provider, port, port)
}
