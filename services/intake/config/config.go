// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the intake service configuration.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed default_config.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds config files read from disk.
const MaxYAMLFileSize = 1 << 20

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Vikunja   VikunjaConfig   `yaml:"vikunja"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// APIKey is the shared secret expected in X-Api-Key. Required.
	APIKey string `yaml:"api_key" validate:"required"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// VikunjaConfig configures the task store client.
type VikunjaConfig struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	APIToken string `yaml:"api_token" validate:"required"`

	// RatePerSecond paces store requests. 0 disables pacing.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	// Provider is "together" or "ollama".
	Provider string `yaml:"provider" validate:"oneof=together ollama"`

	TogetherAPIKey  string `yaml:"together_api_key" validate:"required_if=Provider together"`
	TogetherModel   string `yaml:"together_model"`
	TogetherBaseURL string `yaml:"together_base_url" validate:"omitempty,url"`

	OllamaBaseURL string `yaml:"ollama_base_url" validate:"omitempty,url"`
	OllamaModel   string `yaml:"ollama_model"`

	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// PipelineConfig tunes the extraction pipeline.
type PipelineConfig struct {
	// ExistingTaskSample is the per_page of the existing-task fetch.
	ExistingTaskSample int `yaml:"existing_task_sample" validate:"min=1,max=100"`
}

// TelemetryConfig selects the trace and metric exporters.
type TelemetryConfig struct {
	// TraceExporter is "none", "stdout" or "otlp".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`

	// MetricsExporter is "none", "prometheus" or "stdout". Prometheus metrics
	// registered through promauto are served on /metrics regardless.
	MetricsExporter string `yaml:"metrics_exporter" validate:"oneof=none prometheus stdout"`

	ServiceName string `yaml:"service_name" validate:"required"`
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration.
//
// Description:
//
//	Layers, lowest precedence first: embedded defaults, the YAML file at
//	path (or INTAKE_CONFIG when path is empty), then environment variables.
//	The result is validated before it is returned.
//
// Inputs:
//
//	path - Optional YAML file. Empty means INTAKE_CONFIG or none.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if a layer fails to parse or validation fails.
func Load(path string) (*Config, error) {
	cfg, err := parse(defaultConfigYAML)
	if err != nil {
		return nil, fmt.Errorf("config: parsing defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv("INTAKE_CONFIG")
	}
	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	slog.Info("intake config loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("vikunja_base_url", cfg.Vikunja.BaseURL),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("trace_exporter", cfg.Telemetry.TraceExporter),
	)
	return cfg, nil
}

// Defaults returns the embedded defaults without overlays or validation.
func Defaults() (*Config, error) {
	return parse(defaultConfigYAML)
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return fmt.Errorf("config: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg from environment variables that are set.
func applyEnv(cfg *Config) {
	cfg.Server.Port = envInt("INTAKE_PORT", cfg.Server.Port)
	cfg.Server.APIKey = envString("INTAKE_API_KEY", cfg.Server.APIKey)

	cfg.Vikunja.BaseURL = envString("VIKUNJA_BASE_URL", cfg.Vikunja.BaseURL)
	cfg.Vikunja.APIToken = envString("VIKUNJA_API_TOKEN", cfg.Vikunja.APIToken)
	cfg.Vikunja.RatePerSecond = envFloat("VIKUNJA_RATE_PER_SEC", cfg.Vikunja.RatePerSecond)

	cfg.LLM.Provider = envString("INTAKE_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.TogetherAPIKey = envString("TOGETHER_API_KEY", cfg.LLM.TogetherAPIKey)
	cfg.LLM.TogetherModel = envString("TOGETHER_MODEL", cfg.LLM.TogetherModel)
	cfg.LLM.TogetherBaseURL = envString("TOGETHER_BASE_URL", cfg.LLM.TogetherBaseURL)
	cfg.LLM.OllamaBaseURL = envString("OLLAMA_BASE_URL", cfg.LLM.OllamaBaseURL)
	cfg.LLM.OllamaModel = envString("OLLAMA_MODEL", cfg.LLM.OllamaModel)

	cfg.Pipeline.ExistingTaskSample = envInt("INTAKE_EXISTING_TASK_SAMPLE", cfg.Pipeline.ExistingTaskSample)

	cfg.Telemetry.TraceExporter = envString("INTAKE_TRACE_EXPORTER", cfg.Telemetry.TraceExporter)
	cfg.Telemetry.MetricsExporter = envString("INTAKE_METRICS_EXPORTER", cfg.Telemetry.MetricsExporter)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation: %w", err)
	}
	return nil
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envFloat reads a float64 environment variable with a default value.
func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
