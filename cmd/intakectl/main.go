// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command intakectl is the command-line client for the intake server.
//
// Usage:
//
//	intakectl health
//	intakectl add "Call the plumber tomorrow, high priority"
//	echo "Renew passport" | intakectl add -
//	intakectl parse completion.txt --project 1=Work --label 4=urgent
//
// The server address and key come from --server/--api-key or the
// INTAKE_URL and INTAKE_API_KEY environment variables.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

var (
	flagServer  string
	flagAPIKey  string
	flagJSON    bool
	flagTimeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "intakectl",
		Short: "Turn free text into Vikunja tasks via the intake server",
		Long: `intakectl talks to an Aleutian Intake server. It can submit free text
for task extraction, check server health, and run the completion repair
and reconciliation stages locally against a saved model response.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOr("INTAKE_URL", defaultServerURL), "Intake server base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("INTAKE_API_KEY"), "Shared secret sent as X-Api-Key")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output (default when stdout is not a terminal)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 3*time.Minute, "Request timeout")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(healthCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
