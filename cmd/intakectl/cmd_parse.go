// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianIntake/services/intake"
	"github.com/AleutianAI/AleutianIntake/services/vikunja"
	"github.com/spf13/cobra"
)

var (
	parseProjects     []string
	parseLabels       []string
	parseVikunjaURL   string
	parseVikunjaToken string
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Repair and reconcile a saved model completion locally",
		Long: `Runs the completion repair stage on a saved model response and prints the
recovered tasks. When reference projects are available, from --project flags
or from a Vikunja instance given by --vikunja-url and --vikunja-token, the
tasks are also reconciled and printed as ready-to-commit records. Nothing is
written to Vikunja.`,
		Args: cobra.ExactArgs(1),
		RunE: runParseCommand,
	}
	cmd.Flags().StringArrayVar(&parseProjects, "project", nil, "Reference project as id=title (repeatable)")
	cmd.Flags().StringArrayVar(&parseLabels, "label", nil, "Reference label as id=title (repeatable)")
	cmd.Flags().StringVar(&parseVikunjaURL, "vikunja-url", os.Getenv("VIKUNJA_BASE_URL"), "Fetch reference data from this Vikunja instance")
	cmd.Flags().StringVar(&parseVikunjaToken, "vikunja-token", os.Getenv("VIKUNJA_API_TOKEN"), "Vikunja API token")
	return cmd
}

func runParseCommand(cmd *cobra.Command, args []string) error {
	raw, err := readCompletion(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	batch, err := intake.Normalize(raw)
	if err != nil {
		return err
	}

	projects, labels, err := referenceData(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		if wantJSON(cmd) {
			return writeJSON(out, batch)
		}
		fmt.Fprintln(out, newStyles(out).header.Render(fmt.Sprintf("Recovered %d candidate(s):", len(batch.Tasks))))
		for i, c := range batch.Tasks {
			fmt.Fprintf(out, "%d. %s\n", i+1, c.Title)
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	records := intake.NewReconciler(logger).Reconcile(batch, projects, labels)
	if wantJSON(cmd) {
		return writeJSON(out, records)
	}
	fmt.Fprintln(out, newStyles(out).header.Render(fmt.Sprintf("Reconciled %d of %d candidate(s):", len(records), len(batch.Tasks))))
	for i, r := range records {
		fmt.Fprintf(out, "%d. %s (project %d", i+1, r.Title, r.ProjectID)
		if len(r.LabelIDs) > 0 {
			fmt.Fprintf(out, ", labels %v", r.LabelIDs)
		}
		if r.DueDate != nil {
			fmt.Fprintf(out, ", due %s", *r.DueDate)
		}
		if r.Priority != nil {
			fmt.Fprintf(out, ", priority %d", *r.Priority)
		}
		fmt.Fprintln(out, ")")
	}
	return nil
}

func readCompletion(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, maxResponseBytes))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// referenceData resolves the reconciliation reference set. Flags win over a
// Vikunja fetch; with neither, both slices are empty.
func referenceData(ctx context.Context) ([]intake.ReferenceProject, []intake.ReferenceLabel, error) {
	if len(parseProjects) > 0 || len(parseLabels) > 0 {
		projects := make([]intake.ReferenceProject, 0, len(parseProjects))
		for _, p := range parseProjects {
			id, title, err := parseIDTitle(p)
			if err != nil {
				return nil, nil, fmt.Errorf("--project: %w", err)
			}
			projects = append(projects, intake.ReferenceProject{ID: id, Title: title})
		}
		labels := make([]intake.ReferenceLabel, 0, len(parseLabels))
		for _, l := range parseLabels {
			id, title, err := parseIDTitle(l)
			if err != nil {
				return nil, nil, fmt.Errorf("--label: %w", err)
			}
			labels = append(labels, intake.ReferenceLabel{ID: id, Title: title})
		}
		return projects, labels, nil
	}

	if parseVikunjaURL == "" {
		return nil, nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	client := vikunja.NewClient(parseVikunjaURL, parseVikunjaToken, 0, 0)
	snap, err := intake.NewContextBuilder(client, 1, slog.New(slog.DiscardHandler)).Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap.Projects, snap.Labels, nil
}

// parseIDTitle splits "12=Work" into 12 and "Work".
func parseIDTitle(s string) (int64, string, error) {
	idStr, title, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("%q is not id=title", s)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%q: bad id: %w", s, err)
	}
	return id, strings.TrimSpace(title), nil
}
