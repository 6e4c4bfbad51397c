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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianIntake/services/intake"
	"github.com/spf13/cobra"
)

// maxResponseBytes bounds how much of a server response is read.
const maxResponseBytes = 1 << 20

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [text...]",
		Short: "Extract tasks from free text and create them",
		Long: `Sends the text to POST /add-task. With no arguments, or a single "-",
the text is read from stdin.`,
		RunE: runAddCommand,
	}
}

func runAddCommand(cmd *cobra.Command, args []string) error {
	text, err := readFreetext(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no text given")
	}

	resp, err := sendAddTask(cmd.Context(), flagServer, flagAPIKey, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return writeJSON(out, resp)
	}

	st := newStyles(out)
	fmt.Fprintln(out, st.header.Render(resp.Message))
	for i, r := range resp.Tasks {
		if r.TaskID != nil {
			fmt.Fprintf(out, "%d. %s %s %s\n", i+1, st.ok.Render(fmt.Sprintf("[#%d]", *r.TaskID)), r.Title,
				st.dim.Render(fmt.Sprintf("(project %d, %d label(s))", r.ProjectID, r.LabelsAdded)))
		} else {
			fmt.Fprintf(out, "%d. %s %s: %s\n", i+1, st.fail.Render("[failed]"), r.Title, r.Error)
		}
	}
	return nil
}

func readFreetext(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(io.LimitReader(stdin, maxResponseBytes))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

// sendAddTask posts text to the server and decodes the success body. Non-2xx
// responses are returned as errors carrying the server's error message.
func sendAddTask(ctx context.Context, serverURL, apiKey, text string) (*intake.AddTaskResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	payload, err := json.Marshal(intake.AddTaskRequest{Freetext: text})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(serverURL, "/") + "/add-task"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(intake.APIKeyHeader, apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intake server unavailable at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp intake.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			if errResp.Details != "" {
				return nil, fmt.Errorf("server returned %d: %s (%s)", resp.StatusCode, errResp.Error, errResp.Details)
			}
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var out intake.AddTaskResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
