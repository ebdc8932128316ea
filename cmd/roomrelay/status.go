// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/holomush/roomrelay/internal/config"
	"github.com/holomush/roomrelay/internal/control"
)

// ProcessStatus holds the health of a relay process.
type ProcessStatus struct {
	Addr    string `json:"addr"`
	Running bool   `json:"running"`
	Health  string `json:"health,omitempty"`
	Error   string `json:"error,omitempty"`
}

type statusConfig struct {
	addr       string
	jsonOutput bool
	attempts   uint64
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running relay",
		Long:  `Query the control health service of a running relay and report whether it is serving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", config.Default().Control.Addr, "control address of the relay")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().Uint64Var(&cfg.attempts, "attempts", 3, "connection attempts before reporting the relay down")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "overall time limit")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, cfg *statusConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	status := queryStatus(ctx, cfg.addr, cfg.attempts)

	if cfg.jsonOutput {
		out, err := formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(out)
		return nil
	}
	cmd.Print(formatStatusTable(status))
	return nil
}

func queryStatus(ctx context.Context, addr string, attempts uint64) ProcessStatus {
	status := ProcessStatus{Addr: addr}

	serving, err := control.CheckHealth(ctx, addr, control.CheckOptions{
		Attempts: attempts,
		Backoff:  200 * time.Millisecond,
	})
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Running = true
	status.Health = healthName(serving)
	return status
}

func healthName(s healthpb.HealthCheckResponse_ServingStatus) string {
	return strings.ToLower(strings.ReplaceAll(s.String(), "_", "-"))
}

func formatStatusTable(status ProcessStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDR\tSTATUS\tHEALTH")
	_, _ = fmt.Fprintln(w, "----\t------\t------")
	if status.Running {
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\n", status.Addr, status.Health)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t%s\n", status.Addr, reason)
	}

	_ = w.Flush()
	return sb.String()
}

func formatStatusJSON(status ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}
