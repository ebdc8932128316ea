// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/roomrelay/internal/config"
	"github.com/holomush/roomrelay/internal/xdg"
)

// NewRootCmd creates the root command for the roomrelay CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roomrelay",
		Short: "roomrelay - real-time chat room relay",
		Long: `roomrelay keeps WebSocket connections for chat rooms, relays typing
indicators between room members and pushes new-message notifications
from the persistence layer to every connected member of a room.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: $XDG_CONFIG_HOME/roomrelay/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig resolves the config file and loads configuration from it and
// the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	return config.Load(cmd.Flags(), path)
}
