// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/config"
)

// NewRootCmd creates the root mnemo command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mnemo",
		Short:         "Mnemo — personal memory indexing and retrieval",
		Long:          "Mnemo embeds personal memory chunks, maintains per-user similarity snapshots, and serves nearest-neighbor search over them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Register subcommands
	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newAddCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config file (flag, then the standard location,
// bootstrapping a default when none exists), loads it, and applies the
// data-dir flag override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		std, err := config.DefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(std); statErr == nil {
				path = std
			} else if bootstrapped := config.BootstrapConfig(); bootstrapped != "" {
				path = bootstrapped
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
