// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a memory chunk for a user",
		Long:  "Insert a raw memory chunk. The chunk is embedded and indexed by the next indexing run.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAdd,
	}

	cmd.Flags().String("user", "", "user the memory belongs to (required)")
	cmd.Flags().String("source", "cli", "origin of the memory")
	cmd.Flags().String("file", "", "file path the memory came from")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "a user must be given with --user")
	}
	source, _ := cmd.Flags().GetString("source")
	filePath, _ := cmd.Flags().GetString("file")

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	chunk := &store.MemoryChunk{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    source,
		FilePath:  filePath,
		Content:   strings.Join(args, " "),
		CreatedAt: time.Now().UTC(),
	}
	if err := app.Chunks.InsertChunk(cmd.Context(), chunk); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "added chunk %s\n", chunk.ID)
	return err
}
