// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a user's memories",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("user", "", "user whose memories to search (required)")
	cmd.Flags().IntP("results", "k", 0, "maximum number of results (default 5)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return mnemoerr.New(mnemoerr.CodeCLIInputInvalid, "a user must be given with --user")
	}
	k, _ := cmd.Flags().GetInt("results")
	query := strings.Join(args, " ")

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	snippets := app.Searcher.Search(cmd.Context(), userID, query, k)
	if len(snippets) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "no memories found")
		return err
	}

	for i, snippet := range snippets {
		where := snippet.FilePath
		if where == "" {
			where = snippet.Source
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s)\n", i+1, snippet.Content, where); err != nil {
			return err
		}
	}
	return nil
}
