// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xhjxhj001/mcp-chat-server/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the local archive of finished sessions",
		Long: `Browse the local archive of finished sessions, newest first.

Every completed or failed answer is recorded in ~/.mcpchat/history.db unless
storage.enabled is false. Ids may be abbreviated to any unique prefix.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer archive.Close()

			metas, err := archive.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), metas)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), storage.FormatList(metas)+"\n")
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of transcripts to show (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(newHistoryShowCmd(a), newHistoryPruneCmd(a), newHistoryClearCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived session",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer archive.Close()

			t, err := archive.Get(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrAmbiguous) {
				return &UsageError{Message: fmt.Sprintf("%q matches more than one transcript; use more characters", args[0])}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.presenter(raw).Present(t.Markdown(), false))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source instead of rendering it")
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest transcripts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return &UsageError{Message: "--keep must not be negative"}
			}
			archive, err := a.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer archive.Close()

			n, err := archive.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %d transcripts\n", SuccessStyle.Render("[OK]"), n)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "number of transcripts to keep")
	return cmd
}

func newHistoryClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole archive",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.confirm(cmd, yes, "delete every archived transcript"); err != nil {
				return err
			}
			archive, err := a.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer archive.Close()

			if err := archive.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]"), "Archive cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// requireArchive opens the archive for the history commands, which unlike
// chatting cannot do without it.
func (a *app) requireArchive(ctx context.Context) (*storage.Archive, error) {
	if !a.cfg.Storage.Enabled {
		return nil, &UsageError{Message: "the transcript archive is disabled (storage.enabled = false)"}
	}
	path, err := a.cfg.ArchivePath()
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, path, a.cfg.Storage.MaxSessions)
}
