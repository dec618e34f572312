// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the server and show client settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			client := a.client()

			fmt.Fprintln(out, TitleStyle.Render("mcpchat status"))
			fmt.Fprintln(out, RenderLabel("Server:"), ValueStyle.Render(client.BaseURL()))

			start := time.Now()
			convs, err := client.ListConversations(ctx)
			if err != nil {
				fmt.Fprintln(out, RenderLabel("Reachable:"), RenderStatus("fail"))
				return err
			}
			fmt.Fprintln(out, RenderLabel("Reachable:"), RenderStatus("ok"),
				DimStyle.Render(time.Since(start).Round(time.Millisecond).String()))
			fmt.Fprintln(out, RenderLabel("Conversations:"), ValueStyle.Render(strconv.Itoa(len(convs))))

			if st, err := client.ConfigStatus(ctx); err == nil {
				writeConfigStatus(out, st)
			}

			fmt.Fprintln(out, RenderLabel("History turns:"), ValueStyle.Render(strconv.Itoa(a.cfg.Chat.HistoryTurns)))
			fmt.Fprintln(out, RenderLabel("Streaming:"), ValueStyle.Render(onOffText(a.cfg.Chat.Streaming)))

			if archive := a.openArchive(ctx); archive != nil {
				defer archive.Close()
				if n, err := archive.Count(ctx); err == nil {
					fmt.Fprintln(out, RenderLabel("Archived:"), ValueStyle.Render(strconv.Itoa(n)), DimStyle.Render(archive.Path()))
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationNoConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcpchat %s (commit %s, built %s, %s/%s)\n",
				Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
		},
	}
}
