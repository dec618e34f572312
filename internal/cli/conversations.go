// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/export"
	"github.com/xhjxhj001/mcp-chat-server/internal/util"
)

const untitled = "Untitled"

func newConversationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage server-side conversations",
	}
	cmd.AddCommand(
		newConvListCmd(a),
		newConvShowCmd(a),
		newConvNewCmd(a),
		newConvRemoveCmd(a),
		newConvClearCmd(a),
		newConvTitleCmd(a),
		newConvExportCmd(a),
	)
	return cmd
}

func newConvListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List conversations",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := a.client().ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), convs)
			}
			writeConversations(cmd.OutOrStdout(), convs, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newConvShowCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation and its messages",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.client().GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, conv)
			}

			fmt.Fprintln(out, TitleStyle.Render(displayTitle(conv.Title)))
			fmt.Fprintln(out, RenderLabel("ID:"), ValueStyle.Render(conv.ID))
			fmt.Fprintln(out, RenderLabel("Created:"), ValueStyle.Render(formatTime(conv.CreatedAt)))
			fmt.Fprintln(out, RenderLabel("Updated:"), ValueStyle.Render(formatTime(conv.UpdatedAt)))
			fmt.Fprintln(out, RenderSeparator())

			p := a.presenter(raw)
			for _, msg := range conv.Messages {
				label := TitleStyle.Render("assistant")
				if msg.Role == "user" {
					label = PromptStyle.Render("you")
				}
				fmt.Fprintln(out, label)
				fmt.Fprintln(out, p.Present(msg.Content, false))
				fmt.Fprintln(out)
			}
			if len(conv.Messages) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No messages."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source instead of rendering it")
	return cmd
}

func newConvNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title...]",
		Short: "Create an empty conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client()
			conv, err := client.CreateConversation(ctx)
			if err != nil {
				return err
			}
			if title := strings.TrimSpace(strings.Join(args, " ")); title != "" {
				if conv, err = client.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
			return nil
		},
	}
}

func newConvRemoveCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a conversation",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.confirm(cmd, yes, "delete conversation "+args[0]); err != nil {
				return err
			}
			if err := a.client().DeleteConversation(cmd.Context(), args[0]); err != nil {
				return NewCommandError("conversations", "rm", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]"), "Deleted", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newConvClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation on the server",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.confirm(cmd, yes, "delete ALL conversations"); err != nil {
				return err
			}
			if err := a.client().DeleteAllConversations(cmd.Context()); err != nil {
				return NewCommandError("conversations", "clear", "server refused", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]"), "All conversations deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newConvTitleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "title <id> <title...>",
		Short: "Rename a conversation",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return &UsageError{Message: "title must not be empty"}
			}
			conv, err := a.client().UpdateConversationTitle(cmd.Context(), args[0], title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %q\n", SuccessStyle.Render("[OK]"), conv.ID, conv.Title)
			return nil
		},
	}
}

func newConvExportCmd(a *app) *cobra.Command {
	var (
		format   string
		dir      string
		theme    string
		toStdout bool
		noMeta   bool
	)
	cmd := &cobra.Command{
		Use:     "export <id>",
		Short:   "Export a conversation to Markdown, JSON or HTML",
		Example: "  mcpchat conversations export 3f2a9c1e --format html -o ~/exports\n  mcpchat conv export 3f2a9c1e --stdout > chat.md",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = dir
			opts.Theme = theme
			opts.IncludeMetadata = !noMeta
			exp, err := export.New(format, opts)
			if err != nil {
				return &UsageError{Message: err.Error()}
			}

			conv, err := a.client().GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if toStdout {
				data, err := exp.Export(conv)
				if err != nil {
					return NewCommandError("conversations", "export", args[0], err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path, err := export.ExportToFile(conv, exp, opts)
			if err != nil {
				return NewCommandError("conversations", "export", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]"), "Exported to", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "directory to write into")
	cmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme (dark or light)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write to standard output instead of a file")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "leave out the header with ids and dates")
	return cmd
}

// =============================================================================
// FORMATTING
// =============================================================================

// writeConversations prints a conversation table. current, when set, is
// marked with an asterisk.
func writeConversations(w io.Writer, convs []api.Conversation, current string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}

	fmt.Fprintln(w, "  "+util.PadRight("ID", 36)+" "+util.PadRight("Title", 32)+" "+
		util.PadRight("Msgs", 5)+" Updated")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, c := range convs {
		mark := "  "
		if c.ID == current && current != "" {
			mark = "* "
		}
		fmt.Fprintln(w, mark+util.PadRight(c.ID, 36)+" "+
			util.PadRight(util.TruncateWidth(displayTitle(c.Title), 32), 32)+" "+
			util.PadRight(strconv.Itoa(len(c.Messages)), 5)+" "+
			formatTime(c.UpdatedAt))
	}
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitled
	}
	return title
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
