// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/ui/chat"
	"github.com/xhjxhj001/mcp-chat-server/internal/ui/styles"
)

func newTUICmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat",
		Long: `Start the full-screen chat.

Enter sends, Esc cancels the answer being streamed, Ctrl+N starts a new
conversation, Ctrl+T shows or hides tool cards and Ctrl+C quits.
Use --log-file to keep logs, since the screen belongs to the chat.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("tui"); err != nil {
				return fmt.Errorf("%w; use 'mcpchat ask' for scripts", err)
			}
			if cmd.Flags().Changed("history-turns") {
				if err := checkTurns(opts.historyTurns); err != nil {
					return err
				}
			} else {
				opts.historyTurns = -1
			}
			return a.runTUI(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.conversation, "conversation", "c", "", "continue this conversation")
	f.IntVarP(&opts.historyTurns, "history-turns", "t", 0, "earlier turns sent as context (default from config)")
	f.BoolVar(&opts.noStream, "no-stream", false, "wait for whole answers instead of streaming")
	return cmd
}

func (a *app) runTUI(cmd *cobra.Command, opts askOptions) error {
	ctx := cmd.Context()
	client := a.client()

	mcfg := a.managerConfig(opts.conversation)
	if opts.historyTurns >= 0 {
		mcfg.HistoryTurns = opts.historyTurns
	}
	if opts.noStream {
		mcfg.Streaming = false
	}

	sink := chat.NewProgramSink()
	m := session.NewManager(ctx, client, sink, mcfg)
	m.SetPresenter(a.presenter(false))
	m.SetConversationCallback(sink.ConversationChanged)
	m.SetDiagnosticCallback(func(d session.Diagnostic) {
		log.Warn(ctx, log.KV{K: "msg", V: "stream anomaly"}, log.KV{K: "kind", V: d.Kind.String()})
	})
	if archive := a.openArchive(ctx); archive != nil {
		defer archive.Close()
		m.SetArchive(archive)
	}

	view := chat.New(styles.NewTheme(), m, chat.Options{
		Server:        client.BaseURL(),
		ShowToolCards: a.cfg.UI.ShowToolCards,
	})
	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p.Send)

	_, err := p.Run()
	// Send returns immediately once the program has exited, so draining the
	// sink after the manager cannot hang.
	m.Close()
	sink.Close()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
