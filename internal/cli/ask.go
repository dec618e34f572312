// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
)

type askOptions struct {
	conversation string
	historyTurns int
	raw          bool
	noStream     bool
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and print the answer",
		Long: `Ask one question and print the answer as it streams.

The question is read from stdin when no arguments are given. Ctrl+C cancels
the request.`,
		Example: `  mcpchat ask "which tools can you use?"
  git diff | mcpchat ask --raw
  mcpchat ask --conversation 3f2a... "and the second one?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" && !IsTTY() {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read question: %w", err)
				}
				query = string(b)
			}
			if strings.TrimSpace(query) == "" {
				return &UsageError{Message: "a question is required"}
			}
			if !cmd.Flags().Changed("history-turns") {
				opts.historyTurns = -1
			} else if err := checkTurns(opts.historyTurns); err != nil {
				return err
			}
			return a.runAsk(cmd, query, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.conversation, "conversation", "c", "", "continue this conversation")
	f.IntVarP(&opts.historyTurns, "history-turns", "t", 0, "earlier turns sent as context (default from config)")
	f.BoolVar(&opts.raw, "raw", false, "print markdown source instead of rendering it")
	f.BoolVar(&opts.noStream, "no-stream", false, "wait for the whole answer instead of streaming")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, query string, opts askOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	tty := out == os.Stdout && IsStdoutTTY()
	sink := NewTerminalSink(out, SinkOptions{
		TTY:           tty,
		Color:         tty && ColorsEnabled(),
		ShowToolCards: a.cfg.UI.ShowToolCards,
	})

	mcfg := a.managerConfig(opts.conversation)
	if opts.historyTurns >= 0 {
		mcfg.HistoryTurns = opts.historyTurns
	}
	if opts.noStream {
		mcfg.Streaming = false
	}

	m := session.NewManager(ctx, a.client(), sink, mcfg)
	m.SetPresenter(a.presenter(opts.raw || !tty))
	if archive := a.openArchive(ctx); archive != nil {
		defer archive.Close()
		m.SetArchive(archive)
	}

	s, err := m.Submit(query)
	if err != nil {
		return err
	}
	res := s.Wait()
	sink.Finish()

	if tty && res.ConversationID != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("conversation "+res.ConversationID))
	}
	return resultError(res)
}

// maxHistoryTurns matches the config file bound.
const maxHistoryTurns = 50

func checkTurns(n int) error {
	if n < 0 || n > maxHistoryTurns {
		return &UsageError{Message: fmt.Sprintf("history turns must be 0-%d, got %d", maxHistoryTurns, n)}
	}
	return nil
}

// resultError turns a finished session into a command error. The failure
// text is already on screen.
func resultError(res session.Result) error {
	switch res.State {
	case session.StateCancelled:
		return context.Canceled
	case session.StateFailed:
		if res.Err == nil {
			return &shownError{err: fmt.Errorf("%s", strings.TrimSpace(res.Content))}
		}
		return &shownError{err: res.Err}
	}
	return nil
}
