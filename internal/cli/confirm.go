// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
//  1. --yes proceeds without prompting
//  2. stdin that is not a terminal requires --yes
//  3. otherwise the user is asked, defaulting to no

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
)

// prompter reads one line of input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// TerminalDialog asks questions on the terminal.
type TerminalDialog struct {
	p prompter
	w io.Writer
}

var _ session.DialogSink = (*TerminalDialog)(nil)

// NewTerminalDialog creates a dialog reading from p and writing alerts to w.
func NewTerminalDialog(p prompter, w io.Writer) *TerminalDialog {
	return &TerminalDialog{p: p, w: w}
}

// Confirm asks a yes/no question. Anything but y or yes is a no, and so is
// Ctrl+C or end of input.
func (d *TerminalDialog) Confirm(prompt string) bool {
	answer, err := d.p.Prompt(prompt + " [y/N]: ")
	if err != nil {
		fmt.Fprintln(d.w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// Alert shows a message.
func (d *TerminalDialog) Alert(message string) {
	fmt.Fprintln(d.w, WarningStyle.Render(message))
}

// confirm gates a destructive action. It returns errCancelledByUser when the
// user declines.
func (a *app) confirm(cmd *cobra.Command, yes bool, action string) error {
	if yes {
		return nil
	}

	dialog := a.dialog
	if dialog == nil {
		if err := RequiresTTY(action); err != nil {
			return fmt.Errorf("%w; pass --yes to skip confirmation", err)
		}
		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		defer line.Close()
		dialog = NewTerminalDialog(line, cmd.ErrOrStderr())
	}

	if !dialog.Confirm("Are you sure you want to " + action + "?") {
		dialog.Alert("Cancelled.")
		return errCancelledByUser
	}
	return nil
}
