// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for mcpchat.
//
// Interactive commands (during chat):
//
//	/help, /h           Show available commands
//	/new, /n            Start a new conversation
//	/switch <id>        Continue an existing conversation
//	/list, /ls          List server conversations
//	/title <text>       Rename the current conversation
//	/delete             Delete the current conversation
//	/stream on|off      Toggle streaming
//	/turns <n>          History turns sent with each question
//	/status, /s         Show chat settings
//	/quit, /q           Exit chat
//	Ctrl+C              Cancel the current answer
//	Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/config"
	"github.com/xhjxhj001/mcp-chat-server/internal/session"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with line editing and input history.

Type /help inside the chat for its commands. Ctrl+C cancels the answer being
streamed, Ctrl+D exits.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("chat"); err != nil {
				return fmt.Errorf("%w; use 'mcpchat ask' for scripts", err)
			}
			if cmd.Flags().Changed("history-turns") {
				if err := checkTurns(opts.historyTurns); err != nil {
					return err
				}
			} else {
				opts.historyTurns = -1
			}
			return a.runChat(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.conversation, "conversation", "c", "", "continue this conversation")
	f.IntVarP(&opts.historyTurns, "history-turns", "t", 0, "earlier turns sent as context (default from config)")
	f.BoolVar(&opts.noStream, "no-stream", false, "wait for whole answers instead of streaming")
	return cmd
}

// chatREPL is the state of one interactive chat.
type chatREPL struct {
	ctx    context.Context
	out    io.Writer
	client *api.Client
	m      *session.Manager
	sink   *TerminalSink
	dialog session.DialogSink
}

func (a *app) newChatREPL(ctx context.Context, out io.Writer, tty bool, opts askOptions) *chatREPL {
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

	client := a.client()
	m := session.NewManager(ctx, client, sink, mcfg)
	m.SetPresenter(a.presenter(!tty))
	return &chatREPL{ctx: ctx, out: out, client: client, m: m, sink: sink}
}

func (a *app) runChat(cmd *cobra.Command, opts askOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	r := a.newChatREPL(ctx, out, out == os.Stdout && IsStdoutTTY(), opts)
	defer r.m.Close()

	if archive := a.openArchive(ctx); archive != nil {
		defer archive.Close()
		r.m.SetArchive(archive)
	}

	input := NewChatCLI()
	defer input.Close()
	r.dialog = NewTerminalDialog(input.line, out)

	// Ctrl+C while an answer streams cancels it. At the prompt liner sees
	// the key itself.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if r.m.Cancel() {
				r.sink.Finish()
				fmt.Fprintln(out, WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	r.printWelcome(a.cfg.Server.URL)
	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or closed input.
			fmt.Fprintln(out)
			return nil
		}
		quit, err := r.handle(line)
		if err != nil {
			fmt.Fprintln(out, ErrorStyle.Render("Error:"), err)
		}
		if quit {
			return nil
		}
	}
}

// handle processes one line of input. It reports whether the chat should end.
func (r *chatREPL) handle(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return r.slash(line)
	}
	return false, r.ask(line)
}

func (r *chatREPL) ask(query string) error {
	s, err := r.m.Submit(query)
	if err != nil {
		return err
	}
	// Failures are rendered into the answer slot; nothing more to report.
	s.Wait()
	r.sink.Finish()
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *chatREPL) slash(line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
	case "/quit", "/q", "/exit":
		return true, nil
	case "/new", "/n":
		r.m.OnConversationSwitch("")
		fmt.Fprintln(r.out, SuccessStyle.Render("[OK]"), "Started a new conversation")
	case "/switch":
		if len(args) != 1 {
			return false, &UsageError{Message: "usage: /switch <conversation-id>"}
		}
		return false, r.switchTo(args[0])
	case "/list", "/ls":
		convs, err := r.client.ListConversations(r.ctx)
		if err != nil {
			return false, err
		}
		writeConversations(r.out, convs, r.m.Widget().ConversationID)
	case "/title":
		return false, r.retitle(strings.TrimSpace(strings.TrimPrefix(line, parts[0])))
	case "/delete":
		return false, r.deleteCurrent()
	case "/stream":
		on, err := onOff(args)
		if err != nil {
			return false, err
		}
		r.m.SetStreaming(on)
		fmt.Fprintln(r.out, SuccessStyle.Render("[OK]"), "Streaming", onOffText(on))
	case "/turns":
		if len(args) != 1 {
			return false, &UsageError{Message: "usage: /turns <n>"}
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, &UsageError{Message: "history turns must be a number"}
		}
		if err := checkTurns(n); err != nil {
			return false, err
		}
		r.m.SetHistoryTurns(n)
		fmt.Fprintln(r.out, SuccessStyle.Render("[OK]"), "History turns set to", n)
	case "/status", "/s":
		r.printStatus()
	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return false, nil
}

func (r *chatREPL) switchTo(id string) error {
	conv, err := r.client.GetConversation(r.ctx, id)
	if err != nil {
		if se, ok := api.AsStatus(err); ok && se.StatusCode == http.StatusNotFound {
			return fmt.Errorf("conversation %s not found", id)
		}
		return err
	}
	r.m.OnConversationSwitch(conv.ID)
	fmt.Fprintf(r.out, "%s Switched to %q (%d messages)\n",
		SuccessStyle.Render("[OK]"), displayTitle(conv.Title), len(conv.Messages))
	return nil
}

func (r *chatREPL) retitle(title string) error {
	id := r.m.Widget().ConversationID
	if id == "" {
		return errors.New("no conversation yet; ask something first")
	}
	if title == "" {
		return &UsageError{Message: "usage: /title <text>"}
	}
	conv, err := r.client.UpdateConversationTitle(r.ctx, id, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s Renamed to %q\n", SuccessStyle.Render("[OK]"), conv.Title)
	return nil
}

func (r *chatREPL) deleteCurrent() error {
	id := r.m.Widget().ConversationID
	if id == "" {
		return errors.New("no conversation to delete")
	}
	if r.dialog == nil || !r.dialog.Confirm("Delete conversation "+id+"?") {
		return nil
	}
	if err := r.client.DeleteConversation(r.ctx, id); err != nil {
		return err
	}
	r.m.OnConversationSwitch("")
	fmt.Fprintln(r.out, SuccessStyle.Render("[OK]"), "Conversation deleted; next question starts a new one")
	return nil
}

func onOff(args []string) (bool, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			return true, nil
		case "off", "false", "no":
			return false, nil
		}
	}
	return false, &UsageError{Message: "usage: /stream on|off"}
}

func onOffText(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *chatREPL) printWelcome(server string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("mcpchat interactive chat"))
	fmt.Fprintln(r.out, RenderSeparator(30))
	fmt.Fprintln(r.out, RenderLabel("Server:"), ValueStyle.Render(server))
	if id := r.m.Widget().ConversationID; id != "" {
		fmt.Fprintln(r.out, RenderLabel("Conversation:"), ValueStyle.Render(id))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new conversation"},
		{"/switch <id>", "Continue an existing conversation"},
		{"/list, /ls", "List server conversations"},
		{"/title <text>", "Rename the current conversation"},
		{"/delete", "Delete the current conversation"},
		{"/stream on|off", "Toggle streaming answers"},
		{"/turns <n>", "History turns sent with each question"},
		{"/status, /s", "Show chat settings"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Available Commands"))
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", PromptStyle.Render(fmt.Sprintf("%-16s", c.cmd)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printStatus() {
	w := r.m.Widget()
	id := w.ConversationID
	if id == "" {
		id = "(new)"
	}
	fmt.Fprintln(r.out, RenderLabel("Conversation:"), ValueStyle.Render(id))
	fmt.Fprintln(r.out, RenderLabel("History turns:"), ValueStyle.Render(strconv.Itoa(w.HistoryTurns)))
	fmt.Fprintln(r.out, RenderLabel("Streaming:"), ValueStyle.Render(onOffText(w.Streaming)))
}
