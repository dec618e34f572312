// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/config"
	"github.com/xhjxhj001/mcp-chat-server/internal/logging"
	"github.com/xhjxhj001/mcp-chat-server/internal/render"
	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationNoConfig marks commands that run without loading the config
// file, so a broken file can still be repaired.
const annotationNoConfig = "mcpchat/no-config"

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app is the state shared by every command of one invocation.
type app struct {
	flags struct {
		config   string
		server   string
		logLevel string
		logFile  string
	}

	cfg      *config.Config
	closeLog func() error

	// newClient and dialog are swapped in tests.
	newClient func(cfg *config.Config) *api.Client
	dialog    session.DialogSink
}

func newApp() *app {
	return &app{newClient: clientFor}
}

func clientFor(cfg *config.Config) *api.Client {
	return api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
		UserAgent:         "mcpchat/" + Version,
	})
}

// configPath returns the file commands read and write.
func (a *app) configPath() (string, error) {
	if a.flags.config != "" {
		return a.flags.config, nil
	}
	return config.ConfigPath()
}

func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotationNoConfig] != "" {
		a.cfg = config.Default()
	} else {
		var err error
		if a.flags.config != "" {
			a.cfg, err = config.LoadFromPath(a.flags.config)
		} else {
			a.cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
	}

	// Flags beat the file and the environment.
	if a.flags.server != "" {
		a.cfg.Server.URL = a.flags.server
	}
	if a.flags.logLevel != "" {
		a.cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFile != "" {
		a.cfg.Log.File = a.flags.logFile
	}
	a.cfg.SetDefaults()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// stderr belongs to the conversation unless debugging or logging to a file.
	if a.cfg.Log.File == "" && a.cfg.Log.Level != "debug" {
		cmd.SetContext(logging.Discard(ctx))
		a.closeLog = func() error { return nil }
		return nil
	}
	ctx, closer, err := logging.Context(ctx, logging.Options{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		File:   a.cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.closeLog = closer
	log.Debug(ctx, log.KV{K: "msg", V: "starting"}, log.KV{K: "command", V: cmd.CommandPath()}, log.KV{K: "server", V: a.cfg.Server.URL})
	cmd.SetContext(ctx)
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// client returns an API client for the configured server.
func (a *app) client() *api.Client {
	return a.newClient(a.cfg)
}

// presenter builds the renderer for assistant text. raw output and non-TTY
// stdout get the markdown source, identical while streaming and once final.
func (a *app) presenter(raw bool) *render.Presenter {
	if raw || !IsStdoutTTY() {
		return render.NewPresenter(render.NewVerbatimFormatter(), render.PlainRenderer{})
	}
	wrap := a.cfg.UI.WordWrap
	if wrap == 0 {
		wrap = GetTerminalWidth() - 2
	}
	md, err := render.NewGlamourRenderer(render.MarkdownConfig{Style: a.cfg.UI.Style, WordWrap: wrap})
	if err != nil {
		return render.NewPresenter(nil, render.PlainRenderer{})
	}
	return render.NewPresenter(render.NewInlineFormatter(nil), md)
}

// managerConfig maps settings onto the session manager.
func (a *app) managerConfig(conversationID string) session.Config {
	return session.Config{
		HistoryTurns:   a.cfg.Chat.HistoryTurns,
		Streaming:      a.cfg.Chat.Streaming,
		BlinkInterval:  a.cfg.BlinkInterval(),
		ConversationID: conversationID,
	}
}

// openArchive opens the transcript archive, or returns nil when disabled.
// A broken archive never blocks chatting.
func (a *app) openArchive(ctx context.Context) *storage.Archive {
	if !a.cfg.Storage.Enabled {
		return nil
	}
	path, err := a.cfg.ArchivePath()
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "archive path"})
		return nil
	}
	archive, err := storage.Open(ctx, path, a.cfg.Storage.MaxSessions)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "open archive failed"}, log.KV{K: "path", V: path})
		return nil
	}
	return archive
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the mcpchat command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpchat",
		Short: "Terminal client for the MCP chat server",
		Long: `mcpchat talks to an MCP chat server: it streams answers with live tool
call cards, manages server-side conversations and agent configuration, and
keeps a local archive of finished sessions.

Run without a subcommand to start the interactive chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", "", "config file (default ~/.mcpchat/config.toml)")
	pf.StringVar(&a.flags.server, "server", "", "chat server URL")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "write logs to this file")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Message: err.Error()}
	})

	chat := newChatCmd(a)
	root.RunE = chat.RunE

	root.AddCommand(
		newAskCmd(a),
		chat,
		newTUICmd(a),
		newConversationsCmd(a),
		newConfigCmd(a),
		newHistoryCmd(a),
		newStatusCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}
	if !silent(err) {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}

// usageArgs wraps a cobra argument validator so its failures map to
// ExitUsageError.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &UsageError{Message: err.Error()}
		}
		return nil
	}
}
