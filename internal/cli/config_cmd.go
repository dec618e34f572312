// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/xhjxhj001/mcp-chat-server/internal/agentconfig"
	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client settings and the server's agent configuration",
		Long: `Manage settings.

Client settings live in ~/.mcpchat/config.toml (show, get, set, path, keys).
The server's agent configuration (MCP servers and the like) is read with
'server', replaced with 'push' and followed with 'status' and 'watch'.`,
	}
	cmd.AddCommand(
		newConfigShowCmd(a),
		newConfigGetCmd(a),
		newConfigSetCmd(a),
		newConfigPathCmd(a),
		newConfigKeysCmd(),
		newConfigServerCmd(a),
		newConfigPushCmd(a),
		newConfigStatusCmd(a),
		newConfigWatchCmd(a),
	)
	return cmd
}

// =============================================================================
// CLIENT SETTINGS
// =============================================================================

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long:  "Print the effective settings: file values with environment and flag overrides applied.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), a.cfg.String())
			return err
		},
	}
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective setting",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Change a setting in the config file",
		Example:     "  mcpchat config set chat.history_turns 8\n  mcpchat config set server.url http://10.0.0.5:8000",
		Args:        usageArgs(cobra.ExactArgs(2)),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			// The file alone, so environment overrides are not persisted.
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Message: err.Error()}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveTo(cfg, path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			v, _ := cfg.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %v\n", SuccessStyle.Render("[OK]"), args[0], v)
			return nil
		},
	}
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "keys",
		Short:       "List setting keys",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
			return nil
		},
	}
}

// =============================================================================
// SERVER AGENT CONFIGURATION
// =============================================================================

func newConfigServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Print the server's agent configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.client().GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigPushCmd(a *app) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Replace the server's agent configuration",
		Long: `Send a JSON or YAML agent configuration to the server.

The server restarts its agent to apply it; the command waits for the update
to finish unless --no-wait is given.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := agentconfig.Load(args[0])
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return pushConfig(ctx, a.client(), doc, !noWait, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the server accepts the update")
	return cmd
}

func newConfigStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the last agent configuration update",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client().ConfigStatus(cmd.Context())
			if err != nil {
				return err
			}
			writeConfigStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newConfigWatchCmd(a *app) *cobra.Command {
	var (
		debounce time.Duration
		pushNow  bool
	)
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Push the agent configuration every time the file changes",
		Long: `Watch a JSON or YAML agent configuration file and push it to the server
after every save. Files that fail to parse are reported and skipped.
Ctrl+C stops watching.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			client := a.client()
			push := func(ctx context.Context, doc []byte) error {
				fmt.Fprintln(out, DimStyle.Render(time.Now().Format("15:04:05")+" change detected, pushing"))
				return pushConfig(ctx, client, doc, true, out)
			}

			if pushNow {
				doc, err := agentconfig.Load(args[0])
				if err != nil {
					return &UsageError{Message: err.Error()}
				}
				if err := push(ctx, doc); err != nil {
					fmt.Fprintln(out, ErrorStyle.Render("Error:"), err)
				}
			}

			w := agentconfig.NewWatcher(args[0], debounce, push)
			w.OnError(func(err error) {
				fmt.Fprintln(out, ErrorStyle.Render("Error:"), err)
			})
			fmt.Fprintln(out, DimStyle.Render("Watching "+args[0]+" (Ctrl+C to stop)"))
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", agentconfig.DefaultDebounce, "quiet period before pushing")
	cmd.Flags().BoolVar(&pushNow, "push-now", false, "push the file once before watching")
	return cmd
}

// pushConfig sends doc and, when wait is set, polls until the server reports
// the outcome.
func pushConfig(ctx context.Context, client *api.Client, doc json.RawMessage, wait bool, out io.Writer) error {
	resp, err := client.UpdateConfig(ctx, doc)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server rejected the configuration: %s", resp.Message)
	}
	log.Info(ctx, log.KV{K: "msg", V: "config update accepted"}, log.KV{K: "update_id", V: resp.UpdateID})
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	if !wait || resp.UpdateID == "" {
		fmt.Fprintln(out, SuccessStyle.Render("[OK]"), "Update submitted")
		return nil
	}

	opts := api.DefaultPollOptions()
	opts.OnStatus = func(attempt int, st *api.ConfigStatus, err error) {
		if err != nil {
			log.Debug(ctx, log.KV{K: "msg", V: "status poll failed"}, log.KV{K: "attempt", V: attempt}, log.KV{K: "err", V: err.Error()})
		}
	}
	st, err := client.WaitForConfigUpdate(ctx, resp.UpdateID, opts)
	if errors.Is(err, api.ErrUpdateSuperseded) {
		return fmt.Errorf("%w (now tracking %s)", err, st.UpdateID)
	}
	if err != nil {
		return err
	}
	if !st.Succeeded() {
		msg := st.Message
		if msg == "" {
			msg = "no details from server"
		}
		return fmt.Errorf("config update failed: %s", msg)
	}
	fmt.Fprintln(out, SuccessStyle.Render("[OK]"), "Configuration applied")
	return nil
}

func writeConfigStatus(w io.Writer, st *api.ConfigStatus) {
	var state string
	switch {
	case st.Updating:
		state = "updating"
	case st.Success == nil:
		state = "idle"
	case *st.Success:
		state = "ok"
	default:
		state = "failed"
	}
	id := st.UpdateID
	if id == "" {
		id = "-"
	}
	fmt.Fprintln(w, RenderLabel("Update:"), ValueStyle.Render(id))
	fmt.Fprintln(w, RenderLabel("State:"), RenderStatus(state))
	if st.Message != "" {
		fmt.Fprintln(w, RenderLabel("Message:"), ValueStyle.Render(st.Message))
	}
}
