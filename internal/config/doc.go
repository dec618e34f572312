// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the mcpchat configuration.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (applied by the cli package)
//   - Environment variables (MCPCHAT_*)
//   - ~/.mcpchat/config.toml (or $MCPCHAT_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClientWithConfig(api.ClientConfig{BaseURL: cfg.Server.URL})
//
// Dotted keys back the `config get` and `config set` commands:
//
//	_ = cfg.Set("chat.history_turns", "8")
//	v, _ := cfg.Get("server.url")
package config
