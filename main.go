// mcpchat - a terminal client for the MCP chat server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/xhjxhj001/mcp-chat-server/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
