// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the mcpchat command line.
//
// Commands:
//
//	mcpchat [chat]                 interactive line-mode chat
//	mcpchat tui                    full-screen chat
//	mcpchat ask <question>         one question, answer streamed to stdout
//	mcpchat conversations ...      list, show, create, rename, delete and export
//	mcpchat config ...             client settings and server agent config
//	mcpchat history ...            local archive of finished sessions
//	mcpchat status                 server reachability and settings
//	mcpchat version
//
// Exit codes are listed in errors.go. Errors the user has already seen in the
// transcript are not printed a second time.
package cli
