// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package export writes server conversations to files.

Three formats are supported:

  - Markdown (.md) with optional YAML frontmatter
  - JSON (.json), the conversation as the server returned it
  - HTML (.html), a standalone page with embedded CSS; message bodies are
    converted from Markdown with goldmark and raw HTML is never passed through

Usage:

	opts := export.DefaultOptions()
	exp, err := export.New("html", opts)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(conv, exp, opts)
*/
package export
