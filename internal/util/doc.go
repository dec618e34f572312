// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across mcpchat.
//
// # Key Functions
//
// Display width:
//   - TruncateWidth: column-aware truncation with ellipsis
//   - StringWidth, PadRight: column-aware measuring and padding
//   - Preview: first line of a text, fitted to a width
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(conv.Title, 40)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
