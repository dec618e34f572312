// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render holds the display-side state of a streaming answer and the
// renderers that turn assistant text into terminal output.
//
// State owns the accumulated text and the blinking cursor. Presenter picks
// between the cheap InlineFormatter (used on every delta) and a full
// MarkdownRenderer (used once the answer is complete).
package render
