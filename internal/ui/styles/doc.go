// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and styles of the mcpchat TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The Theme struct bundles the styles the chat view draws with:

	theme := styles.NewTheme()
	label := theme.AssistantLabel.Render("Assistant")

NewThemeFor builds a theme from a specific renderer, which tests use to get
plain output.
*/
package styles
