// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the chat view.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderInfo  lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemText     lipgloss.Style
	MessageBody    lipgloss.Style

	ToolCard        lipgloss.Style
	ToolCardRunning lipgloss.Style

	Cursor       lipgloss.Style
	ThinkingText lipgloss.Style
	Spinner      lipgloss.Style

	StatusBar    lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	InputPrompt lipgloss.Style
	Separator   lipgloss.Style
}

// NewTheme creates a theme for the terminal lipgloss detects.
func NewTheme() *Theme {
	return NewThemeFor(lipgloss.DefaultRenderer())
}

// NewThemeFor creates a theme whose styles come from r.
func NewThemeFor(r *lipgloss.Renderer) *Theme {
	t := &Theme{
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
	}
	t.initStyles(r)
	return t
}

func (t *Theme) initStyles(r *lipgloss.Renderer) {
	t.Header = r.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = r.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HeaderInfo = r.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = r.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = r.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.SystemText = r.NewStyle().
		Foreground(Amber).
		Italic(true)
	t.MessageBody = r.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ToolCard = r.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Emerald).
		Padding(0, 1).
		MarginLeft(2)
	t.ToolCardRunning = t.ToolCard.
		BorderForeground(Amber)

	t.Cursor = r.NewStyle().
		Foreground(Purple)
	t.ThinkingText = r.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Spinner = r.NewStyle().
		Foreground(Purple)

	t.StatusBar = r.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusError = r.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.ShortcutKey = r.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = r.NewStyle().
		Foreground(TextMuted)

	t.InputPrompt = r.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.Separator = r.NewStyle().
		Foreground(Overlay)
}
