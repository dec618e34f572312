// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
	"github.com/xhjxhj001/mcp-chat-server/internal/util"
)

const cursorGlyph = "▌"

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.theme.Separator.Render(strings.Repeat("─", max(m.width, 1))),
		m.input.View(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	conv := "new conversation"
	if m.conversation != "" {
		conv = util.TruncateWidth(m.conversation, 12)
	}
	info := m.server
	if info != "" {
		info += "  "
	}
	info += conv
	line := m.theme.HeaderTitle.Render("mcpchat") + "  " + m.theme.HeaderInfo.Render(info)
	return m.theme.Header.Width(max(m.width, 1)).Render(line)
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.err != nil:
		left = m.theme.StatusError.Render(session.FailureMessage(m.err))
	case m.busy:
		left = m.spinner.View() + " working"
	default:
		left = m.status
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	right := strings.Join(help, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(max(m.width, 1)).Render(left)
	}
	return m.theme.StatusBar.Width(max(m.width, 1)).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return m.theme.ThinkingText.Render("Type a question and press Enter.")
	}
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderEntry(e *entry) string {
	width := max(m.width-4, 20)
	switch e.kind {
	case session.KindUser:
		return m.theme.UserLabel.Render("You") + "\n" +
			m.theme.MessageBody.Width(width).Render(e.content)

	case session.KindSystem:
		return m.theme.SystemText.Width(width).Render(e.content)
	}

	var b strings.Builder
	b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
	if m.showCards {
		color := m.theme.ColorProfile != termenv.Ascii
		for _, c := range e.cards {
			style := m.theme.ToolCard
			if !c.HasResult {
				style = m.theme.ToolCardRunning
			}
			b.WriteString("\n")
			b.WriteString(style.Render(strings.TrimRight(toolcard.Render(c, color), "\n")))
		}
	}
	if e.typing {
		b.WriteString("\n  ")
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.ThinkingText.Render(" thinking…"))
	}
	if e.content != "" || e.cursor {
		body := e.content
		if e.cursor {
			body += m.theme.Cursor.Render(cursorGlyph)
		}
		b.WriteString("\n")
		b.WriteString(m.theme.MessageBody.Render(body))
	}
	return b.String()
}
