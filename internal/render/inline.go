// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// INLINE FORMATTER
// =============================================================================

var (
	codeSpanRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe     = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRe   = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// InlineFormatter is the cheap formatter used while an answer is still
// streaming. It handles bold, italic and code spans only and is re-run over
// the whole buffer on every delta. Unterminated spans are left as typed.
type InlineFormatter struct {
	Bold   lipgloss.Style
	Italic lipgloss.Style
	Code   lipgloss.Style

	// Verbatim leaves markdown source untouched, so streamed text matches
	// what PlainRenderer prints once the answer is complete.
	Verbatim bool
}

// NewInlineFormatter builds a formatter whose styles come from r.
// A nil renderer uses the lipgloss default.
func NewInlineFormatter(r *lipgloss.Renderer) *InlineFormatter {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &InlineFormatter{
		Bold:   r.NewStyle().Bold(true),
		Italic: r.NewStyle().Italic(true),
		Code: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}),
	}
}

// NewVerbatimFormatter returns a formatter that passes text through as typed.
func NewVerbatimFormatter() *InlineFormatter {
	return &InlineFormatter{Verbatim: true}
}

// Format styles text. Code spans are styled first and their contents are
// never touched by the emphasis rules.
func (f *InlineFormatter) Format(text string) string {
	if f.Verbatim {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	last := 0
	for _, loc := range codeSpanRe.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(f.emphasis(text[last:loc[0]]))
		b.WriteString(f.Code.Render(text[loc[2]:loc[3]]))
		last = loc[1]
	}
	b.WriteString(f.emphasis(text[last:]))
	return b.String()
}

func (f *InlineFormatter) emphasis(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}
	s = boldRe.ReplaceAllStringFunc(s, func(m string) string {
		return f.Bold.Render(m[2 : len(m)-2])
	})
	return italicRe.ReplaceAllStringFunc(s, func(m string) string {
		return f.Italic.Render(m[1 : len(m)-1])
	})
}
