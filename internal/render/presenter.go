// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

// Presenter produces display text for assistant content: the inline formatter
// while streaming, the markdown renderer once complete. All input is sanitized.
type Presenter struct {
	Inline   *InlineFormatter
	Markdown MarkdownRenderer
}

// NewPresenter creates a presenter. A nil markdown renderer falls back to
// PlainRenderer; a nil inline formatter uses lipgloss defaults.
func NewPresenter(inline *InlineFormatter, md MarkdownRenderer) *Presenter {
	if inline == nil {
		inline = NewInlineFormatter(nil)
	}
	if md == nil {
		md = PlainRenderer{}
	}
	return &Presenter{Inline: inline, Markdown: md}
}

// Present renders content. A markdown failure degrades to sanitized text.
func (p *Presenter) Present(content string, streaming bool) string {
	clean := Sanitize(content)
	if streaming {
		return p.Inline.Format(clean)
	}
	out, err := p.Markdown.Render(clean)
	if err != nil {
		return clean
	}
	return out
}
