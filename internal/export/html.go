// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter. Message Markdown is converted
// with GitHub flavored extensions; goldmark drops raw HTML by default.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv *api.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	title := html.EscapeString(titleOf(conv))

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<meta name=\"generator\" content=\"mcpchat\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", title)
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	fmt.Fprintf(&sb, "<header><h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("<dl class=\"meta\">\n")
		fmt.Fprintf(&sb, "<dt>Conversation</dt><dd><code>%s</code></dd>\n", html.EscapeString(conv.ID))
		if !conv.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "<dt>Created</dt><dd>%s</dd>\n", formatTimestamp(conv.CreatedAt))
		}
		fmt.Fprintf(&sb, "<dt>Messages</dt><dd>%d</dd>\n", len(conv.Messages))
		sb.WriteString("</dl>\n")
	}
	sb.WriteString("</header>\n<main>\n")

	for _, msg := range conv.Messages {
		body, err := e.renderMarkdown(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("render message: %w", err)
		}
		role := html.EscapeString(msg.Role)
		fmt.Fprintf(&sb, "<section class=\"message %s\">\n<div class=\"role\">%s", role, html.EscapeString(roleLabel(msg.Role)))
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, " <time>%s</time>", formatTimestamp(msg.Timestamp))
		}
		sb.WriteString("</div>\n<div class=\"content\">\n")
		sb.WriteString(body)
		sb.WriteString("</div>\n</section>\n")
	}

	sb.WriteString("</main>\n")
	fmt.Fprintf(&sb, "<footer>Exported from mcpchat on %s</footer>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

const pageCSS = `<style>
body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
.dark-theme { background: #1e1e2e; color: #cdd6f4; }
.light-theme { background: #ffffff; color: #1f2937; }
.container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
header h1 { margin-bottom: 0.5rem; }
.meta { display: grid; grid-template-columns: max-content 1fr; gap: 0.25rem 1rem; opacity: 0.8; }
.meta dt { font-weight: 600; }
.meta dd { margin: 0; }
.message { border-radius: 8px; padding: 0.75rem 1rem; margin: 1rem 0; }
.dark-theme .message.user { background: #313244; }
.dark-theme .message.assistant { background: #181825; }
.light-theme .message.user { background: #ecfeff; }
.light-theme .message.assistant { background: #f5f3ff; }
.role { font-weight: 700; font-size: 0.9rem; }
.role time { font-weight: 400; opacity: 0.7; margin-left: 0.5rem; }
pre { overflow-x: auto; padding: 0.75rem; border-radius: 6px; background: rgba(127,127,127,0.15); }
code { font-family: "JetBrains Mono", Menlo, monospace; }
footer { margin-top: 2rem; font-size: 0.8rem; opacity: 0.6; text-align: center; }
</style>
`
