// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package toolcard

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// LongResultThreshold is the length above which a result gets a copy affordance.
const LongResultThreshold = 100

// =============================================================================
// PAYLOAD FORMATTING
// =============================================================================

// FormatPayload renders a tool argument or result for display.
//
// Objects and arrays are re-indented. A JSON string whose contents are
// themselves JSON is unwrapped and re-indented; any other string is shown
// verbatim. Input that is not JSON at all is returned as-is.
func FormatPayload(raw json.RawMessage) (text string, isJSON bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return string(raw), false
		}
		inner := strings.TrimSpace(s)
		if json.Valid([]byte(inner)) && (strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[")) {
			return indent([]byte(inner)), true
		}
		return s, false
	}

	if !json.Valid(trimmed) {
		return string(raw), false
	}
	return indent(trimmed), true
}

func indent(b []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return string(b)
	}
	return buf.String()
}

// IsLongResult reports whether a formatted result warrants a copy affordance.
func IsLongResult(formatted string) bool {
	return len([]rune(formatted)) > LongResultThreshold
}

// =============================================================================
// ICONS
// =============================================================================

// iconRules is checked in order; the first family whose keyword appears in
// the lowercased tool name wins.
var iconRules = []struct {
	keywords []string
	icon     string
}{
	{[]string{"search", "find"}, "🔍"},
	{[]string{"web", "browser"}, "🌐"},
	{[]string{"file", "read", "write"}, "📄"},
	{[]string{"terminal", "run", "execute"}, "💻"},
	{[]string{"edit", "modify"}, "✏️"},
	{[]string{"list", "directory"}, "📁"},
	{[]string{"grep", "code_search"}, "🔎"},
	{[]string{"delete", "remove"}, "🗑️"},
}

// DefaultIcon is used for tools that match no family.
const DefaultIcon = "🔧"

// Icon picks a display icon from the tool name.
func Icon(toolName string) string {
	name := strings.ToLower(toolName)
	for _, rule := range iconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.icon
			}
		}
	}
	return DefaultIcon
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight colors JSON for a 256-color terminal. On any failure the input is
// returned unchanged.
func Highlight(code string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// Render produces the plain display block for an entry: header line, then
// arguments, then the result when present. Payloads that are JSON are
// highlighted when color is true.
func Render(e Entry, color bool) string {
	var b strings.Builder
	b.WriteString(Icon(e.ToolName))
	b.WriteString(" ")
	b.WriteString(e.ToolName)
	if e.HasResult {
		b.WriteString(" ✓")
	} else {
		b.WriteString(" …")
	}

	if !e.Expanded && !e.HasResult {
		return b.String()
	}

	writeSection := func(label string, raw json.RawMessage) {
		text, isJSON := FormatPayload(raw)
		if text == "" {
			return
		}
		if color && isJSON {
			text = Highlight(text)
		}
		b.WriteString("\n  ")
		b.WriteString(label)
		b.WriteString(":\n")
		for _, line := range strings.Split(text, "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	writeSection("args", e.Args)
	if e.HasResult {
		writeSection("result", e.Result)
	}
	return strings.TrimRight(b.String(), "\n")
}
