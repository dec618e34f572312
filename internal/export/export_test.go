// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func sampleConversation() *api.Conversation {
	created := time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC)
	return &api.Conversation{
		ID:        "3f2a9c1e-0000-4000-8000-000000000001",
		Title:     "Weather: Oslo",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
		Messages: []api.Message{
			{Role: "user", Content: "What's the weather in Oslo?", Timestamp: created},
			{Role: "assistant", Content: "It is **sunny**.\n\n```json\n{\"temp\": 21}\n```", Timestamp: created.Add(30 * time.Second)},
		},
	}
}

// =============================================================================
// FORMAT SELECTION
// =============================================================================

func TestNewKnownFormats(t *testing.T) {
	for format, ext := range map[string]string{"md": ".md", "Markdown": ".md", "json": ".json", " html ": ".html"} {
		exp, err := New(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ext, exp.FileExtension())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "html, json, markdown, md")
}

// =============================================================================
// EXPORTERS
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"Weather: Oslo\"\n"))
	assert.Contains(t, md, "conversation_id: 3f2a9c1e-0000-4000-8000-000000000001\n")
	assert.Contains(t, md, "exported: 2025-03-01T12:00:00Z\n")
	assert.Contains(t, md, "# Weather: Oslo\n")
	assert.Contains(t, md, "### User <sub>2025-02-28 09:30:00</sub>")
	assert.Contains(t, md, "It is **sunny**.")
	assert.Equal(t, 1, strings.Count(md, "\n---\n\n###"), "one separator between two messages")
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false
	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)

	md := string(out)
	assert.True(t, strings.HasPrefix(md, "# Weather: Oslo"))
	assert.Contains(t, md, "### Assistant\n")
	assert.NotContains(t, md, "<sub>")
}

func TestYAMLNewlineInjection(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "x\nmalicious: true"
	out, err := NewMarkdownExporter(testOptions("")).Export(conv)
	require.NoError(t, err)

	assert.Contains(t, string(out), `title: "x\nmalicious: true"`)
	assert.NotContains(t, string(out), "\nmalicious: true\n")
}

func TestJSONExportRoundTrips(t *testing.T) {
	conv := sampleConversation()
	out, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)

	var back api.Conversation
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, conv.ID, back.ID)
	assert.Len(t, back.Messages, 2)
	assert.True(t, conv.CreatedAt.Equal(back.CreatedAt))
}

func TestHTMLExportRendersMarkdown(t *testing.T) {
	out, err := NewHTMLExporter(testOptions("")).Export(sampleConversation())
	require.NoError(t, err)
	page := string(out)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Weather: Oslo</title>")
	assert.Contains(t, page, `<body class="dark-theme">`)
	assert.Contains(t, page, "<strong>sunny</strong>")
	assert.Contains(t, page, `<code class="language-json">`)
	assert.Contains(t, page, `class="message user"`)
	assert.Contains(t, page, "March 1, 2025 at 12:00 PM")
}

func TestHTMLExportEscapesHostileContent(t *testing.T) {
	conv := sampleConversation()
	conv.Title = `<script>alert("t")</script>`
	conv.Messages[0].Content = `<img src=x onerror=alert(1)> hi`
	conv.Messages[0].Role = `user" onclick="x`

	out, err := NewHTMLExporter(testOptions("")).Export(conv)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "<img")
	assert.NotContains(t, page, `onclick="x`)
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestHTMLThemeFallsBackToDark(t *testing.T) {
	opts := testOptions("")
	opts.Theme = "neon"
	out, err := NewHTMLExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body class="dark-theme">`)

	opts.Theme = "light"
	out, err = NewHTMLExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body class="light-theme">`)
}

func TestEmptyConversationRejected(t *testing.T) {
	empty := &api.Conversation{ID: "c"}
	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewHTMLExporter(nil)} {
		_, err := exp.Export(empty)
		assert.ErrorIs(t, err, ErrEmptyConversation)
		_, err = exp.Export(nil)
		assert.ErrorIs(t, err, ErrNilConversation)
	}
	_, err := NewJSONExporter(nil).Export(nil)
	assert.ErrorIs(t, err, ErrNilConversation)
}

// =============================================================================
// FILES
// =============================================================================

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	opts := testOptions(dir)
	conv := sampleConversation()

	path, err := ExportToFile(conv, NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_Weather-_Oslo_3f2a9c1e.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Weather: Oslo")
}

func TestExportToFileFailsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	_, err := ExportToFile(&api.Conversation{ID: "c"}, NewMarkdownExporter(nil), testOptions(dir))
	assert.ErrorIs(t, err, ErrEmptyConversation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a/b\\c:d*e?f\"g<h>i|j", "a-b-c-d-e-f-g-h-i-j"},
		{"with space\tand\nnewline", "with_space_and_newline"},
		{"bell\x07", "bell-"},
		{"", "conversation"},
		{strings.Repeat("é", 60), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", roleLabel("user"))
	assert.Equal(t, "Assistant", roleLabel("assistant"))
	assert.Equal(t, "Unknown", roleLabel(""))
	assert.Equal(t, "Tool", roleLabel("tool"))
}
