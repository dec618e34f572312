// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation to one file format.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *api.Conversation) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the format.
	MimeType() string
}

// Sentinel errors.
var (
	ErrNilConversation   = errors.New("conversation is nil")
	ErrEmptyConversation = errors.New("conversation has no messages")
	ErrUnknownFormat     = errors.New("unknown export format")
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ExportToFile writes. Default: current directory
	OutputDir string

	// IncludeMetadata adds a header with ids and dates.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times when the server sent them.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
		Now:               time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

var constructors = map[string]func(*Options) Exporter{
	"md":       func(o *Options) Exporter { return NewMarkdownExporter(o) },
	"markdown": func(o *Options) Exporter { return NewMarkdownExporter(o) },
	"json":     func(o *Options) Exporter { return NewJSONExporter(o) },
	"html":     func(o *Options) Exporter { return NewHTMLExporter(o) },
}

// New returns the exporter for a format name.
func New(format string, opts *Options) (Exporter, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
	return ctor(opts), nil
}

// Formats lists the accepted format names.
func Formats() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports a conversation into opts.OutputDir and returns the
// path written. The file name is built from the title and id, so exporting
// the same conversation again replaces the earlier file.
func ExportToFile(conv *api.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, Filename(conv, exporter))
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Filename returns the file name ExportToFile uses.
func Filename(conv *api.Conversation, exporter Exporter) string {
	id := conv.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("conversation_%s_%s%s", sanitizeFilename(titleOf(conv)), sanitizeFilename(id), exporter.FileExtension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(conv *api.Conversation) error {
	if conv == nil {
		return ErrNilConversation
	}
	if len(conv.Messages) == 0 {
		return ErrEmptyConversation
	}
	return nil
}

func titleOf(conv *api.Conversation) string {
	if t := strings.TrimSpace(conv.Title); t != "" {
		return t
	}
	return "Untitled conversation"
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// roleLabel returns the display label for a message role.
func roleLabel(role string) string {
	switch role {
	case "":
		return "Unknown"
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		runes := []rune(role)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
