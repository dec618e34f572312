// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer turns markdown into display text.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// MarkdownConfig configures the glamour renderer.
type MarkdownConfig struct {
	// Style is a glamour style name ("dark", "light", "notty") or "auto".
	Style string
	// WordWrap is the wrap width; 0 disables wrapping.
	WordWrap int
}

// GlamourRenderer renders markdown for the terminal.
// glamour's TermRenderer is not safe for concurrent use, hence the mutex.
type GlamourRenderer struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

// NewGlamourRenderer creates a glamour-backed renderer.
func NewGlamourRenderer(cfg MarkdownConfig) (*GlamourRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(cfg.WordWrap)}
	switch cfg.Style {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(cfg.Style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &GlamourRenderer{tr: tr}, nil
}

// Render implements MarkdownRenderer. Surrounding blank lines added by glamour
// are trimmed.
func (g *GlamourRenderer) Render(markdown string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, err := g.tr.Render(markdown)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// PlainRenderer returns markdown unchanged. Used for --raw output and when
// stdout is not a terminal.
type PlainRenderer struct{}

// Render implements MarkdownRenderer.
func (PlainRenderer) Render(markdown string) (string, error) {
	return markdown, nil
}
