// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/xhjxhj001/mcp-chat-server/internal/toolcard"

// MessageKind is the author of a transcript message.
type MessageKind int

const (
	KindUser MessageKind = iota
	KindAssistant
	KindSystem
)

func (k MessageKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	default:
		return "system"
	}
}

// MessageHandle identifies a message created through a RenderSink.
type MessageHandle int

// RenderSink is where a session renders. Implementations are called from
// the session goroutine and the cursor timer goroutine, so they must be safe
// for concurrent use and must not block.
type RenderSink interface {
	// AppendMessage adds a message to the transcript and returns its handle.
	AppendMessage(kind MessageKind, content string) MessageHandle

	// UpdateMessage replaces the display text of a message. streaming is
	// true while more text may follow.
	UpdateMessage(h MessageHandle, content string, streaming bool)

	// SetTypingIndicator shows or hides the "waiting for server" indicator.
	SetTypingIndicator(h MessageHandle, on bool)

	// SetCursor shows or hides the streaming cursor.
	SetCursor(h MessageHandle, visible bool)

	// RemoveCursor removes the streaming cursor for good.
	RemoveCursor(h MessageHandle)

	// CreateToolCard adds a tool card to a message.
	CreateToolCard(h MessageHandle, entry toolcard.Entry)

	// UpdateToolCard refreshes an existing card, typically with its result.
	UpdateToolCard(h MessageHandle, entry toolcard.Entry)
}

// DialogSink asks the user things.
type DialogSink interface {
	Confirm(prompt string) bool
	Alert(message string)
}

// NopSink discards everything. Useful for headless callers.
type NopSink struct{}

func (NopSink) AppendMessage(MessageKind, string) MessageHandle { return 0 }
func (NopSink) UpdateMessage(MessageHandle, string, bool)       {}
func (NopSink) SetTypingIndicator(MessageHandle, bool)          {}
func (NopSink) SetCursor(MessageHandle, bool)                   {}
func (NopSink) RemoveCursor(MessageHandle)                      {}
func (NopSink) CreateToolCard(MessageHandle, toolcard.Entry)    {}
func (NopSink) UpdateToolCard(MessageHandle, toolcard.Entry)    {}
