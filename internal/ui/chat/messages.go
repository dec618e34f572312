// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
)

// =============================================================================
// SINK MESSAGES
// =============================================================================

// appendMsg adds a transcript message.
type appendMsg struct {
	handle  session.MessageHandle
	kind    session.MessageKind
	content string
}

// updateMsg replaces the text of a message.
type updateMsg struct {
	handle    session.MessageHandle
	content   string
	streaming bool
}

type typingMsg struct {
	handle session.MessageHandle
	on     bool
}

// cursorMsg shows or hides the streaming cursor. remove is final.
type cursorMsg struct {
	handle  session.MessageHandle
	visible bool
	remove  bool
}

// cardMsg creates or refreshes a tool card.
type cardMsg struct {
	handle session.MessageHandle
	entry  toolcard.Entry
}

// conversationMsg reports the conversation the server assigned.
type conversationMsg struct {
	id string
}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// sessionDoneMsg is sent when a submitted query has finished.
type sessionDoneMsg struct {
	sessionID string
	result    session.Result
	err       error
}

// cancelledMsg is sent after Esc has stopped the running session.
type cancelledMsg struct {
	wasLive bool
}

// newConversationMsg is sent once the manager has switched to a fresh
// conversation.
type newConversationMsg struct{}
