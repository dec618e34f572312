// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"time"
)

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// QueryRequest is the body of /api/query and /api/stream.
type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	HistoryTurns   int    `json:"history_turns"`
}

// QueryResponse is the body returned by /api/query.
type QueryResponse struct {
	Answer         string         `json:"answer"`
	ConversationID string         `json:"conversation_id"`
	Usage          map[string]any `json:"usage,omitempty"`
}

// Message is one turn stored in a conversation.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the server-side record of a chat.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type conversationList struct {
	Conversations []Conversation `json:"conversations"`
}

type conversationEnvelope struct {
	Conversation Conversation `json:"conversation"`
}

// SuccessResponse is the generic acknowledgement body.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConfigUpdateResponse is returned by POST /api/config/update.
type ConfigUpdateResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UpdateID string `json:"update_id,omitempty"`
}

// ConfigStatus is returned by GET /api/config/status.
type ConfigStatus struct {
	UpdateID string `json:"update_id"`
	Updating bool   `json:"updating"`
	// Success is nil while the update is still running.
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Succeeded reports whether the update finished successfully.
func (s ConfigStatus) Succeeded() bool {
	return !s.Updating && s.Success != nil && *s.Success
}

// ServerConfig is the raw agent configuration document (mcpServers etc.).
type ServerConfig map[string]json.RawMessage

// errorBody is the FastAPI error payload.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}
