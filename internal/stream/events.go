// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Kind identifies the wire type of an event.
type Kind string

const (
	KindStart      Kind = "start"
	KindContent    Kind = "content"
	KindFinal      Kind = "final"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindError      Kind = "error"
	KindEnd        Kind = "end"
)

// Event is one decoded record of the stream.
type Event interface {
	Kind() Kind
}

// Start announces the conversation the turn is recorded under.
type Start struct {
	ConversationID string
}

// ContentDelta is an incremental fragment of assistant text.
type ContentDelta struct {
	Text string
}

// FinalContent is the authoritative complete answer. It replaces all deltas.
type FinalContent struct {
	Text string
}

// ToolCall announces a tool invocation by the agent.
type ToolCall struct {
	ToolName   string
	Args       json.RawMessage
	ToolCallID string
}

// ToolResult carries the result of a previously announced tool invocation.
type ToolResult struct {
	ToolCallID string
	Result     json.RawMessage
}

// ErrorEvent is a terminal server-side failure reported in-band.
type ErrorEvent struct {
	Message string
}

// End marks the server's end of the turn.
type End struct{}

func (Start) Kind() Kind        { return KindStart }
func (ContentDelta) Kind() Kind { return KindContent }
func (FinalContent) Kind() Kind { return KindFinal }
func (ToolCall) Kind() Kind     { return KindToolCall }
func (ToolResult) Kind() Kind   { return KindToolResult }
func (ErrorEvent) Kind() Kind   { return KindError }
func (End) Kind() Kind          { return KindEnd }

// =============================================================================
// WIRE FORMAT
// =============================================================================

// frame mirrors a single line on the wire. The server names the error text
// "error"; some proxies rewrite it to "message".
type frame struct {
	Type           Kind            `json:"type"`
	Content        *string         `json:"content,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	Args           json.RawMessage `json:"args,omitempty"`
	ToolCallID     string          `json:"tool_call_id,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Message        string          `json:"message,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

var (
	// ErrUnknownType is returned for a well-formed record with an unrecognized type.
	ErrUnknownType = errors.New("unknown event type")

	// ErrMissingToolCallID is returned for tool records without an id.
	ErrMissingToolCallID = errors.New("missing tool_call_id")
)

// parseFrame decodes one complete line into an Event.
func parseFrame(line []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, err
	}

	switch f.Type {
	case KindStart:
		return Start{ConversationID: f.ConversationID}, nil
	case KindContent:
		return ContentDelta{Text: deref(f.Content)}, nil
	case KindFinal:
		return FinalContent{Text: deref(f.Content)}, nil
	case KindToolCall:
		if f.ToolCallID == "" {
			return nil, ErrMissingToolCallID
		}
		return ToolCall{ToolName: f.ToolName, Args: f.Args, ToolCallID: f.ToolCallID}, nil
	case KindToolResult:
		if f.ToolCallID == "" {
			return nil, ErrMissingToolCallID
		}
		return ToolResult{ToolCallID: f.ToolCallID, Result: f.Result}, nil
	case KindError:
		msg := f.Error
		if msg == "" {
			msg = f.Message
		}
		return ErrorEvent{Message: msg}, nil
	case KindEnd:
		return End{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
