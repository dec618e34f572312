// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
)

// User-facing failure texts. They are markdown and go through the same
// renderer as answers.
const (
	maintenanceDefault = "The server is restarting or under maintenance, please try again later."
	connectionMessage  = "⚠️ **Cannot connect to server**\n\nThe server may be restarting or under maintenance, please try again later."
	unknownError       = "unknown error"
)

// ServerError is an error event sent in-band by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "server error: " + unknownError
	}
	return "server error: " + e.Message
}

// StatusMessage renders a non-2xx response.
func StatusMessage(se *api.StatusError) string {
	if se.StatusCode == http.StatusServiceUnavailable {
		detail := se.Detail
		if detail == "" {
			detail = maintenanceDefault
		}
		return "⚠️ **Server under maintenance**\n\n" + detail
	}
	detail := se.Detail
	if detail == "" {
		detail = se.StatusText()
	}
	return fmt.Sprintf("⚠️ **Request error (%d)**\n\n%s", se.StatusCode, detail)
}

// ServerErrorMessage renders an in-band error event.
func ServerErrorMessage(msg string) string {
	if msg == "" {
		msg = unknownError
	}
	return "⚠️ **Error**\n\n" + msg
}

// FailureMessage renders any error a session ended with.
// It returns "" for cancellation, which is never shown.
func FailureMessage(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}
	if se, ok := api.AsStatus(err); ok {
		return StatusMessage(se)
	}
	var srv *ServerError
	if errors.As(err, &srv) {
		return ServerErrorMessage(srv.Message)
	}
	if api.IsConnection(err) {
		return connectionMessage
	}
	return "⚠️ **Error while processing the request**\n\n" + err.Error()
}
