// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeInvalidResponse
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ClientError represents a failure to talk to the chat server.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// StatusError is returned when the server answers with a non-2xx status.
// Detail is taken from a FastAPI-style {"detail": ...} body when present.
type StatusError struct {
	StatusCode int
	Status     string // e.g. "503 Service Unavailable"
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %s: %s", e.Status, e.Detail)
	}
	return "server returned " + e.Status
}

// StatusText returns the reason phrase without the code.
func (e *StatusError) StatusText() string {
	prefix := fmt.Sprintf("%d ", e.StatusCode)
	if len(e.Status) > len(prefix) && e.Status[:len(prefix)] == prefix {
		return e.Status[len(prefix):]
	}
	return e.Status
}

// Sentinel errors for easy checking.
var (
	// ErrUpdateSuperseded means another config update replaced ours while polling.
	ErrUpdateSuperseded = errors.New("config update superseded by another update")

	// ErrPollTimeout means the server never reported completion.
	ErrPollTimeout = errors.New("timed out waiting for config update")
)

// IsConnection reports whether err is a connectivity failure.
func IsConnection(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeConnection
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// AsStatus extracts a StatusError from err.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ClassifyTransportError wraps an error from http.Client.Do or a body read.
// Cancellation of ctx is returned unchanged so callers can treat it silently.
func ClassifyTransportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	if isConnectivity(err) {
		return &ClientError{Type: ErrTypeConnection, Message: "cannot connect to server", Cause: err}
	}
	return &ClientError{Type: ErrTypeUnknown, Message: "request failed", Cause: err}
}

func isConnectivity(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return false
}
