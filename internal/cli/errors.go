// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error handling shared by mcpchat commands.
//
// Commands always return errors and never print-and-return-nil. Execute
// prints the error once and maps it to an exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/config"
	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitServerError indicates the server reported a failure
	ExitServerError = 9
	// ExitInterrupted indicates the user cancelled the operation
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "conversations"
	Action  string // e.g. "rm"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports bad arguments or flags.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// errCancelledByUser is returned when a confirmation prompt is declined.
var errCancelledByUser = errors.New("cancelled")

// shownError wraps an error the user has already seen rendered in the
// transcript. Execute does not print it again.
type shownError struct {
	err error
}

func (e *shownError) Error() string { return e.err.Error() }
func (e *shownError) Unwrap() error { return e.err }

// silent reports whether Execute should skip printing err.
func silent(err error) bool {
	var shown *shownError
	return errors.As(err, &shown) || errors.Is(err, context.Canceled) || errors.Is(err, errCancelledByUser)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErrs config.ValidateErrors
	var cfgErr config.ValidationError
	var tty *TTYRequiredError
	var srv *session.ServerError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, errCancelledByUser):
		return ExitInterrupted
	case errors.As(err, &usage), errors.As(err, &tty):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case api.IsConnection(err):
		return ExitNetworkError
	case api.IsTimeout(err), errors.Is(err, api.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case errors.As(err, &srv):
		return ExitServerError
	}

	if se, ok := api.AsStatus(err); ok {
		if se.StatusCode == http.StatusNotFound {
			return ExitNotFoundError
		}
		return ExitServerError
	}
	return ExitGeneralError
}
