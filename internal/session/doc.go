// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs chat request/response cycles against the server.
//
// A StreamSession owns one cycle: it opens /api/stream, decodes the event
// stream, keeps the tool-card registry and render state, and drives a
// RenderSink. A Manager guarantees that a chat widget has at most one live
// session, cancelling and fully unwinding the previous one before the next
// request is sent.
//
// # Key Types
//
//   - StreamSession: One request/response cycle with its state machine
//   - Manager: Per-widget owner of the active session and ChatWidgetContext
//   - RenderSink: Display capability the session renders into
//   - DialogSink: Confirm/alert capability for destructive commands
//   - Result: Terminal outcome of a session
//
// # State Machine
//
//	Idle -> Requesting -> Streaming -> Completed
//	                   \           \-> Cancelled
//	                    \           \-> Failed
//	                     \-> Cancelled | Failed
//
// # Usage
//
//	mgr := session.NewManager(ctx, client, sink, session.DefaultConfig())
//	s, err := mgr.Submit("What is in /tmp?")
//	if err != nil {
//	    return err
//	}
//	res := s.Wait()
//
// Cancellation is silent: a cancelled session renders no error, but its
// cursor and typing indicator are always cleaned up.
package session
