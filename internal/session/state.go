// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// State is the lifecycle position of a StreamSession.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// canTransition encodes the allowed edges of the state machine.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRequesting || to == StateCancelled
	case StateRequesting:
		return to == StateStreaming || to == StateCompleted || to == StateCancelled || to == StateFailed
	case StateStreaming:
		return to == StateCompleted || to == StateCancelled || to == StateFailed
	}
	return false
}
