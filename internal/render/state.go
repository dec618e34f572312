// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrDeltaAfterFinal is returned when a delta arrives after the final answer.
	ErrDeltaAfterFinal = errors.New("content delta after final content")

	// ErrFinalAlreadySet is returned for a second final answer.
	ErrFinalAlreadySet = errors.New("final content already set")
)

// =============================================================================
// STREAM RENDER STATE
// =============================================================================

// State accumulates the assistant text of one streaming answer.
//
// The buffer only grows under deltas and is replaced wholesale by the final
// answer, after which it is frozen. Safe for concurrent use.
type State struct {
	mu            sync.Mutex
	buffer        strings.Builder
	hasFinal      bool
	cursorVisible bool
	blinker       *Blinker
}

// NewState creates an empty state whose cursor blinks every interval.
// onCursor, when set, observes every visibility change.
func NewState(interval time.Duration, onCursor func(visible bool)) *State {
	s := &State{}
	s.blinker = NewBlinker(interval, func(visible bool) {
		s.mu.Lock()
		s.cursorVisible = visible
		s.mu.Unlock()
		if onCursor != nil {
			onCursor(visible)
		}
	})
	return s
}

// StartCursor begins blinking.
func (s *State) StartCursor() {
	s.blinker.Start()
}

// StopCursor stops blinking and hides the cursor. It returns once no further
// cursor callback can run.
func (s *State) StopCursor() {
	s.blinker.Stop()
	s.mu.Lock()
	s.cursorVisible = false
	s.mu.Unlock()
}

// AppendDelta appends text and returns the whole buffer. It resets the
// cursor period so the cursor stays solid while text is flowing.
func (s *State) AppendDelta(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasFinal {
		return s.buffer.String(), ErrDeltaAfterFinal
	}
	s.buffer.WriteString(text)
	s.blinker.Reset()
	return s.buffer.String(), nil
}

// SetFinal replaces the buffer with the authoritative answer and latches.
// A second call changes nothing and returns ErrFinalAlreadySet.
func (s *State) SetFinal(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasFinal {
		return s.buffer.String(), ErrFinalAlreadySet
	}
	s.buffer.Reset()
	s.buffer.WriteString(text)
	s.hasFinal = true
	return text, nil
}

// Buffer returns the current text.
func (s *State) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

// HasFinal reports whether the final answer has been applied.
func (s *State) HasFinal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasFinal
}

// CursorVisible reports the cursor's last visibility.
func (s *State) CursorVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorVisible
}

// CursorRunning reports whether the cursor timer is active.
func (s *State) CursorRunning() bool {
	return s.blinker.Running()
}
