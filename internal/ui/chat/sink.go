// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
)

// ProgramSink is a session.RenderSink that forwards every call to a Bubble
// Tea program as a message. Calls never block: messages wait in a queue until
// the pump goroutine started by Attach hands them to the program, one at a
// time and in call order.
type ProgramSink struct {
	next atomic.Int64

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []tea.Msg
	closed  bool
	started bool
	done    chan struct{}
}

// NewProgramSink creates a sink. Messages are buffered until Attach.
func NewProgramSink() *ProgramSink {
	s := &ProgramSink{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Attach starts delivering messages to send, normally tea.Program.Send.
// Only the first call has an effect.
func (s *ProgramSink) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.pump(send)
}

// Close stops accepting messages. When a pump is running, Close waits for
// it to deliver what is already queued.
func (s *ProgramSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.cond.Broadcast()
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// ConversationChanged forwards a conversation id to the program. It matches
// session.Manager.SetConversationCallback.
func (s *ProgramSink) ConversationChanged(id string) {
	s.enqueue(conversationMsg{id: id})
}

func (s *ProgramSink) enqueue(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, msg)
	s.cond.Signal()
}

func (s *ProgramSink) pump(send func(tea.Msg)) {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		msg := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		send(msg)
	}
}

// =============================================================================
// RENDER SINK
// =============================================================================

func (s *ProgramSink) AppendMessage(kind session.MessageKind, content string) session.MessageHandle {
	h := session.MessageHandle(s.next.Add(1))
	s.enqueue(appendMsg{handle: h, kind: kind, content: content})
	return h
}

func (s *ProgramSink) UpdateMessage(h session.MessageHandle, content string, streaming bool) {
	s.enqueue(updateMsg{handle: h, content: content, streaming: streaming})
}

func (s *ProgramSink) SetTypingIndicator(h session.MessageHandle, on bool) {
	s.enqueue(typingMsg{handle: h, on: on})
}

func (s *ProgramSink) SetCursor(h session.MessageHandle, visible bool) {
	s.enqueue(cursorMsg{handle: h, visible: visible})
}

func (s *ProgramSink) RemoveCursor(h session.MessageHandle) {
	s.enqueue(cursorMsg{handle: h, remove: true})
}

func (s *ProgramSink) CreateToolCard(h session.MessageHandle, entry toolcard.Entry) {
	s.enqueue(cardMsg{handle: h, entry: entry})
}

func (s *ProgramSink) UpdateToolCard(h session.MessageHandle, entry toolcard.Entry) {
	s.enqueue(cardMsg{handle: h, entry: entry})
}

var _ session.RenderSink = (*ProgramSink)(nil)
