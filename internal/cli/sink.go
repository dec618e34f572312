// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
	"github.com/xhjxhj001/mcp-chat-server/internal/util"
)

const (
	cursorGlyph     = "▌"
	typingText      = "thinking…"
	maxCardLines    = 16
	cardLineOverrun = "… %d more lines"
)

// SinkOptions configures a TerminalSink.
type SinkOptions struct {
	// TTY enables in-place redraws, the cursor and the typing indicator.
	// Without it output is append-only.
	TTY bool
	// Color enables JSON highlighting in tool cards.
	Color bool
	// ShowToolCards prints tool call cards above the answer.
	ShowToolCards bool
	// Width returns the terminal width used to count wrapped rows.
	Width func() int
}

// TerminalSink renders a session to a terminal or pipe.
//
// Everything printed for the live assistant message (its tool cards, then
// its text) is one region. Growth that extends the region is appended;
// anything else erases the region and prints it again. Piped output never
// erases: a diverging update is printed on a fresh line once final.
type TerminalSink struct {
	mu   sync.Mutex
	w    io.Writer
	out  *termenv.Output
	opts SinkOptions

	next session.MessageHandle
	live *liveMessage
}

type liveMessage struct {
	handle  session.MessageHandle
	cardIDs []string
	cards   map[string]string
	body    string

	printed     string
	typing      bool
	cursorShown bool
}

var _ session.RenderSink = (*TerminalSink)(nil)

// NewTerminalSink creates a sink writing to w.
func NewTerminalSink(w io.Writer, opts SinkOptions) *TerminalSink {
	if opts.Width == nil {
		opts.Width = GetTerminalWidth
	}
	return &TerminalSink{
		w:    w,
		out:  termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii)),
		opts: opts,
	}
}

// AppendMessage implements session.RenderSink. User messages were typed by
// the user and are not echoed; system messages print at once.
func (t *TerminalSink) AppendMessage(kind session.MessageKind, content string) session.MessageHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next

	switch kind {
	case session.KindAssistant:
		t.closeLive()
		t.live = &liveMessage{handle: h, cards: make(map[string]string)}
		if content != "" {
			t.live.body = content
			t.redraw(true)
		}
	case session.KindSystem:
		t.closeLive()
		fmt.Fprintln(t.w, DimStyle.Render(content))
	}
	return h
}

// UpdateMessage implements session.RenderSink.
func (t *TerminalSink) UpdateMessage(h session.MessageHandle, content string, streaming bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.message(h)
	if m == nil {
		return
	}
	m.body = content
	t.redraw(!streaming)
}

// SetTypingIndicator implements session.RenderSink.
func (t *TerminalSink) SetTypingIndicator(h session.MessageHandle, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.message(h)
	if m == nil || !t.opts.TTY || m.printed != "" || m.typing == on {
		return
	}
	m.typing = on
	if on {
		io.WriteString(t.w, DimStyle.Render(typingText))
		return
	}
	io.WriteString(t.w, "\r")
	t.out.ClearLine()
}

// SetCursor implements session.RenderSink.
func (t *TerminalSink) SetCursor(h session.MessageHandle, visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.message(h)
	if m == nil || !t.opts.TTY {
		return
	}
	if visible {
		t.showCursor(m)
	} else {
		t.hideCursor(m)
	}
}

// RemoveCursor implements session.RenderSink.
func (t *TerminalSink) RemoveCursor(h session.MessageHandle) {
	t.SetCursor(h, false)
}

// CreateToolCard implements session.RenderSink.
func (t *TerminalSink) CreateToolCard(h session.MessageHandle, e toolcard.Entry) {
	t.setCard(h, e)
}

// UpdateToolCard implements session.RenderSink.
func (t *TerminalSink) UpdateToolCard(h session.MessageHandle, e toolcard.Entry) {
	t.setCard(h, e)
}

// Finish ends the live message with a newline so the next prompt starts on
// its own line. Safe to call more than once.
func (t *TerminalSink) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLive()
}

func (t *TerminalSink) setCard(h session.MessageHandle, e toolcard.Entry) {
	if !t.opts.ShowToolCards {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.message(h)
	if m == nil {
		return
	}
	if _, ok := m.cards[e.ID]; !ok {
		m.cardIDs = append(m.cardIDs, e.ID)
	}
	m.cards[e.ID] = cardText(e, t.opts.Color)
	t.redraw(false)
}

// =============================================================================
// REGION DRAWING
// =============================================================================

func (t *TerminalSink) message(h session.MessageHandle) *liveMessage {
	if t.live == nil || t.live.handle != h {
		return nil
	}
	return t.live
}

func (m *liveMessage) region() string {
	parts := make([]string, 0, len(m.cardIDs)+1)
	for _, id := range m.cardIDs {
		parts = append(parts, m.cards[id])
	}
	if m.body != "" {
		parts = append(parts, m.body)
	}
	return strings.Join(parts, "\n")
}

// redraw brings the screen in line with the live message. final marks the
// last update of the text.
func (t *TerminalSink) redraw(final bool) {
	m := t.live
	next := m.region()
	if next == m.printed {
		return
	}

	cursor := m.cursorShown
	t.hideCursor(m)
	if m.typing {
		io.WriteString(t.w, "\r")
		t.out.ClearLine()
		m.typing = false
	}

	switch {
	case strings.HasPrefix(next, m.printed):
		io.WriteString(t.w, next[len(m.printed):])
	case t.opts.TTY:
		t.erase(m.printed)
		io.WriteString(t.w, next)
	case final:
		io.WriteString(t.w, "\n"+next)
	default:
		// Piped and diverged mid-stream: wait for the final text.
		return
	}
	m.printed = next

	if cursor && !final {
		t.showCursor(m)
	}
}

// erase clears the rows occupied by s, leaving the cursor at column 0 of
// its first row.
func (t *TerminalSink) erase(s string) {
	if s == "" {
		return
	}
	t.out.ClearLines(rowCount(s, t.opts.Width()) - 1)
	io.WriteString(t.w, "\r")
}

func (t *TerminalSink) showCursor(m *liveMessage) {
	if m.cursorShown || !t.opts.TTY {
		return
	}
	io.WriteString(t.w, cursorGlyph)
	m.cursorShown = true
}

func (t *TerminalSink) hideCursor(m *liveMessage) {
	if !m.cursorShown {
		return
	}
	io.WriteString(t.w, "\b \b")
	m.cursorShown = false
}

func (t *TerminalSink) closeLive() {
	m := t.live
	if m == nil {
		return
	}
	t.hideCursor(m)
	if m.typing {
		io.WriteString(t.w, "\r")
		t.out.ClearLine()
	}
	if m.printed != "" {
		io.WriteString(t.w, "\n")
	}
	t.live = nil
}

// rowCount returns how many terminal rows s occupies at the given width.
func rowCount(s string, width int) int {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	rows := 0
	for _, line := range strings.Split(s, "\n") {
		w := util.StringWidth(ansi.Strip(line))
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

// cardText renders a tool card, capping long results.
func cardText(e toolcard.Entry, color bool) string {
	text := toolcard.Render(e, color)
	lines := strings.Split(text, "\n")
	if len(lines) <= maxCardLines {
		return text
	}
	if e.HasResult {
		if formatted, _ := toolcard.FormatPayload(e.Result); !toolcard.IsLongResult(formatted) {
			return text
		}
	}
	more := len(lines) - maxCardLines
	return strings.Join(lines[:maxCardLines], "\n") + "\n    " + DimStyle.Render(fmt.Sprintf(cardLineOverrun, more))
}
