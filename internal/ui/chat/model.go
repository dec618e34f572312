// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
	"github.com/xhjxhj001/mcp-chat-server/internal/ui/styles"
)

// Controller runs sessions for the view. *session.Manager implements it.
type Controller interface {
	Submit(query string) (*session.StreamSession, error)
	Active() *session.StreamSession
	Cancel() bool
	OnConversationSwitch(id string)
	Widget() session.ChatWidgetContext
}

// Options configure the view.
type Options struct {
	// Server is shown in the header.
	Server string

	// ShowToolCards draws tool cards under assistant messages.
	ShowToolCards bool
}

// entry is one transcript message.
type entry struct {
	handle    session.MessageHandle
	kind      session.MessageKind
	content   string
	streaming bool
	typing    bool
	cursor    bool
	cards     []toolcard.Entry
}

func (e *entry) setCard(c toolcard.Entry) {
	for i := range e.cards {
		if e.cards[i].ID == c.ID {
			e.cards[i] = c
			return
		}
	}
	e.cards = append(e.cards, c)
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat view.
type Model struct {
	theme *styles.Theme
	keys  KeyMap
	ctl   Controller

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	entries  []*entry
	byHandle map[session.MessageHandle]*entry

	server       string
	conversation string
	showCards    bool

	busy   bool
	status string
	err    error

	width  int
	height int
	ready  bool
}

// New creates the chat view.
func New(theme *styles.Theme, ctl Controller, opts Options) Model {
	if theme == nil {
		theme = styles.NewTheme()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask something..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	return Model{
		theme:        theme,
		keys:         DefaultKeyMap(),
		ctl:          ctl,
		viewport:     viewport.New(80, 20),
		input:        ti,
		spinner:      sp,
		byHandle:     make(map[session.MessageHandle]*entry),
		server:       opts.Server,
		conversation: ctl.Widget().ConversationID,
		showCards:    opts.ShowToolCards,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Busy reports whether an answer is being produced.
func (m Model) Busy() bool { return m.busy }

// ConversationID returns the conversation shown in the header.
func (m Model) ConversationID() string { return m.conversation }

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case appendMsg:
		e := &entry{handle: msg.handle, kind: msg.kind, content: msg.content}
		m.entries = append(m.entries, e)
		m.byHandle[msg.handle] = e
		m.refresh()
		return m, nil

	case updateMsg:
		if e := m.byHandle[msg.handle]; e != nil {
			e.content = msg.content
			e.streaming = msg.streaming
			m.refresh()
		}
		return m, nil

	case typingMsg:
		if e := m.byHandle[msg.handle]; e != nil {
			e.typing = msg.on
			m.refresh()
		}
		return m, nil

	case cursorMsg:
		if e := m.byHandle[msg.handle]; e != nil {
			e.cursor = msg.visible && !msg.remove
			m.refresh()
		}
		return m, nil

	case cardMsg:
		if e := m.byHandle[msg.handle]; e != nil {
			e.setCard(msg.entry)
			m.refresh()
		}
		return m, nil

	case conversationMsg:
		m.conversation = msg.id
		return m, nil

	case sessionDoneMsg:
		return m.handleSessionDone(msg)

	case cancelledMsg:
		if msg.wasLive {
			m.status = "cancelled"
		}
		return m, nil

	case newConversationMsg:
		m.entries = nil
		m.byHandle = make(map[session.MessageHandle]*entry)
		m.conversation = ""
		m.busy = false
		m.err = nil
		m.status = "new conversation"
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	// header + separator + input + status bar
	const reserved = 4
	m.viewport.Width = max(msg.Width, 1)
	m.viewport.Height = max(msg.Height-reserved, 1)
	m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)

	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if !m.busy {
			return m, nil
		}
		m.status = "cancelling"
		return m, cancelCmd(m.ctl)

	case key.Matches(msg, m.keys.NewConversation):
		m.status = "switching"
		return m, newConversationCmd(m.ctl)

	case key.Matches(msg, m.keys.ToggleCards):
		m.showCards = !m.showCards
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.err = nil
		m.status = ""
		return m, tea.Batch(submitCmd(m.ctl, query), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSessionDone(msg sessionDoneMsg) (tea.Model, tea.Cmd) {
	// A session replaced by a later submit reports here too; the view
	// stays busy until the live one ends.
	if msg.sessionID != "" {
		if live := m.ctl.Active(); live != nil && live.ID() != msg.sessionID {
			return m, nil
		}
	}
	m.busy = false
	switch {
	case errors.Is(msg.err, session.ErrEmptyQuery):
	case msg.err != nil:
		m.err = msg.err
	default:
		res := msg.result
		m.status = res.State.String()
		if res.Duration > 0 {
			m.status += " in " + res.Duration.Round(10*time.Millisecond).String()
		}
		if res.ConversationID != "" {
			m.conversation = res.ConversationID
		}
	}
	m.refresh()
	return m, nil
}

// refresh re-renders the transcript into the viewport, following the tail
// when the view was already at the bottom.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.busy
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// submitCmd runs a query to completion off the Update goroutine.
func submitCmd(ctl Controller, query string) tea.Cmd {
	return func() tea.Msg {
		s, err := ctl.Submit(query)
		if err != nil {
			return sessionDoneMsg{err: err}
		}
		return sessionDoneMsg{sessionID: s.ID(), result: s.Wait()}
	}
}

func cancelCmd(ctl Controller) tea.Cmd {
	return func() tea.Msg {
		return cancelledMsg{wasLive: ctl.Cancel()}
	}
}

func newConversationCmd(ctl Controller) tea.Cmd {
	return func() tea.Msg {
		ctl.OnConversationSwitch("")
		return newConversationMsg{}
	}
}
