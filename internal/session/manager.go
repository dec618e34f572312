// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/render"
)

// ErrEmptyQuery is returned by Submit for blank input.
var ErrEmptyQuery = errors.New("empty query")

// =============================================================================
// CHAT WIDGET CONTEXT
// =============================================================================

// ChatWidgetContext is the per-widget chat state the manager owns.
type ChatWidgetContext struct {
	ConversationID string
	HistoryTurns   int
	Streaming      bool
}

// ConversationCreator is implemented by transports that can create an empty
// conversation up front. *api.Client implements it.
type ConversationCreator interface {
	CreateConversation(ctx context.Context) (*api.Conversation, error)
}

// Archiver records finished sessions. *storage.Archive implements it.
type Archiver interface {
	Record(ctx context.Context, t Transcript) error
}

// Transcript is what gets archived for one finished session.
type Transcript struct {
	SessionID      string
	ConversationID string
	Query          string
	Result         Result
	FinishedAt     time.Time
}

// =============================================================================
// MANAGER CONFIGURATION
// =============================================================================

// Config holds configuration for the session manager.
type Config struct {
	// HistoryTurns sent with each request (default: 5)
	HistoryTurns int

	// Streaming selects /api/stream over /api/query (default: true)
	Streaming bool

	// BlinkInterval is the cursor period (default: 500ms)
	BlinkInterval time.Duration

	// ConversationID to resume, empty for a fresh one.
	ConversationID string
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		HistoryTurns:  5,
		Streaming:     true,
		BlinkInterval: render.DefaultBlinkInterval,
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager guarantees at most one live session per chat widget.
//
// Starting a session cancels the previous one and waits for it to unwind
// before the next request goes out, so a late event from an old session can
// never land in the new message view.
type Manager struct {
	ctx  context.Context
	tr   Transport
	sink RenderSink

	// startMu serializes StartNew and OnConversationSwitch. It is held while
	// waiting for a session to unwind; mu never is.
	startMu sync.Mutex

	mu        sync.Mutex
	widget    ChatWidgetContext
	active    *StreamSession
	blink     time.Duration
	presenter *render.Presenter
	archive   Archiver

	// Callbacks
	onDiagnostic   func(Diagnostic)
	onConversation func(id string)
	onComplete     func(Result)
}

// NewManager creates a manager. ctx is the parent of every session context
// and carries the logger.
func NewManager(ctx context.Context, tr Transport, sink RenderSink, cfg Config) *Manager {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 5
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Manager{
		ctx:  ctx,
		tr:   tr,
		sink: sink,
		widget: ChatWidgetContext{
			ConversationID: cfg.ConversationID,
			HistoryTurns:   cfg.HistoryTurns,
			Streaming:      cfg.Streaming,
		},
		blink: cfg.BlinkInterval,
	}
}

// SetPresenter sets the renderer used by new sessions.
func (m *Manager) SetPresenter(p *render.Presenter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presenter = p
}

// SetArchive enables recording of finished sessions.
func (m *Manager) SetArchive(a Archiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = a
}

// SetDiagnosticCallback sets the function called for each anomaly.
func (m *Manager) SetDiagnosticCallback(fn func(Diagnostic)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDiagnostic = fn
}

// SetConversationCallback sets the function called when the active
// conversation changes because the server named a new one.
func (m *Manager) SetConversationCallback(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConversation = fn
}

// SetCompleteCallback sets the function called when a session ends.
// It runs on the session goroutine and must not call StartNew, Cancel or
// OnConversationSwitch synchronously.
func (m *Manager) SetCompleteCallback(fn func(Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// Widget returns a copy of the chat widget context.
func (m *Manager) Widget() ChatWidgetContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.widget
}

// SetHistoryTurns changes the history sent with later requests.
func (m *Manager) SetHistoryTurns(n int) {
	if n < 0 {
		n = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widget.HistoryTurns = n
}

// SetStreaming toggles between streaming and single-shot requests.
func (m *Manager) SetStreaming(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widget.Streaming = on
}

// Active returns the current session, or nil.
func (m *Manager) Active() *StreamSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// Submit sends user input: it appends the user message and starts a session.
// When no conversation is selected and the transport can create one, a new
// conversation is created first.
func (m *Manager) Submit(query string) (*StreamSession, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	m.ensureConversation()
	m.sink.AppendMessage(KindUser, query)

	m.mu.Lock()
	turns := m.widget.HistoryTurns
	m.mu.Unlock()
	return m.StartNew(query, turns), nil
}

// StartNew cancels the active session, waits for it to unwind, then starts a
// new one. It returns the running session.
func (m *Manager) StartNew(query string, historyTurns int) *StreamSession {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.stopActive()

	m.mu.Lock()
	req := api.QueryRequest{
		Query:          query,
		ConversationID: m.widget.ConversationID,
		HistoryTurns:   historyTurns,
	}
	opts := Options{
		Streaming:      m.widget.Streaming,
		BlinkInterval:  m.blink,
		Presenter:      m.presenter,
		OnDiagnostic:   m.onDiagnostic,
		OnConversation: m.adoptConversation,
		OnComplete:     m.sessionComplete,
	}
	s := NewStreamSession(m.tr, m.sink, req, opts)
	m.active = s
	m.mu.Unlock()

	s.Start(m.ctx)
	return s
}

// OnConversationSwitch cancels the active session, waits for it to unwind,
// and selects conversation id. An empty id starts a fresh conversation.
func (m *Manager) OnConversationSwitch(id string) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.stopActive()

	m.mu.Lock()
	m.widget.ConversationID = id
	m.mu.Unlock()
}

// Cancel aborts the active session and waits for it to unwind.
// It reports whether a live session was cancelled.
func (m *Manager) Cancel() bool {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	return m.stopActive()
}

// Wait blocks until the active session (if any) ends.
func (m *Manager) Wait() (Result, bool) {
	s := m.Active()
	if s == nil {
		return Result{}, false
	}
	return s.Wait(), true
}

// Close cancels any live session. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.Cancel()
}

// stopActive cancels the active session and waits for it. Caller holds startMu.
func (m *Manager) stopActive() bool {
	m.mu.Lock()
	old := m.active
	m.mu.Unlock()
	if old == nil {
		return false
	}

	live := !old.State().Terminal()
	old.Cancel()
	<-old.Done()
	return live
}

func (m *Manager) ensureConversation() {
	m.mu.Lock()
	hasConversation := m.widget.ConversationID != ""
	m.mu.Unlock()
	if hasConversation {
		return
	}
	creator, ok := m.tr.(ConversationCreator)
	if !ok {
		return
	}

	conv, err := creator.CreateConversation(m.ctx)
	if err != nil {
		// The server creates one on demand and announces it.
		log.Warn(m.ctx, log.KV{K: "msg", V: "create conversation failed"}, log.KV{K: "err", V: err.Error()})
		return
	}
	m.adoptConversation(conv.ID)
}

func (m *Manager) adoptConversation(id string) {
	m.mu.Lock()
	if m.widget.ConversationID == id {
		m.mu.Unlock()
		return
	}
	m.widget.ConversationID = id
	fn := m.onConversation
	m.mu.Unlock()

	log.Info(m.ctx, log.KV{K: "msg", V: "conversation selected"}, log.KV{K: "conversation", V: id})
	if fn != nil {
		fn(id)
	}
}

func (m *Manager) sessionComplete(s *StreamSession, res Result) {
	m.mu.Lock()
	archive := m.archive
	fn := m.onComplete
	m.mu.Unlock()

	if archive != nil && res.State != StateCancelled {
		t := Transcript{
			SessionID:      s.ID(),
			ConversationID: res.ConversationID,
			Query:          s.Request().Query,
			Result:         res,
			FinishedAt:     time.Now(),
		}
		if err := archive.Record(m.ctx, t); err != nil {
			log.Error(m.ctx, err, log.KV{K: "msg", V: "archive session failed"})
		}
	}
	if fn != nil {
		fn(res)
	}
}
