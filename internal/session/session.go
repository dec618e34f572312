// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/render"
	"github.com/xhjxhj001/mcp-chat-server/internal/stream"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
)

// Transport is the server surface a session needs. *api.Client implements it.
type Transport interface {
	OpenStream(ctx context.Context, req api.QueryRequest) (io.ReadCloser, error)
	Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error)
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// DiagnosticKind classifies recoverable anomalies seen during a session.
type DiagnosticKind int

const (
	DiagDecode DiagnosticKind = iota
	DiagUnknownToolResult
	DiagSecondFinal
	DiagDeltaAfterFinal
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagDecode:
		return "decode"
	case DiagUnknownToolResult:
		return "unknown_tool_result"
	case DiagSecondFinal:
		return "second_final"
	case DiagDeltaAfterFinal:
		return "delta_after_final"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal anomaly. It is logged and never shown to the user.
type Diagnostic struct {
	SessionID  string
	Kind       DiagnosticKind
	ToolCallID string
	Err        error
}

// =============================================================================
// OPTIONS / RESULT
// =============================================================================

// Options configures a StreamSession.
type Options struct {
	// Streaming selects /api/stream (true) or /api/query (false).
	Streaming bool

	// BlinkInterval is the cursor period (default: 500ms)
	BlinkInterval time.Duration

	// Presenter renders text for the sink (default: plain markdown).
	Presenter *render.Presenter

	// OnDiagnostic observes anomalies.
	OnDiagnostic func(Diagnostic)

	// OnConversation is called when the server names the conversation.
	OnConversation func(id string)

	// OnComplete runs on the session goroutine before Wait returns.
	OnComplete func(*StreamSession, Result)
}

// Result is the terminal outcome of a session.
type Result struct {
	State          State
	Content        string // answer text, or the failure text shown
	ConversationID string
	ToolCalls      []toolcard.Entry
	Err            error
	Duration       time.Duration
}

// =============================================================================
// STREAM SESSION
// =============================================================================

// StreamSession is one request/response cycle.
type StreamSession struct {
	id      string
	req     api.QueryRequest
	tr      Transport
	sink    RenderSink
	opts    Options
	tools   *toolcard.Registry
	display *render.State

	mu      sync.Mutex
	state   State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	result  Result

	// owned by the session goroutine
	handle         MessageHandle
	conversationID string
	cursorOn       bool
}

// NewStreamSession creates an idle session.
func NewStreamSession(tr Transport, sink RenderSink, req api.QueryRequest, opts Options) *StreamSession {
	if opts.Presenter == nil {
		opts.Presenter = render.NewPresenter(nil, nil)
	}
	if sink == nil {
		sink = NopSink{}
	}
	s := &StreamSession{
		id:             uuid.New().String(),
		req:            req,
		tr:             tr,
		sink:           sink,
		opts:           opts,
		tools:          toolcard.NewRegistry(),
		done:           make(chan struct{}),
		conversationID: req.ConversationID,
	}
	s.display = render.NewState(opts.BlinkInterval, func(visible bool) {
		s.sink.SetCursor(s.handle, visible)
	})
	return s
}

// ID returns the session's unique id.
func (s *StreamSession) ID() string { return s.id }

// Request returns the request the session sends.
func (s *StreamSession) Request() api.QueryRequest { return s.req }

// State returns the current state.
func (s *StreamSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has fully unwound.
func (s *StreamSession) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns its result.
func (s *StreamSession) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Start runs the session on a new goroutine.
func (s *StreamSession) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Cancel aborts the session. It does not wait; use Wait for that.
// Cancelling a session that was never started ends it immediately.
func (s *StreamSession) Cancel() {
	s.mu.Lock()
	if !s.started {
		s.started = true
		s.state = StateCancelled
		s.result = Result{State: StateCancelled, Err: context.Canceled, ConversationID: s.conversationID}
		close(s.done)
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the session on the calling goroutine and returns its result.
// A second call waits for the first.
func (s *StreamSession) Run(parent context.Context) Result {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.Wait()
	}
	s.started = true
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	ctx = log.With(ctx, log.KV{K: "session", V: s.id})
	start := time.Now()

	var res Result
	if s.opts.Streaming {
		res = s.runStream(ctx)
	} else {
		res = s.runQuery(ctx)
	}
	s.cleanup()

	res.ConversationID = s.conversationID
	res.ToolCalls = s.tools.Entries()
	res.Duration = time.Since(start)
	s.tools.Clear()

	s.logResult(ctx, res)
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(s, res)
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	close(s.done)
	return res
}

// =============================================================================
// STREAMING PATH
// =============================================================================

func (s *StreamSession) runStream(ctx context.Context) Result {
	if !s.transition(StateRequesting) {
		return s.cancelled()
	}
	s.handle = s.sink.AppendMessage(KindAssistant, "")
	s.sink.SetTypingIndicator(s.handle, true)

	body, err := s.tr.OpenStream(ctx, s.req)
	s.sink.SetTypingIndicator(s.handle, false)
	if err != nil {
		return s.fail(ctx, err)
	}
	defer body.Close()

	// Unblock a pending body read as soon as the session is cancelled.
	stopClose := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stopClose()

	if !s.transition(StateStreaming) {
		return s.cancelled()
	}
	s.cursorOn = true
	s.display.StartCursor()

	reader := stream.NewReader(body)
	reader.OnAnomaly(func(derr *stream.DecodeError) {
		s.diagnose(ctx, Diagnostic{Kind: DiagDecode, Err: derr})
	})

	for {
		ev, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(ctx, api.ClassifyTransportError(ctx, err))
		}
		// Events already decoded from the last chunk are dropped once cancelled.
		if ctx.Err() != nil {
			return s.cancelled()
		}
		if res, done := s.dispatch(ctx, ev); done {
			return res
		}
	}

	if ctx.Err() != nil {
		return s.cancelled()
	}

	// End of stream without a final answer: show what arrived.
	if !s.display.HasFinal() {
		s.stopCursor()
		s.sink.UpdateMessage(s.handle, s.opts.Presenter.Present(s.display.Buffer(), false), false)
	}
	s.transition(StateCompleted)
	return Result{State: StateCompleted, Content: s.display.Buffer()}
}

// dispatch applies one event. It returns done=true when the session ends.
func (s *StreamSession) dispatch(ctx context.Context, ev stream.Event) (Result, bool) {
	switch e := ev.(type) {
	case stream.Start:
		if e.ConversationID != "" && e.ConversationID != s.conversationID {
			s.conversationID = e.ConversationID
			if s.opts.OnConversation != nil {
				s.opts.OnConversation(e.ConversationID)
			}
		}

	case stream.ContentDelta:
		if e.Text == "" {
			break
		}
		buf, err := s.display.AppendDelta(e.Text)
		if err != nil {
			s.diagnose(ctx, Diagnostic{Kind: DiagDeltaAfterFinal, Err: err})
			break
		}
		s.sink.UpdateMessage(s.handle, s.opts.Presenter.Present(buf, true), true)

	case stream.FinalContent:
		if e.Text == "" {
			break
		}
		text, err := s.display.SetFinal(e.Text)
		if err != nil {
			s.diagnose(ctx, Diagnostic{Kind: DiagSecondFinal, Err: err})
			break
		}
		s.stopCursor()
		s.sink.UpdateMessage(s.handle, s.opts.Presenter.Present(text, false), false)

	case stream.ToolCall:
		entry, created := s.tools.GetOrCreate(e.ToolCallID, e.ToolName, e.Args)
		if created {
			s.sink.CreateToolCard(s.handle, entry)
		}

	case stream.ToolResult:
		entry, ok := s.tools.UpdateResult(e.ToolCallID, e.Result)
		if !ok {
			s.diagnose(ctx, Diagnostic{Kind: DiagUnknownToolResult, ToolCallID: e.ToolCallID})
			break
		}
		s.sink.UpdateToolCard(s.handle, entry)

	case stream.ErrorEvent:
		return s.fail(ctx, &ServerError{Message: e.Message}), true

	case stream.End:
		log.Debug(ctx, log.KV{K: "msg", V: "end of turn"})
	}
	return Result{}, false
}

// =============================================================================
// NON-STREAMING PATH
// =============================================================================

func (s *StreamSession) runQuery(ctx context.Context) Result {
	if !s.transition(StateRequesting) {
		return s.cancelled()
	}
	s.handle = s.sink.AppendMessage(KindAssistant, "")
	s.sink.SetTypingIndicator(s.handle, true)

	resp, err := s.tr.Query(ctx, s.req)
	s.sink.SetTypingIndicator(s.handle, false)
	if err != nil {
		return s.fail(ctx, err)
	}
	if ctx.Err() != nil {
		return s.cancelled()
	}

	if resp.ConversationID != "" && resp.ConversationID != s.conversationID {
		s.conversationID = resp.ConversationID
		if s.opts.OnConversation != nil {
			s.opts.OnConversation(resp.ConversationID)
		}
	}
	// An empty answer does not latch, same as an empty final frame.
	if resp.Answer != "" {
		if _, err := s.display.SetFinal(resp.Answer); err != nil {
			s.diagnose(ctx, Diagnostic{Kind: DiagSecondFinal, Err: err})
		}
	}
	text := s.display.Buffer()
	s.sink.UpdateMessage(s.handle, s.opts.Presenter.Present(text, false), false)
	s.transition(StateCompleted)
	return Result{State: StateCompleted, Content: text}
}

// =============================================================================
// HELPERS
// =============================================================================

// transition moves to next if the edge is legal. It fails when the session
// was cancelled concurrently.
func (s *StreamSession) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, next) {
		return false
	}
	s.state = next
	return true
}

func (s *StreamSession) cancelled() Result {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = StateCancelled
	}
	s.mu.Unlock()
	return Result{State: StateCancelled, Content: s.display.Buffer(), Err: context.Canceled}
}

// fail renders err into the assistant message and ends the session.
// Cancellation is routed to cancelled() and renders nothing.
func (s *StreamSession) fail(ctx context.Context, err error) Result {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return s.cancelled()
	}
	s.stopCursor()
	msg := FailureMessage(err)
	s.sink.UpdateMessage(s.handle, s.opts.Presenter.Present(msg, false), false)
	s.transition(StateFailed)
	return Result{State: StateFailed, Content: msg, Err: err}
}

func (s *StreamSession) stopCursor() {
	if !s.cursorOn {
		return
	}
	s.cursorOn = false
	s.display.StopCursor()
	s.sink.RemoveCursor(s.handle)
}

// cleanup runs on every exit path.
func (s *StreamSession) cleanup() {
	s.stopCursor()
	s.display.StopCursor()
}

func (s *StreamSession) diagnose(ctx context.Context, d Diagnostic) {
	d.SessionID = s.id
	fields := []log.Fielder{
		log.KV{K: "msg", V: "stream anomaly"},
		log.KV{K: "kind", V: d.Kind.String()},
	}
	if d.ToolCallID != "" {
		fields = append(fields, log.KV{K: "tool_call_id", V: d.ToolCallID})
	}
	if d.Err != nil {
		fields = append(fields, log.KV{K: "err", V: d.Err.Error()})
	}
	log.Warn(ctx, fields...)
	if s.opts.OnDiagnostic != nil {
		s.opts.OnDiagnostic(d)
	}
}

func (s *StreamSession) logResult(ctx context.Context, res Result) {
	fields := []log.Fielder{
		log.KV{K: "msg", V: "session finished"},
		log.KV{K: "state", V: res.State.String()},
		log.KV{K: "conversation", V: res.ConversationID},
		log.KV{K: "tool_calls", V: len(res.ToolCalls)},
		log.KV{K: "duration_ms", V: res.Duration.Milliseconds()},
	}
	switch res.State {
	case StateFailed:
		log.Error(ctx, res.Err, fields...)
	case StateCancelled:
		log.Debug(ctx, fields...)
	default:
		log.Info(ctx, fields...)
	}
}
