// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhjxhj001/mcp-chat-server/internal/api"
	"github.com/xhjxhj001/mcp-chat-server/internal/render"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type sinkMessage struct {
	kind          MessageKind
	content       string
	streaming     bool
	typing        bool
	cursorRemoved bool
	cards         []toolcard.Entry
}

type recordingSink struct {
	mu       sync.Mutex
	next     MessageHandle
	messages map[MessageHandle]*sinkMessage
	ops      []string
	// cursor toggles are counted apart from ops because the blink timer
	// makes their interleaving timing dependent.
	cursorToggles int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{messages: make(map[MessageHandle]*sinkMessage)}
}

func (r *recordingSink) AppendMessage(kind MessageKind, content string) MessageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.messages[r.next] = &sinkMessage{kind: kind, content: content}
	r.ops = append(r.ops, fmt.Sprintf("append:%s:%d", kind, r.next))
	return r.next
}

func (r *recordingSink) UpdateMessage(h MessageHandle, content string, streaming bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[h].content = content
	r.messages[h].streaming = streaming
	r.ops = append(r.ops, fmt.Sprintf("update:%d", h))
}

func (r *recordingSink) SetTypingIndicator(h MessageHandle, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[h].typing = on
	r.ops = append(r.ops, fmt.Sprintf("typing:%d:%v", h, on))
}

func (r *recordingSink) SetCursor(MessageHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursorToggles++
}

func (r *recordingSink) cursorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursorToggles
}

func (r *recordingSink) RemoveCursor(h MessageHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[h].cursorRemoved = true
	r.ops = append(r.ops, fmt.Sprintf("remove-cursor:%d", h))
}

func (r *recordingSink) CreateToolCard(h MessageHandle, e toolcard.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[h].cards = append(r.messages[h].cards, e)
	r.ops = append(r.ops, fmt.Sprintf("card:%d:%s", h, e.ID))
}

func (r *recordingSink) UpdateToolCard(h MessageHandle, e toolcard.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages[h].cards {
		if r.messages[h].cards[i].ID == e.ID {
			r.messages[h].cards[i] = e
		}
	}
	r.ops = append(r.ops, fmt.Sprintf("card-update:%d:%s", h, e.ID))
}

func (r *recordingSink) message(h MessageHandle) sinkMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.messages[h]
}

func (r *recordingSink) opsSnapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type fakeTransport struct {
	mu       sync.Mutex
	open     func(ctx context.Context, req api.QueryRequest) (io.ReadCloser, error)
	query    func(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error)
	requests []api.QueryRequest
}

func (f *fakeTransport) OpenStream(ctx context.Context, req api.QueryRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.open(ctx, req)
}

func (f *fakeTransport) Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.query(ctx, req)
}

func staticStream(lines ...string) *fakeTransport {
	body := strings.Join(lines, "\n") + "\n"
	return &fakeTransport{open: func(context.Context, api.QueryRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func failingOpen(err error) *fakeTransport {
	return &fakeTransport{open: func(context.Context, api.QueryRequest) (io.ReadCloser, error) {
		return nil, err
	}}
}

func plainPresenter() *render.Presenter {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return render.NewPresenter(render.NewInlineFormatter(r), render.PlainRenderer{})
}

func runSession(t *testing.T, tr Transport, opts Options) (Result, *recordingSink, []Diagnostic) {
	t.Helper()
	sink := newRecordingSink()
	var mu sync.Mutex
	var diags []Diagnostic
	opts.Streaming = true
	opts.Presenter = plainPresenter()
	opts.BlinkInterval = time.Millisecond
	opts.OnDiagnostic = func(d Diagnostic) {
		mu.Lock()
		diags = append(diags, d)
		mu.Unlock()
	}
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q", HistoryTurns: 5}, opts)
	res := s.Run(context.Background())
	assert.Equal(t, res.State, s.State())
	return res, sink, diags
}

// =============================================================================
// STREAM SESSION TESTS
// =============================================================================

func TestSessionHappyPath(t *testing.T) {
	tr := staticStream(
		`{"type":"start","conversation_id":"c1"}`,
		`{"type":"content","content":"Hel"}`,
		`{"type":"tool_call","tool_name":"search","args":{"q":"x"},"tool_call_id":"t1"}`,
		`{"type":"tool_result","tool_call_id":"t1","result":"found"}`,
		`{"type":"content","content":"lo"}`,
		`{"type":"final","content":"Hello!"}`,
		`{"type":"end"}`,
	)
	res, sink, diags := runSession(t, tr, Options{})

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "Hello!", res.Content)
	assert.Equal(t, "c1", res.ConversationID)
	assert.NoError(t, res.Err)
	assert.Empty(t, diags)

	msg := sink.message(1)
	assert.Equal(t, KindAssistant, msg.kind)
	assert.Equal(t, "Hello!", msg.content)
	assert.False(t, msg.streaming)
	assert.False(t, msg.typing)
	assert.True(t, msg.cursorRemoved)
	require.Len(t, msg.cards, 1)
	assert.True(t, msg.cards[0].HasResult)
	assert.True(t, msg.cards[0].Expanded)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "search", res.ToolCalls[0].ToolName)

	assert.Equal(t, []string{
		"append:assistant:1",
		"typing:1:true",
		"typing:1:false",
		"update:1",
		"card:1:t1",
		"card-update:1:t1",
		"update:1",
		"remove-cursor:1",
		"update:1",
	}, sink.opsSnapshot())
}

func TestSessionDuplicateToolCall(t *testing.T) {
	tr := staticStream(
		`{"type":"tool_call","tool_name":"search","args":{},"tool_call_id":"t1"}`,
		`{"type":"tool_call","tool_name":"other","args":{},"tool_call_id":"t1"}`,
		`{"type":"final","content":"ok"}`,
	)
	res, sink, _ := runSession(t, tr, Options{})
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "search", res.ToolCalls[0].ToolName)
	assert.Len(t, sink.message(1).cards, 1)
}

func TestSessionOutOfOrderToolResult(t *testing.T) {
	tr := staticStream(
		`{"type":"tool_result","tool_call_id":"t9","result":"early"}`,
		`{"type":"tool_call","tool_name":"read_file","args":{},"tool_call_id":"t9"}`,
		`{"type":"final","content":"ok"}`,
	)
	res, sink, diags := runSession(t, tr, Options{})

	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagUnknownToolResult, diags[0].Kind)
	assert.Equal(t, "t9", diags[0].ToolCallID)

	cards := sink.message(1).cards
	require.Len(t, cards, 1)
	assert.False(t, cards[0].HasResult)
}

func TestSessionSecondFinalIgnored(t *testing.T) {
	tr := staticStream(
		`{"type":"final","content":"first"}`,
		`{"type":"content","content":"late"}`,
		`{"type":"final","content":"second"}`,
	)
	res, sink, diags := runSession(t, tr, Options{})

	assert.Equal(t, "first", res.Content)
	assert.Equal(t, "first", sink.message(1).content)
	require.Len(t, diags, 2)
	assert.Equal(t, DiagDeltaAfterFinal, diags[0].Kind)
	assert.Equal(t, DiagSecondFinal, diags[1].Kind)
}

func TestSessionMalformedLineContinues(t *testing.T) {
	tr := staticStream(
		`{"type":"content","content":"a"}`,
		`{garbage`,
		`{"type":"content","content":"b"}`,
	)
	res, sink, diags := runSession(t, tr, Options{})

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "ab", res.Content)
	assert.Equal(t, "ab", sink.message(1).content)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagDecode, diags[0].Kind)
}

func TestSessionEndWithoutFinalRendersBuffer(t *testing.T) {
	tr := staticStream(
		`{"type":"content","content":"partial "}`,
		`{"type":"content","content":"answer"}`,
	)
	res, sink, _ := runSession(t, tr, Options{})

	assert.Equal(t, StateCompleted, res.State)
	msg := sink.message(1)
	assert.Equal(t, "partial answer", msg.content)
	assert.False(t, msg.streaming)
	assert.True(t, msg.cursorRemoved)
}

func TestSessionErrorEventAbandonsStream(t *testing.T) {
	tr := staticStream(
		`{"type":"content","content":"so far"}`,
		`{"type":"error","error":"model exploded"}`,
		`{"type":"content","content":"ignored"}`,
		`{"type":"final","content":"ignored"}`,
	)
	res, sink, _ := runSession(t, tr, Options{})

	assert.Equal(t, StateFailed, res.State)
	var srv *ServerError
	require.ErrorAs(t, res.Err, &srv)
	assert.Equal(t, "model exploded", srv.Message)

	msg := sink.message(1)
	assert.Equal(t, "⚠️ **Error**\n\nmodel exploded", msg.content)
	assert.True(t, msg.cursorRemoved)
}

func TestSessionRequestFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"maintenance",
			&api.StatusError{StatusCode: 503, Status: "503 Service Unavailable", Detail: "restarting"},
			"⚠️ **Server under maintenance**\n\nrestarting",
		},
		{
			"maintenance default",
			&api.StatusError{StatusCode: 503, Status: "503 Service Unavailable"},
			"⚠️ **Server under maintenance**\n\n" + maintenanceDefault,
		},
		{
			"status with detail",
			&api.StatusError{StatusCode: 500, Status: "500 Internal Server Error", Detail: "agent not initialized"},
			"⚠️ **Request error (500)**\n\nagent not initialized",
		},
		{
			"status text fallback",
			&api.StatusError{StatusCode: 404, Status: "404 Not Found"},
			"⚠️ **Request error (404)**\n\nNot Found",
		},
		{
			"connection",
			&api.ClientError{Type: api.ErrTypeConnection, Message: "cannot connect to server", Cause: &net.OpError{Op: "dial", Err: errors.New("refused")}},
			connectionMessage,
		},
		{
			"other",
			errors.New("tls handshake"),
			"⚠️ **Error while processing the request**\n\ntls handshake",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, sink, _ := runSession(t, failingOpen(tt.err), Options{})
			assert.Equal(t, StateFailed, res.State)
			assert.ErrorIs(t, res.Err, tt.err)

			msg := sink.message(1)
			assert.Equal(t, tt.want, msg.content)
			assert.False(t, msg.typing)
			assert.Equal(t, []string{"append:assistant:1", "typing:1:true", "typing:1:false", "update:1"}, sink.opsSnapshot())
		})
	}
}

func TestSessionMidStreamTransportFailure(t *testing.T) {
	pr, pw := io.Pipe()
	tr := &fakeTransport{open: func(context.Context, api.QueryRequest) (io.ReadCloser, error) {
		return pr, nil
	}}
	go func() {
		_, _ = io.WriteString(pw, "{\"type\":\"content\",\"content\":\"a\"}\n")
		pw.CloseWithError(io.ErrUnexpectedEOF)
	}()

	res, sink, _ := runSession(t, tr, Options{})
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, api.IsConnection(res.Err))
	assert.Equal(t, connectionMessage, sink.message(1).content)
	assert.True(t, sink.message(1).cursorRemoved)
}

func TestSessionCancelMidStream(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	tr := &fakeTransport{open: func(context.Context, api.QueryRequest) (io.ReadCloser, error) {
		return pr, nil
	}}

	sink := newRecordingSink()
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q"}, Options{
		Streaming:     true,
		Presenter:     plainPresenter(),
		BlinkInterval: time.Millisecond,
	})
	s.Start(context.Background())

	_, err := io.WriteString(pw, "{\"type\":\"content\",\"content\":\"partial\"}\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State() == StateStreaming && sink.message(1).content == "partial" },
		time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return sink.cursorCount() > 1 }, time.Second, time.Millisecond,
		"the cursor blinks while streaming")

	s.Cancel()
	res := s.Wait()
	toggles := sink.cursorCount()

	assert.Equal(t, StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	msg := sink.message(1)
	assert.Equal(t, "partial", msg.content, "cancellation renders nothing")
	assert.True(t, msg.cursorRemoved)

	before := len(sink.opsSnapshot())
	_, _ = io.WriteString(pw, "{\"type\":\"content\",\"content\":\"more\"}\n")
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, sink.opsSnapshot(), before, "no callbacks after cancellation")
	assert.Equal(t, toggles, sink.cursorCount(), "no cursor blinks after cancellation")
}

func TestSessionCancelWhileRequesting(t *testing.T) {
	tr := &fakeTransport{open: func(ctx context.Context, _ api.QueryRequest) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sink := newRecordingSink()
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q"}, Options{Streaming: true})
	s.Start(context.Background())

	require.Eventually(t, func() bool { return s.State() == StateRequesting }, time.Second, time.Millisecond)
	s.Cancel()
	res := s.Wait()

	assert.Equal(t, StateCancelled, res.State)
	msg := sink.message(1)
	assert.False(t, msg.typing)
	assert.Empty(t, msg.content)
}

func TestSessionCancelBeforeStart(t *testing.T) {
	s := NewStreamSession(staticStream(), nil, api.QueryRequest{Query: "q"}, Options{Streaming: true})
	s.Cancel()
	res := s.Run(context.Background())
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, StateCancelled, s.State())
}

func TestSessionNonStreaming(t *testing.T) {
	tr := &fakeTransport{query: func(_ context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
		return &api.QueryResponse{Answer: "full answer", ConversationID: "c7"}, nil
	}}
	var adopted string
	sink := newRecordingSink()
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q"}, Options{
		Presenter:      plainPresenter(),
		OnConversation: func(id string) { adopted = id },
	})
	res := s.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "full answer", res.Content)
	assert.Equal(t, "c7", res.ConversationID)
	assert.Equal(t, "c7", adopted)
	assert.Equal(t, "full answer", sink.message(1).content)
	assert.Equal(t, []string{"append:assistant:1", "typing:1:true", "typing:1:false", "update:1"}, sink.opsSnapshot())
}

func TestSessionNonStreamingEmptyAnswer(t *testing.T) {
	tr := &fakeTransport{query: func(context.Context, api.QueryRequest) (*api.QueryResponse, error) {
		return &api.QueryResponse{Answer: "", ConversationID: "c7"}, nil
	}}
	var diags []Diagnostic
	sink := newRecordingSink()
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q"}, Options{
		Presenter:    plainPresenter(),
		OnDiagnostic: func(d Diagnostic) { diags = append(diags, d) },
	})
	res := s.Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Empty(t, res.Content)
	assert.Empty(t, diags)
	assert.False(t, s.display.HasFinal(), "an empty answer does not latch the final text")
	assert.Equal(t, []string{"append:assistant:1", "typing:1:true", "typing:1:false", "update:1"}, sink.opsSnapshot())
	assert.False(t, sink.message(1).streaming)
}

func TestSessionNonStreamingFailure(t *testing.T) {
	tr := &fakeTransport{query: func(context.Context, api.QueryRequest) (*api.QueryResponse, error) {
		return nil, &api.StatusError{StatusCode: 503, Status: "503 Service Unavailable", Detail: "updating config"}
	}}
	sink := newRecordingSink()
	s := NewStreamSession(tr, sink, api.QueryRequest{Query: "q"}, Options{Presenter: plainPresenter()})
	res := s.Run(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "⚠️ **Server under maintenance**\n\nupdating config", sink.message(1).content)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StateRequesting))
	assert.True(t, canTransition(StateRequesting, StateStreaming))
	assert.True(t, canTransition(StateStreaming, StateCompleted))
	assert.False(t, canTransition(StateCompleted, StateStreaming))
	assert.False(t, canTransition(StateCancelled, StateFailed))
	assert.False(t, canTransition(StateIdle, StateStreaming))
	assert.True(t, StateFailed.Terminal())
	assert.Equal(t, "streaming", StateStreaming.String())
}
