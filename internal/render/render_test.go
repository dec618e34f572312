// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STATE TESTS
// =============================================================================

func TestStateAppendAndFinal(t *testing.T) {
	s := NewState(time.Hour, nil)

	got, err := s.AppendDelta("Hel")
	require.NoError(t, err)
	assert.Equal(t, "Hel", got)

	got, err = s.AppendDelta("lo")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)

	got, err = s.SetFinal("Hello, world")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
	assert.True(t, s.HasFinal())
}

func TestStateDeltaAfterFinalRejected(t *testing.T) {
	s := NewState(time.Hour, nil)
	_, _ = s.SetFinal("done")

	got, err := s.AppendDelta("late")
	assert.ErrorIs(t, err, ErrDeltaAfterFinal)
	assert.Equal(t, "done", got)
	assert.Equal(t, "done", s.Buffer())
}

func TestStateSecondFinalNotApplied(t *testing.T) {
	s := NewState(time.Hour, nil)
	_, _ = s.SetFinal("first")

	_, err := s.SetFinal("second")
	assert.ErrorIs(t, err, ErrFinalAlreadySet)
	assert.Equal(t, "first", s.Buffer())
}

func TestStateCursorLifecycle(t *testing.T) {
	var mu sync.Mutex
	var seen []bool
	s := NewState(5*time.Millisecond, func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	s.StartCursor()
	assert.True(t, s.CursorRunning())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	}, time.Second, time.Millisecond)

	s.StopCursor()
	assert.False(t, s.CursorRunning())
	assert.False(t, s.CursorVisible())

	mu.Lock()
	n := len(seen)
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, n, len(seen), "no callbacks after StopCursor returns")
	mu.Unlock()
}

// =============================================================================
// BLINKER TESTS
// =============================================================================

func TestBlinkerStopIsIdempotent(t *testing.T) {
	b := NewBlinker(time.Millisecond, nil)
	b.Stop()
	b.Start()
	b.Start()
	b.Stop()
	b.Stop()
	assert.False(t, b.Running())
}

func TestBlinkerResetShowsCursor(t *testing.T) {
	var visible atomic.Bool
	var toggles atomic.Int32
	b := NewBlinker(20*time.Millisecond, func(v bool) {
		visible.Store(v)
		toggles.Add(1)
	})
	b.Start()
	defer b.Stop()

	require.Eventually(t, func() bool { return toggles.Load() >= 2 && !visible.Load() }, time.Second, time.Millisecond)
	b.Reset()
	require.Eventually(t, visible.Load, time.Second, time.Millisecond)
}

// =============================================================================
// INLINE FORMATTER TESTS
// =============================================================================

func asciiFormatter() *InlineFormatter {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return NewInlineFormatter(r)
}

func TestInlineFormatterStripsMarkers(t *testing.T) {
	f := asciiFormatter()
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"**bold** text", "bold text"},
		{"an *italic* word", "an italic word"},
		{"run `go **test**`", "run go **test**"},
		{"**unterminated", "**unterminated"},
		{"line\r\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := f.Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// SANITIZER / PRESENTER TESTS
// =============================================================================

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ansi", "\x1b[31mred\x1b[0m", "red"},
		{"controls", "a\x07b\x00c", "abc"},
		{"keeps newlines", "a\n\tb\r\n", "a\n\tb\n"},
		{"nfc", "e\u0301", "\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

type failingMarkdown struct{}

func (failingMarkdown) Render(string) (string, error) { return "", errors.New("boom") }

type upperMarkdown struct{}

func (upperMarkdown) Render(s string) (string, error) { return "MD:" + s, nil }

func TestPresenter(t *testing.T) {
	p := NewPresenter(asciiFormatter(), upperMarkdown{})
	assert.Equal(t, "bold", p.Present("**bold**", true))
	assert.Equal(t, "MD:**bold**", p.Present("**bold**", false))

	fallback := NewPresenter(asciiFormatter(), failingMarkdown{})
	assert.Equal(t, "text", fallback.Present("\x1b[1mtext", false))

	plain := NewPresenter(nil, nil)
	assert.Equal(t, "# title", plain.Present("# title", false))
}

func TestVerbatimPresenterStreamsWhatItFinishes(t *testing.T) {
	p := NewPresenter(NewVerbatimFormatter(), PlainRenderer{})
	for _, text := range []string{"This is **bold** and done.", "`code` and *it*", "a\r\nb"} {
		assert.Equal(t, p.Present(text, false), p.Present(text, true), "input %q", text)
	}
	assert.Equal(t, "**bold**", p.Present("**bold**", true))
}

func TestGlamourRenderer(t *testing.T) {
	g, err := NewGlamourRenderer(MarkdownConfig{Style: "notty", WordWrap: 80})
	require.NoError(t, err)

	out, err := g.Render("# Title\n\nSome **bold** text.")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}
