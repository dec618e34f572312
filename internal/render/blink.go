// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"sync"
	"time"
)

// DefaultBlinkInterval is the cursor toggle period.
const DefaultBlinkInterval = 500 * time.Millisecond

// =============================================================================
// CURSOR BLINKER
// =============================================================================

// Blinker toggles a streaming cursor on a fixed period.
//
// onToggle runs on the blinker's goroutine and must not call Stop.
// Once Stop returns, onToggle is never called again.
type Blinker struct {
	interval time.Duration
	onToggle func(visible bool)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	reset   chan struct{}
}

// NewBlinker creates a stopped blinker. A non-positive interval uses
// DefaultBlinkInterval.
func NewBlinker(interval time.Duration, onToggle func(visible bool)) *Blinker {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	if onToggle == nil {
		onToggle = func(bool) {}
	}
	return &Blinker{interval: interval, onToggle: onToggle}
}

// Start shows the cursor and begins toggling. Starting a running blinker is a no-op.
func (b *Blinker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.reset = make(chan struct{}, 1)
	go b.loop(b.stop, b.done, b.reset)
}

// Reset makes the cursor visible and restarts the period.
func (b *Blinker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	select {
	case b.reset <- struct{}{}:
	default:
	}
}

// Stop halts the blinker and waits for its goroutine to exit. Idempotent.
func (b *Blinker) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stop)
	done := b.done
	b.mu.Unlock()
	<-done
}

// Running reports whether the blinker is active.
func (b *Blinker) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Blinker) loop(stop <-chan struct{}, done chan<- struct{}, reset <-chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	visible := true
	b.onToggle(visible)

	for {
		select {
		case <-stop:
			return
		case <-reset:
			ticker.Reset(b.interval)
			if !visible {
				visible = true
				b.onToggle(visible)
			}
		case <-ticker.C:
			// stop wins over a tick that raced with it
			select {
			case <-stop:
				return
			default:
			}
			visible = !visible
			b.onToggle(visible)
		}
	}
}
