// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agentconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"goa.design/clue/log"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 300 * time.Millisecond

// Watcher calls a handler with the parsed document each time a file changes.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context, doc []byte) error
	onError  func(err error)
}

// NewWatcher creates a watcher for path. onChange receives the document as
// JSON; a parse failure goes to onError and the watch continues.
func NewWatcher(path string, debounce time.Duration, onChange func(ctx context.Context, doc []byte) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, onChange: onChange}
}

// OnError sets the function called for parse and handler errors.
func (w *Watcher) OnError(fn func(err error)) {
	w.onError = fn
}

// Run watches until ctx is cancelled. The parent directory is watched rather
// than the file, so atomic saves (write temp + rename) are seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	log.Info(ctx, log.KV{K: "msg", V: "watching agent config"}, log.KV{K: "path", V: abs})

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.report(ctx, err)

		case <-timer.C:
			w.fire(ctx, abs)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, abs string) {
	doc, err := Load(abs)
	if err != nil {
		w.report(ctx, err)
		return
	}
	if err := w.onChange(ctx, doc); err != nil {
		w.report(ctx, err)
	}
}

func (w *Watcher) report(ctx context.Context, err error) {
	log.Warn(ctx, log.KV{K: "msg", V: "agent config watch"}, log.KV{K: "err", V: err.Error()})
	if w.onError != nil {
		w.onError(err)
	}
}
