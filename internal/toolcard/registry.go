// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package toolcard tracks the tool invocations shown while an answer streams.
//
// Each tool_call gets one card keyed by its tool_call_id. Duplicate calls are
// absorbed, and a result that arrives for an id never announced is tolerated
// rather than treated as an error.
package toolcard

import (
	"encoding/json"
	"sync"
)

// Entry is the display state of one tool invocation.
type Entry struct {
	ID        string
	ToolName  string
	Args      json.RawMessage
	Result    json.RawMessage
	HasResult bool
	Expanded  bool
}

// Registry maps tool-call ids to entries for the lifetime of one session.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// GetOrCreate returns the entry for id, creating it on first sight.
// The first writer wins: a repeated call with different name or args
// returns the original entry unchanged and created is false.
func (r *Registry) GetOrCreate(id, toolName string, args json.RawMessage) (entry Entry, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		return *e, false
	}
	e := &Entry{ID: id, ToolName: toolName, Args: args}
	r.entries[id] = e
	r.order = append(r.order, id)
	return *e, true
}

// UpdateResult records the result for id and expands the card.
// It returns false, and changes nothing, when id is unknown.
// A second result for the same id keeps the first.
func (r *Registry) UpdateResult(id string, result json.RawMessage) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	if !e.HasResult {
		e.Result = result
		e.HasResult = true
	}
	e.Expanded = true
	return *e, true
}

// Get returns a snapshot of the entry for id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns snapshots of all entries in creation order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear releases every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
	r.order = nil
}
