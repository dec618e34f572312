// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/xhjxhj001/mcp-chat-server/internal/session"
	"github.com/xhjxhj001/mcp-chat-server/internal/toolcard"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound  = errors.New("transcript not found")
	ErrAmbiguous = errors.New("transcript id prefix is ambiguous")
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// ToolCall is one archived tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	HasResult bool            `json:"has_result"`
}

// Transcript is one archived question and answer.
type Transcript struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Query          string        `json:"query"`
	State          string        `json:"state"`
	Content        string        `json:"content"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	FinishedAt     time.Time     `json:"finished_at"`
	ToolCalls      []ToolCall    `json:"tool_calls,omitempty"`
}

// Meta is the listing view of a transcript.
type Meta struct {
	ID             string
	ConversationID string
	Query          string
	State          string
	FinishedAt     time.Time
	ToolCount      int
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive stores finished sessions in SQLite. It implements session.Archiver.
type Archive struct {
	db          *sql.DB
	path        string
	maxSessions int
}

var _ session.Archiver = (*Archive)(nil)

// Open opens (creating if needed) the archive at path. maxSessions caps the
// number of stored transcripts; 0 keeps everything.
func Open(ctx context.Context, path string, maxSessions int) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db, path: path, maxSessions: maxSessions}, nil
}

// Path returns the database file path.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record archives a finished session and prunes past the cap.
func (a *Archive) Record(ctx context.Context, t session.Transcript) error {
	res := t.Result
	rec := Transcript{
		ID:             uuid.NewString(),
		SessionID:      t.SessionID,
		ConversationID: t.ConversationID,
		Query:          t.Query,
		State:          res.State.String(),
		Content:        res.Content,
		Duration:       res.Duration,
		FinishedAt:     t.FinishedAt,
		ToolCalls:      toolCalls(res.ToolCalls),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	if err := a.insert(ctx, rec); err != nil {
		return err
	}
	if a.maxSessions > 0 {
		if n, err := a.Prune(ctx, a.maxSessions); err != nil {
			return err
		} else if n > 0 {
			log.Debug(ctx, log.KV{K: "msg", V: "archive pruned"}, log.KV{K: "removed", V: n})
		}
	}
	return nil
}

func toolCalls(entries []toolcard.Entry) []ToolCall {
	if len(entries) == 0 {
		return nil
	}
	out := make([]ToolCall, len(entries))
	for i, e := range entries {
		out[i] = ToolCall{ID: e.ID, Name: e.ToolName, Args: e.Args, Result: e.Result, HasResult: e.HasResult}
	}
	return out
}

func (a *Archive) insert(ctx context.Context, rec Transcript) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO transcripts
		(id, session_id, conversation_id, query, state, content, error, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.ConversationID, rec.Query, rec.State, rec.Content, rec.Error,
		rec.Duration.Milliseconds(), rec.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}

	for i, tc := range rec.ToolCalls {
		_, err = tx.ExecContext(ctx, `INSERT INTO tool_calls
			(transcript_id, seq, tool_call_id, tool_name, args, result, has_result)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, tc.ID, tc.Name, string(tc.Args), string(tc.Result), tc.HasResult)
		if err != nil {
			return fmt.Errorf("failed to insert tool call: %w", err)
		}
	}
	return tx.Commit()
}

// List returns the newest transcripts first. limit <= 0 returns all.
func (a *Archive) List(ctx context.Context, limit int) ([]Meta, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `SELECT t.id, t.conversation_id, t.query, t.state, t.finished_at,
			(SELECT COUNT(*) FROM tool_calls c WHERE c.transcript_id = t.id)
		FROM transcripts t
		ORDER BY t.finished_at DESC, t.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var finished int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Query, &m.State, &finished, &m.ToolCount); err != nil {
			return nil, err
		}
		m.FinishedAt = time.UnixMilli(finished)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Get loads one transcript by id or unique id prefix.
func (a *Archive) Get(ctx context.Context, id string) (*Transcript, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	rows, err := a.db.QueryContext(ctx, `SELECT id, session_id, conversation_id, query, state, content,
			error, duration_ms, finished_at
		FROM transcripts WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`, id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	var found []Transcript
	for rows.Next() {
		var t Transcript
		var durMs, finished int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.ConversationID, &t.Query, &t.State, &t.Content,
			&t.Error, &durMs, &finished); err != nil {
			rows.Close()
			return nil, err
		}
		t.Duration = time.Duration(durMs) * time.Millisecond
		t.FinishedAt = time.UnixMilli(finished)
		found = append(found, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var t Transcript
	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(found) == 1:
		t = found[0]
	default:
		exact := false
		for _, f := range found {
			if f.ID == id {
				t, exact = f, true
			}
		}
		if !exact {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
		}
	}

	calls, err := a.toolCallsFor(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.ToolCalls = calls
	return &t, nil
}

func (a *Archive) toolCallsFor(ctx context.Context, transcriptID string) ([]ToolCall, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT tool_call_id, tool_name, args, result, has_result
		FROM tool_calls WHERE transcript_id = ? ORDER BY seq`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var tc ToolCall
		var args, result string
		if err := rows.Scan(&tc.ID, &tc.Name, &args, &result, &tc.HasResult); err != nil {
			return nil, err
		}
		if args != "" {
			tc.Args = json.RawMessage(args)
		}
		if result != "" {
			tc.Result = json.RawMessage(result)
		}
		calls = append(calls, tc)
	}
	return calls, rows.Err()
}

// Count returns the number of stored transcripts.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcripts").Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep transcripts and returns how many
// were removed.
func (a *Archive) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := a.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id NOT IN (
		SELECT id FROM transcripts ORDER BY finished_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune archive: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every transcript.
func (a *Archive) Clear(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM transcripts")
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
