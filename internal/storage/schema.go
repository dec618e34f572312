// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// Schema creates the transcript tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	query           TEXT NOT NULL,
	state           TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	finished_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_finished ON transcripts(finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_transcripts_conversation ON transcripts(conversation_id);

CREATE TABLE IF NOT EXISTS tool_calls (
	transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	tool_call_id  TEXT NOT NULL,
	tool_name     TEXT NOT NULL,
	args          TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL DEFAULT '',
	has_result    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (transcript_id, seq)
);
`
