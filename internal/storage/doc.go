// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives finished chat sessions in a local SQLite database
// so they can be browsed offline with `mcpchat history`.
//
// The archive is a client-side record only. Conversations themselves live on
// the server and are managed through the api package.
//
// # Key Types
//
//   - Archive: SQLite store, implements session.Archiver
//   - Transcript: one question, its answer and its tool calls
//   - Meta: lightweight listing row
//
// # Usage
//
//	archive, err := storage.Open(ctx, path, cfg.Storage.MaxSessions)
//	manager.SetArchive(archive)
//
//	metas, err := archive.List(ctx, 20)
//	t, err := archive.Get(ctx, metas[0].ID[:8])
//
// # Storage Location
//
// Transcripts are stored in ~/.mcpchat/history.db unless storage.path is set.
package storage
