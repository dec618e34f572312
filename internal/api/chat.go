// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"
)

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Query sends a non-streaming question and waits for the full answer.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenStream posts to /api/stream and returns the NDJSON body once response
// headers with a 2xx status have arrived. The caller must close the body.
// Cancelling ctx aborts any blocked read on the body.
func (c *Client) OpenStream(ctx context.Context, req QueryRequest) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.streamClient, http.MethodPost, "/api/stream", req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
