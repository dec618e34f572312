// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the newline-delimited JSON event stream returned by
// the chat server's /api/stream endpoint.
//
// The server writes one JSON object per line. Network reads do not respect
// line boundaries, so the decoder buffers any unterminated trailing fragment
// until the next chunk completes it.
//
// # Key Types
//
//   - Event: Tagged union of everything the server can send (content, final,
//     tool_call, tool_result, error, start, end)
//   - Decoder: Push-style decoder, fed raw chunks
//   - Reader: Pull-style decoder over an io.Reader with context checks
//   - DecodeError: Non-fatal anomaly for a line that could not be decoded
//
// # Usage
//
//	r := stream.NewReader(resp.Body)
//	r.OnAnomaly(func(err *stream.DecodeError) { log.Warn(ctx, ...) })
//	for {
//	    ev, err := r.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// Malformed lines never abort the stream. A fragment left unterminated when
// the stream ends is discarded, never decoded.
package stream
