// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used by Reader.
const DefaultChunkSize = 4096

// AnomalyHandler receives decode anomalies as they are found.
type AnomalyHandler func(*DecodeError)

// Reader pulls events lazily from an io.Reader.
// The sequence is finite and cannot be restarted.
type Reader struct {
	src       io.Reader
	dec       *Decoder
	buf       []byte
	queue     []Event
	onAnomaly AnomalyHandler
	err       error
}

// NewReader wraps r. The caller still owns r and must close it.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src: r,
		dec: NewDecoder(),
		buf: make([]byte, DefaultChunkSize),
	}
}

// OnAnomaly installs the handler for malformed lines.
func (r *Reader) OnAnomaly(h AnomalyHandler) {
	r.onAnomaly = h
}

// Next returns the next event, io.EOF once the source is exhausted, or the
// context error if ctx was cancelled before the next chunk read.
// Transport errors are returned as-is and end the sequence.
func (r *Reader) Next(ctx context.Context) (Event, error) {
	for {
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			return ev, nil
		}
		if r.err != nil {
			return nil, r.err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			events, anomalies := r.dec.Feed(r.buf[:n])
			r.report(anomalies...)
			r.queue = append(r.queue, events...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if derr := r.dec.Close(); derr != nil {
					r.report(derr)
				}
				r.err = io.EOF
			} else {
				r.err = err
			}
		}
	}
}

func (r *Reader) report(anomalies ...*DecodeError) {
	if r.onAnomaly == nil {
		return
	}
	for _, a := range anomalies {
		r.onAnomaly(a)
	}
}

// Collect drains r and returns every event. Intended for tests and
// non-interactive callers.
func Collect(ctx context.Context, r *Reader) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
