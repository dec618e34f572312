// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"fmt"
)

// =============================================================================
// DECODE ERRORS
// =============================================================================

// ErrTruncatedLine reports a fragment left unterminated at end of stream.
var ErrTruncatedLine = errors.New("unterminated line at end of stream")

// DecodeError describes a line that could not be turned into an Event.
// It is never fatal: the decoder moves on to the next line.
type DecodeError struct {
	Line int    // 1-based line number within the stream
	Raw  string // offending line, truncated for logging
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stream line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// maxRawLen bounds the copy of an offending line kept in a DecodeError.
const maxRawLen = 200

func newDecodeError(line int, raw []byte, err error) *DecodeError {
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen]
	}
	return &DecodeError{Line: line, Raw: string(raw), Err: err}
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns arbitrarily segmented chunks into events.
// It is not safe for concurrent use.
type Decoder struct {
	pending []byte
	line    int
	closed  bool
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one chunk and returns the events completed by it, in order,
// along with any anomalies. The unterminated tail is kept for the next call.
func (d *Decoder) Feed(chunk []byte) ([]Event, []*DecodeError) {
	if d.closed || len(chunk) == 0 {
		return nil, nil
	}
	d.pending = append(d.pending, chunk...)

	var events []Event
	var anomalies []*DecodeError
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		raw := d.pending[:idx]
		d.line++

		ev, derr := d.decodeLine(raw)
		if derr != nil {
			anomalies = append(anomalies, derr)
		} else if ev != nil {
			events = append(events, ev)
		}
		d.pending = d.pending[idx+1:]
	}

	// Compact so a long stream does not pin every chunk ever read.
	if len(d.pending) == 0 {
		d.pending = nil
	} else if cap(d.pending) > 4*len(d.pending) {
		d.pending = append([]byte(nil), d.pending...)
	}
	return events, anomalies
}

// Close ends the stream. Any unterminated fragment is discarded; the
// returned error reports it when it held more than whitespace.
func (d *Decoder) Close() *DecodeError {
	if d.closed {
		return nil
	}
	d.closed = true
	rest := bytes.TrimSpace(d.pending)
	d.pending = nil
	if len(rest) == 0 {
		return nil
	}
	return newDecodeError(d.line+1, rest, ErrTruncatedLine)
}

// Pending reports the number of buffered bytes awaiting a line terminator.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Lines reports the number of complete lines consumed so far.
func (d *Decoder) Lines() int {
	return d.line
}

func (d *Decoder) decodeLine(raw []byte) (Event, *DecodeError) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return nil, nil
	}
	ev, err := parseFrame(line)
	if err != nil {
		return nil, newDecodeError(d.line, line, err)
	}
	return ev, nil
}
