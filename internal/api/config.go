// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// SERVER CONFIG OPERATIONS
// =============================================================================

// GetConfig fetches the agent configuration document.
func (c *Client) GetConfig(ctx context.Context) (ServerConfig, error) {
	var cfg ServerConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateConfig pushes a new agent configuration. The server restarts its
// agent in the background; poll with WaitForConfigUpdate using the returned
// UpdateID. A response with Success false is not an error.
func (c *Client) UpdateConfig(ctx context.Context, cfg json.RawMessage) (*ConfigUpdateResponse, error) {
	body := struct {
		Config json.RawMessage `json:"config"`
	}{Config: cfg}

	var resp ConfigUpdateResponse
	if err := c.do(ctx, http.MethodPost, "/api/config/update", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfigStatus fetches the state of the most recent config update.
func (c *Client) ConfigStatus(ctx context.Context) (*ConfigStatus, error) {
	var st ConfigStatus
	if err := c.do(ctx, http.MethodGet, "/api/config/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// =============================================================================
// UPDATE POLLING
// =============================================================================

// PollOptions controls WaitForConfigUpdate.
type PollOptions struct {
	// MaxAttempts bounds the number of retries after the first poll (default: 60)
	MaxAttempts int
	// Interval between polls while the update is running (default: 1s)
	Interval time.Duration
	// MaxBackoff caps the delay after a failed poll (default: 3s)
	MaxBackoff time.Duration
	// OnStatus, when set, observes every status and every failed poll.
	OnStatus func(attempt int, st *ConfigStatus, err error)
}

// DefaultPollOptions returns the polling policy used by the web client.
func DefaultPollOptions() PollOptions {
	return PollOptions{MaxAttempts: 60, Interval: time.Second, MaxBackoff: 3 * time.Second}
}

func (o PollOptions) withDefaults() PollOptions {
	d := DefaultPollOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	return o
}

// Backoff returns the delay after the attempt-th failed poll:
// min(interval*(1+0.1*attempt), max).
func (o PollOptions) Backoff(attempt int) time.Duration {
	d := time.Duration(float64(o.Interval) * (1 + 0.1*float64(attempt)))
	if d > o.MaxBackoff {
		return o.MaxBackoff
	}
	return d
}

// WaitForConfigUpdate polls /api/config/status until the update identified
// by updateID finishes. Failed polls are retried with a growing delay since
// the server is expected to be briefly unreachable while restarting.
//
// It returns the final status (check Succeeded), ErrUpdateSuperseded when the
// server reports a different update id, or ErrPollTimeout.
func (c *Client) WaitForConfigUpdate(ctx context.Context, updateID string, opts PollOptions) (*ConfigStatus, error) {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; ; attempt++ {
		st, err := c.ConfigStatus(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if opts.OnStatus != nil {
			opts.OnStatus(attempt, st, err)
		}

		delay := opts.Interval
		if err != nil {
			lastErr = err
			delay = opts.Backoff(attempt)
		} else {
			lastErr = nil
			if st.UpdateID != updateID {
				return st, ErrUpdateSuperseded
			}
			if !st.Updating {
				return st, nil
			}
		}

		if attempt >= opts.MaxAttempts {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrPollTimeout, lastErr)
			}
			return st, ErrPollTimeout
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
