// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// ListConversations returns every conversation known to the server.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var resp conversationList
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetConversation fetches one conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var resp conversationEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context) (*Conversation, error) {
	var resp conversationEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}

// DeleteConversation removes one conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	var resp SuccessResponse
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, &resp)
}

// DeleteAllConversations removes every conversation.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	var resp SuccessResponse
	return c.do(ctx, http.MethodDelete, "/api/conversations", nil, &resp)
}

// UpdateConversationTitle renames a conversation.
func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) (*Conversation, error) {
	var resp conversationEnvelope
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(id)+"/title", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}
