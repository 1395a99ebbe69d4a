package api

import (
	"context"
	"fmt"
)

// ListConversations returns an agent's conversations.
func (c *Client) ListConversations(ctx context.Context, agentID string) ([]Conversation, error) {
	var resp ConversationsResponse
	if err := c.get(ctx, agentPath(agentID, "conversations"), nil, &resp); err != nil {
		return nil, fmt.Errorf("list conversations %s: %w", agentID, err)
	}
	return resp.Conversations, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, agentID, conversationID string) error {
	if err := c.del(ctx, agentPath(agentID, "conversations", conversationID)); err != nil {
		return fmt.Errorf("delete conversation %s/%s: %w", agentID, conversationID, err)
	}
	return nil
}
