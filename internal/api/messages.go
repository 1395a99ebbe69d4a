package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/agentlink/internal/envelope"
)

// maxPageSize is the largest page the backend serves.
const maxPageSize = 100

// GetMessages fetches one page of an agent's messages.
func (c *Client) GetMessages(ctx context.Context, agentID string, opts ListMessagesOptions) (*MessagesResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.ConversationID != "" {
		query.Set("conversation_id", opts.ConversationID)
	}

	var resp MessagesResponse
	if err := c.get(ctx, agentPath(agentID, "messages"), query, &resp); err != nil {
		return nil, fmt.Errorf("get messages %s: %w", agentID, err)
	}

	return &resp, nil
}

// ListMessages returns up to limit of an agent's most recent messages, oldest
// first, paginating as needed. limit <= 0 fetches everything.
func (c *Client) ListMessages(ctx context.Context, agentID string, limit int) ([]envelope.ChatMessage, error) {
	var all []APIMessage
	opts := ListMessagesOptions{Limit: maxPageSize}

	for {
		if limit > 0 {
			opts.Limit = min(maxPageSize, limit-len(all))
		}

		resp, err := c.GetMessages(ctx, agentID, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Messages...)

		if resp.Cursor == "" || len(resp.Messages) == 0 {
			break
		}
		if limit > 0 && len(all) >= limit {
			break
		}
		opts.Cursor = resp.Cursor
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	c.logger.Debug("loaded history", "agent", agentID, "count", len(all))
	return ToChatMessages(all), nil
}
