package api

import (
	"cmp"
	"slices"
	"time"

	"github.com/rickgao/agentlink/internal/envelope"
)

// ToChatMessage converts a stored message to its envelope form.
func ToChatMessage(m APIMessage) envelope.ChatMessage {
	return envelope.ChatMessage{
		ID:              m.ID,
		Role:            m.Role,
		Content:         m.Content,
		AgentID:         m.AgentID,
		ConversationID:  m.ConversationID,
		CreatedAt:       m.CreatedAt,
		Logs:            m.Logs,
		ClientMessageID: m.ClientMessageID,
	}
}

// ToChatMessages converts and orders messages oldest first. Messages with
// unparseable timestamps keep their relative order and sort before dated ones.
func ToChatMessages(msgs []APIMessage) []envelope.ChatMessage {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b APIMessage) int {
		return cmp.Compare(ParseTimestamp(a.CreatedAt), ParseTimestamp(b.CreatedAt))
	})

	out := make([]envelope.ChatMessage, len(sorted))
	for i, m := range sorted {
		out[i] = ToChatMessage(m)
	}
	return out
}

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}
