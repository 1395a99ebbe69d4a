package api

// MessagesResponse from GET /agents/{agent}/messages
type MessagesResponse struct {
	Messages []APIMessage `json:"messages"`
	Cursor   string       `json:"cursor"`
}

// APIMessage is a stored chat message.
type APIMessage struct {
	ID              string   `json:"id"`
	Role            string   `json:"role"`
	Content         string   `json:"content"`
	AgentID         string   `json:"agent_id"`
	ConversationID  string   `json:"conversation_id"`
	ClientMessageID string   `json:"client_message_id,omitempty"`
	Logs            []string `json:"logs,omitempty"`

	// ISO 8601
	CreatedAt string `json:"created_at"`
}

// ConversationsResponse from GET /agents/{agent}/conversations
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// Conversation is one thread of messages with an agent.
type Conversation struct {
	ID           string `json:"id"`
	AgentID      string `json:"agent_id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ListMessagesOptions filters a message listing.
type ListMessagesOptions struct {
	Limit          int
	Cursor         string
	ConversationID string
}
