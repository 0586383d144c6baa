package chat

import "time"

// Message persists individual turns for audit/debug. Immutable once appended;
// Position is assigned by the store and is unique within a conversation.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	Sender         string            `json:"sender"`
	Content        string            `json:"content"`
	Position       int               `json:"position"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	MoodLabel      string            `json:"moodLabel,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}
