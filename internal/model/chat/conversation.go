package chat

import "time"

// SenderAssistant is the reserved sender identifier for pipeline replies.
const SenderAssistant = "assistant"

// Conversation captures one user's ongoing exchange with the companion.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Owner returns the first non-assistant participant.
func (c Conversation) Owner() string {
	for _, p := range c.Participants {
		if p != SenderAssistant {
			return p
		}
	}
	return ""
}
