package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	chatmodel "github.com/sahayata/saathi/backend/internal/model/chat"
	"github.com/sahayata/saathi/backend/internal/store"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrContentRequired = errors.New("message content is required")
)

// Service encapsulates conversation state management on top of the narrow
// persistence interface.
type Service struct {
	data store.DataStore

	// Serializes find-or-create so two concurrent first messages from one
	// user land in a single conversation.
	ensureMu sync.Mutex
}

// NewService wires the conversation service.
func NewService(data store.DataStore) *Service {
	return &Service{data: data}
}

// EnsureConversation returns the user's open conversation, creating one on
// the first message.
func (s *Service) EnsureConversation(ctx context.Context, userID string) (chatmodel.Conversation, error) {
	if userID == "" {
		return chatmodel.Conversation{}, ErrUserRequired
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	conv, found, err := s.data.FindOpenConversation(ctx, userID)
	if err != nil {
		return chatmodel.Conversation{}, err
	}
	if found {
		return conv, nil
	}
	return s.data.CreateConversation(ctx, userID)
}

// Append stores one message; identity, position, and timestamp are assigned
// by the store atomically.
func (s *Service) Append(ctx context.Context, msg chatmodel.Message) (chatmodel.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return chatmodel.Message{}, ErrContentRequired
	}
	return s.data.AppendMessage(ctx, msg)
}

// Transcript returns up to limit messages oldest-first.
func (s *Service) Transcript(ctx context.Context, conversationID string, limit int) ([]chatmodel.Message, error) {
	return s.data.GetMessages(ctx, conversationID, limit)
}

// GetConversation retrieves one conversation by identifier.
func (s *Service) GetConversation(ctx context.Context, id string) (chatmodel.Conversation, error) {
	return s.data.GetConversation(ctx, id)
}

// ListConversations returns the user's conversations newest-active-first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]chatmodel.Conversation, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.data.ListConversations(ctx, userID)
}
