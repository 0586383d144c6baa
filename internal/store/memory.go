package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahayata/saathi/backend/internal/model/chat"
	"github.com/sahayata/saathi/backend/internal/model/crisis"
	"github.com/sahayata/saathi/backend/internal/model/escalation"
	"github.com/sahayata/saathi/backend/internal/model/mood"
	"github.com/sahayata/saathi/backend/internal/model/privacy"
)

// MemoryStore is the default in-process DataStore. The single mutex
// serializes appends, so positions within a conversation are assigned
// without gaps or duplicates.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	assessments   []crisis.Assessment
	moods         map[string][]mood.Entry
	escalations   map[string]escalation.Record
	flags         map[string]privacy.Flags
	accessLog     []privacy.AccessLogEntry
}

// NewMemoryStore bootstraps the in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		moods:         make(map[string][]mood.Entry),
		escalations:   make(map[string]escalation.Record),
		flags:         make(map[string]privacy.Flags),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// CreateConversation provisions a conversation owned by userID.
func (s *MemoryStore) CreateConversation(_ context.Context, userID string) (chat.Conversation, error) {
	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: []string{userID, chat.SenderAssistant},
		CreatedAt:    now,
		LastActiveAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.messages[conv.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return conv, nil
}

// FindOpenConversation returns the most recently active conversation owned by
// userID, if any.
func (s *MemoryStore) FindOpenConversation(_ context.Context, userID string) (chat.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best chat.Conversation
	found := false
	for _, conv := range s.conversations {
		if conv.Owner() != userID {
			continue
		}
		if !found || conv.LastActiveAt.After(best.LastActiveAt) {
			best = conv
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns the user's conversations newest-active-first.
func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chat.Conversation
	for _, conv := range s.conversations {
		if conv.Owner() == userID {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

// AppendMessage assigns identity, position, and timestamp under the store
// lock and touches the conversation's last-active time. Timestamps are
// clamped to be non-decreasing within a conversation.
func (s *MemoryStore) AppendMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	if msg.ConversationID == "" {
		return chat.Message{}, ErrConversationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return chat.Message{}, ErrConversationNotFound
	}

	existing := s.messages[msg.ConversationID]
	msg.ID = uuid.NewString()
	msg.Position = len(existing)
	now := time.Now().UTC()
	if n := len(existing); n > 0 && now.Before(existing[n-1].CreatedAt) {
		now = existing[n-1].CreatedAt
	}
	msg.CreatedAt = now

	s.messages[msg.ConversationID] = append(existing, msg)
	conv.LastActiveAt = now
	s.conversations[msg.ConversationID] = conv

	return msg, nil
}

// GetMessages returns up to limit messages oldest-first; limit <= 0 means all.
func (s *MemoryStore) GetMessages(_ context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func (s *MemoryStore) SaveAssessment(_ context.Context, a crisis.Assessment) error {
	s.mu.Lock()
	s.assessments = append(s.assessments, a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveMoodEntry(_ context.Context, e mood.Entry) error {
	s.mu.Lock()
	s.moods[e.UserID] = append(s.moods[e.UserID], e)
	s.mu.Unlock()
	return nil
}

// ListMoodEntries returns a user's entries in chronological order.
func (s *MemoryStore) ListMoodEntries(_ context.Context, userID string, limit int) ([]mood.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.moods[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	copied := make([]mood.Entry, len(entries))
	copy(copied, entries)
	return copied, nil
}

func (s *MemoryStore) CreateEscalation(_ context.Context, rec escalation.Record) (escalation.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = escalation.StatusPending
	}

	s.mu.Lock()
	s.escalations[rec.ID] = rec
	s.mu.Unlock()
	return rec, nil
}

func (s *MemoryStore) GetEscalation(_ context.Context, id string) (escalation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.escalations[id]
	if !ok {
		return escalation.Record{}, ErrEscalationNotFound
	}
	return rec, nil
}

// ListEscalationsByInstitution returns records newest-first.
func (s *MemoryStore) ListEscalationsByInstitution(_ context.Context, institutionID string) ([]escalation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []escalation.Record
	for _, rec := range s.escalations {
		if rec.InstitutionID == institutionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AcknowledgeEscalation(_ context.Context, id string) (escalation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.escalations[id]
	if !ok {
		return escalation.Record{}, ErrEscalationNotFound
	}
	rec.Status = escalation.StatusAcknowledged
	s.escalations[id] = rec
	return rec, nil
}

func (s *MemoryStore) GetPrivacyFlags(_ context.Context, userID string) (privacy.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if flags, ok := s.flags[userID]; ok {
		return flags, nil
	}
	return privacy.Defaults(userID), nil
}

func (s *MemoryStore) SetPrivacyFlags(_ context.Context, flags privacy.Flags) error {
	s.mu.Lock()
	s.flags[flags.UserID] = flags
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendAccessLog(_ context.Context, entry privacy.AccessLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.accessLog = append(s.accessLog, entry)
	s.mu.Unlock()
	return nil
}

// AccessLog returns a copy of the audit trail, for tests and diagnostics.
func (s *MemoryStore) AccessLog() []privacy.AccessLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]privacy.AccessLogEntry, len(s.accessLog))
	copy(copied, s.accessLog)
	return copied
}
