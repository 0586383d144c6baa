package store

import (
	"context"
	"errors"
	"time"

	"github.com/sahayata/saathi/backend/internal/model/chat"
	"github.com/sahayata/saathi/backend/internal/model/crisis"
	"github.com/sahayata/saathi/backend/internal/model/escalation"
	"github.com/sahayata/saathi/backend/internal/model/mood"
	"github.com/sahayata/saathi/backend/internal/model/privacy"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEscalationNotFound   = errors.New("escalation not found")
)

// DataStore is the narrow persistence interface the pipeline depends on.
// Both MemoryStore and SQLiteStore implement it.
type DataStore interface {
	Close() error
	Ping(ctx context.Context) error

	// Conversation operations. AppendMessage assigns the message identifier,
	// position, and timestamp atomically; concurrent appends to one
	// conversation are serialized so positions are unique and reads
	// reproduce arrival order.
	CreateConversation(ctx context.Context, userID string) (chat.Conversation, error)
	FindOpenConversation(ctx context.Context, userID string) (chat.Conversation, bool, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error)
	GetMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)

	// Assessment and mood operations.
	SaveAssessment(ctx context.Context, a crisis.Assessment) error
	SaveMoodEntry(ctx context.Context, e mood.Entry) error
	ListMoodEntries(ctx context.Context, userID string, limit int) ([]mood.Entry, error)

	// Escalation operations.
	CreateEscalation(ctx context.Context, rec escalation.Record) (escalation.Record, error)
	GetEscalation(ctx context.Context, id string) (escalation.Record, error)
	ListEscalationsByInstitution(ctx context.Context, institutionID string) ([]escalation.Record, error)
	AcknowledgeEscalation(ctx context.Context, id string) (escalation.Record, error)

	// Privacy operations. GetPrivacyFlags returns default-true flags for
	// users who never set them.
	GetPrivacyFlags(ctx context.Context, userID string) (privacy.Flags, error)
	SetPrivacyFlags(ctx context.Context, flags privacy.Flags) error
	AppendAccessLog(ctx context.Context, entry privacy.AccessLogEntry) error
}

// CooldownStore provides the atomic check-and-mark used for escalation
// deduplication. TryAcquire returns true for at most one concurrent caller
// per user within the window.
type CooldownStore interface {
	TryAcquire(ctx context.Context, userID string, window time.Duration) (bool, error)
	Close() error
}
