package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sahayata/saathi/backend/internal/model/chat"
	"github.com/sahayata/saathi/backend/internal/model/crisis"
	"github.com/sahayata/saathi/backend/internal/model/escalation"
	"github.com/sahayata/saathi/backend/internal/model/mood"
	"github.com/sahayata/saathi/backend/internal/model/privacy"
)

// SQLiteStore is the durable DataStore. Message positions are assigned inside
// a transaction, so concurrent appends to one conversation serialize at the
// database and never collide.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	last_active_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, last_active_at);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	sender TEXT NOT NULL,
	content TEXT NOT NULL,
	position INTEGER NOT NULL,
	metadata TEXT,
	mood_label TEXT,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(conversation_id, position)
);

CREATE TABLE IF NOT EXISTS assessments (
	user_id TEXT NOT NULL,
	score REAL NOT NULL,
	level TEXT NOT NULL,
	matched_patterns TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS mood_entries (
	user_id TEXT NOT NULL,
	label TEXT NOT NULL,
	intensity INTEGER NOT NULL,
	confidence REAL NOT NULL,
	note TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mood_entries_user ON mood_entries(user_id, created_at);

CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	institution_id TEXT,
	user_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	risk_score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	reason TEXT,
	status TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_escalations_institution ON escalations(institution_id, created_at);

CREATE TABLE IF NOT EXISTS privacy_flags (
	user_id TEXT PRIMARY KEY,
	share_mood INTEGER NOT NULL,
	share_conversation INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS access_log (
	actor_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	resource TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);
`

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite writes are single-writer; one connection avoids lock thrash.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) CreateConversation(ctx context.Context, userID string) (chat.Conversation, error) {
	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: []string{userID, chat.SenderAssistant},
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_id, created_at, last_active_at) VALUES (?, ?, ?, ?)`,
		conv.ID, userID, now, now)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) FindOpenConversation(ctx context.Context, userID string) (chat.Conversation, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, created_at, last_active_at FROM conversations
		 WHERE owner_id = ? ORDER BY last_active_at DESC LIMIT 1`, userID)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, created_at, last_active_at FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, created_at, last_active_at FROM conversations
		 WHERE owner_id = ? ORDER BY last_active_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.ConversationID == "" {
		return chat.Message{}, ErrConversationNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&exists); err != nil {
		return chat.Message{}, fmt.Errorf("check conversation: %w", err)
	}
	if exists == 0 {
		return chat.Message{}, ErrConversationNotFound
	}

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM messages WHERE conversation_id = ?`,
		msg.ConversationID).Scan(&position); err != nil {
		return chat.Message{}, fmt.Errorf("next position: %w", err)
	}

	msg.ID = uuid.NewString()
	msg.Position = position
	msg.CreatedAt = time.Now().UTC()

	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return chat.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, content, position, metadata, mood_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Content, msg.Position, metadata, msg.MoodLabel, msg.CreatedAt); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_active_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID); err != nil {
		return chat.Message{}, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query := `SELECT id, conversation_id, sender, content, position, metadata, mood_label, created_at
		FROM messages WHERE conversation_id = ? ORDER BY position ASC`
	args := []any{conversationID}
	if limit > 0 {
		// Last N messages, still returned oldest-first.
		query = `SELECT id, conversation_id, sender, content, position, metadata, mood_label, created_at
			FROM (SELECT * FROM messages WHERE conversation_id = ? ORDER BY position DESC LIMIT ?)
			ORDER BY position ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, limit)
	for rows.Next() {
		var msg chat.Message
		var metadata, moodLabel sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Sender, &msg.Content,
			&msg.Position, &metadata, &moodLabel, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		msg.MoodLabel = moodLabel.String
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, a crisis.Assessment) error {
	patterns, err := json.Marshal(a.MatchedPatterns)
	if err != nil {
		return fmt.Errorf("encode matched patterns: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (user_id, score, level, matched_patterns, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.Score, string(a.Level), string(patterns), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveMoodEntry(ctx context.Context, e mood.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mood_entries (user_id, label, intensity, confidence, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Label), e.Intensity, e.Confidence, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert mood entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMoodEntries(ctx context.Context, userID string, limit int) ([]mood.Entry, error) {
	query := `SELECT user_id, label, intensity, confidence, note, created_at
		FROM mood_entries WHERE user_id = ? ORDER BY created_at ASC`
	args := []any{userID}
	if limit > 0 {
		query = `SELECT user_id, label, intensity, confidence, note, created_at
			FROM (SELECT * FROM mood_entries WHERE user_id = ? ORDER BY created_at DESC LIMIT ?)
			ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mood entries: %w", err)
	}
	defer rows.Close()

	var out []mood.Entry
	for rows.Next() {
		var e mood.Entry
		var label string
		var note sql.NullString
		if err := rows.Scan(&e.UserID, &label, &e.Intensity, &e.Confidence, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		e.Label = mood.Label(label)
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateEscalation(ctx context.Context, rec escalation.Record) (escalation.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = escalation.StatusPending
	}

	metadata, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return escalation.Record{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, institution_id, user_id, severity, risk_score, risk_level, reason, status, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.InstitutionID, rec.UserID, string(rec.Severity), rec.RiskScore,
		string(rec.RiskLevel), rec.Reason, string(rec.Status), metadata, rec.CreatedAt)
	if err != nil {
		return escalation.Record{}, fmt.Errorf("insert escalation: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetEscalation(ctx context.Context, id string) (escalation.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, institution_id, user_id, severity, risk_score, risk_level, reason, status, metadata, created_at
		 FROM escalations WHERE id = ?`, id)

	rec, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return escalation.Record{}, ErrEscalationNotFound
	}
	return rec, err
}

func (s *SQLiteStore) ListEscalationsByInstitution(ctx context.Context, institutionID string) ([]escalation.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, institution_id, user_id, severity, risk_score, risk_level, reason, status, metadata, created_at
		 FROM escalations WHERE institution_id = ? ORDER BY created_at DESC`, institutionID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []escalation.Record
	for rows.Next() {
		rec, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AcknowledgeEscalation(ctx context.Context, id string) (escalation.Record, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET status = ? WHERE id = ?`, string(escalation.StatusAcknowledged), id)
	if err != nil {
		return escalation.Record{}, fmt.Errorf("acknowledge escalation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return escalation.Record{}, err
	}
	if affected == 0 {
		return escalation.Record{}, ErrEscalationNotFound
	}
	return s.GetEscalation(ctx, id)
}

func (s *SQLiteStore) GetPrivacyFlags(ctx context.Context, userID string) (privacy.Flags, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, share_mood, share_conversation FROM privacy_flags WHERE user_id = ?`, userID)

	var flags privacy.Flags
	var shareMood, shareConversation int
	err := row.Scan(&flags.UserID, &shareMood, &shareConversation)
	if errors.Is(err, sql.ErrNoRows) {
		return privacy.Defaults(userID), nil
	}
	if err != nil {
		return privacy.Flags{}, fmt.Errorf("get privacy flags: %w", err)
	}
	flags.ShareMood = shareMood != 0
	flags.ShareConversation = shareConversation != 0
	return flags, nil
}

func (s *SQLiteStore) SetPrivacyFlags(ctx context.Context, flags privacy.Flags) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO privacy_flags (user_id, share_mood, share_conversation) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET share_mood = excluded.share_mood, share_conversation = excluded.share_conversation`,
		flags.UserID, boolToInt(flags.ShareMood), boolToInt(flags.ShareConversation))
	if err != nil {
		return fmt.Errorf("set privacy flags: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendAccessLog(ctx context.Context, entry privacy.AccessLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO access_log (actor_id, subject_id, resource, action, outcome, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ActorID, entry.SubjectID, entry.Resource, entry.Action, string(entry.Outcome), metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (chat.Conversation, error) {
	var conv chat.Conversation
	var owner string
	if err := row.Scan(&conv.ID, &owner, &conv.CreatedAt, &conv.LastActiveAt); err != nil {
		return chat.Conversation{}, err
	}
	conv.Participants = []string{owner, chat.SenderAssistant}
	return conv, nil
}

func scanEscalation(row rowScanner) (escalation.Record, error) {
	var rec escalation.Record
	var institutionID, reason, metadata sql.NullString
	var severity, level, status string
	if err := row.Scan(&rec.ID, &institutionID, &rec.UserID, &severity, &rec.RiskScore,
		&level, &reason, &status, &metadata, &rec.CreatedAt); err != nil {
		return escalation.Record{}, err
	}
	rec.InstitutionID = institutionID.String
	rec.Severity = escalation.Severity(severity)
	rec.RiskLevel = crisis.Level(level)
	rec.Reason = reason.String
	rec.Status = escalation.Status(status)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return escalation.Record{}, fmt.Errorf("decode escalation metadata: %w", err)
		}
	}
	return rec, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
