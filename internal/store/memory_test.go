package store

import (
	"context"
	"sync"
	"testing"

	"github.com/sahayata/saathi/backend/internal/model/chat"
)

func TestAppendReadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	for _, content := range contents {
		if _, err := s.AppendMessage(ctx, chat.Message{
			ConversationID: conv.ID,
			Sender:         "user-1",
			Content:        content,
		}); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	messages, err := s.GetMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("GetMessages err: %v", err)
	}
	if len(messages) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(messages))
	}
	for i, msg := range messages {
		if msg.Content != contents[i] {
			t.Fatalf("position %d: got %q want %q", i, msg.Content, contents[i])
		}
		if msg.Position != i {
			t.Fatalf("expected position %d, got %d", i, msg.Position)
		}
		if i > 0 && msg.CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatalf("timestamps must be non-decreasing in append order")
		}
	}
}

func TestConcurrentAppendsKeepUniquePositions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AppendMessage(ctx, chat.Message{
				ConversationID: conv.ID,
				Sender:         "user-1",
				Content:        "hello",
			}); err != nil {
				t.Errorf("AppendMessage err: %v", err)
			}
		}()
	}
	wg.Wait()

	messages, err := s.GetMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("GetMessages err: %v", err)
	}
	if len(messages) != writers {
		t.Fatalf("lost or duplicated messages: got %d want %d", len(messages), writers)
	}
	seen := make(map[int]bool)
	for _, msg := range messages {
		if seen[msg.Position] {
			t.Fatalf("duplicate position %d", msg.Position)
		}
		seen[msg.Position] = true
	}
}

func TestGetMessagesLimitReturnsLatestOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1")
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		if _, err := s.AppendMessage(ctx, chat.Message{ConversationID: conv.ID, Sender: "user-1", Content: content}); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	messages, err := s.GetMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("GetMessages err: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "d" || messages[1].Content != "e" {
		t.Fatalf("expected last two oldest-first, got %v", messages)
	}
}

func TestAppendToUnknownConversation(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.AppendMessage(context.Background(), chat.Message{ConversationID: "missing", Content: "x"})
	if err != ErrConversationNotFound {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestPrivacyFlagsDefaultTrue(t *testing.T) {
	s := NewMemoryStore()
	flags, err := s.GetPrivacyFlags(context.Background(), "never-set")
	if err != nil {
		t.Fatalf("GetPrivacyFlags err: %v", err)
	}
	if !flags.ShareMood || !flags.ShareConversation {
		t.Fatalf("expected default-true flags, got %+v", flags)
	}
}
