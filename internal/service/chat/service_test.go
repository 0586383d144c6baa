package chat_test

import (
	"context"
	"sync"
	"testing"

	chatmodel "github.com/sahayata/saathi/backend/internal/model/chat"
	chat "github.com/sahayata/saathi/backend/internal/service/chat"
	"github.com/sahayata/saathi/backend/internal/store"
)

func TestEnsureConversationReusesOpen(t *testing.T) {
	svc := chat.NewService(store.NewMemoryStore())
	ctx := context.Background()

	first, err := svc.EnsureConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("EnsureConversation err: %v", err)
	}

	second, err := svc.EnsureConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("EnsureConversation err: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the open conversation to be reused: %s vs %s", first.ID, second.ID)
	}
}

func TestEnsureConversationRequiresUser(t *testing.T) {
	svc := chat.NewService(store.NewMemoryStore())
	if _, err := svc.EnsureConversation(context.Background(), ""); err != chat.ErrUserRequired {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
}

func TestAppendAndTranscript(t *testing.T) {
	svc := chat.NewService(store.NewMemoryStore())
	ctx := context.Background()

	conv, err := svc.EnsureConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("EnsureConversation err: %v", err)
	}

	if _, err := svc.Append(ctx, chatmodel.Message{ConversationID: conv.ID, Sender: "user-1", Content: "hello"}); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := svc.Append(ctx, chatmodel.Message{ConversationID: conv.ID, Sender: chatmodel.SenderAssistant, Content: "hi there"}); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	transcript, err := svc.Transcript(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transcript))
	}
	if transcript[0].Sender != "user-1" || transcript[1].Sender != chatmodel.SenderAssistant {
		t.Fatalf("unexpected order: %v", transcript)
	}
}

func TestAppendRejectsBlankContent(t *testing.T) {
	svc := chat.NewService(store.NewMemoryStore())
	ctx := context.Background()

	conv, _ := svc.EnsureConversation(ctx, "user-1")
	if _, err := svc.Append(ctx, chatmodel.Message{ConversationID: conv.ID, Sender: "user-1", Content: "   "}); err != chat.ErrContentRequired {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
}

func TestEnsureConversationConcurrentFirstMessages(t *testing.T) {
	data := store.NewMemoryStore()
	svc := chat.NewService(data)
	ctx := context.Background()

	const workers = 16
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := svc.EnsureConversation(ctx, "user-1")
			if err != nil {
				t.Errorf("EnsureConversation err: %v", err)
				return
			}
			ids <- conv.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("expected one conversation for concurrent first messages, got %d", len(seen))
	}

	conversations, err := data.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations err: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 stored conversation, got %d", len(conversations))
	}
}
