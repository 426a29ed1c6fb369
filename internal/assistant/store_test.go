package assistant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/platform/database/dbtest"
)

type purgingStore interface {
	assistant.Store
	PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func exerciseStore(t *testing.T, store purgingStore) {
	t.Helper()

	if _, err := store.CreateConversation(""); err == nil {
		t.Error("CreateConversation(\"\") error = nil")
	}
	if _, ok := store.GetActiveConversation("t1"); ok {
		t.Fatal("GetActiveConversation() found a conversation in an empty store")
	}

	id, err := store.CreateConversation("t1")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	msgs := []assistant.StoredMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi", Model: "m", InputTokens: 3, OutputTokens: 2},
	}
	for _, m := range msgs {
		if err := store.AddMessage(id, m); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}
	if err := store.AddMessage(id, assistant.StoredMessage{Role: "user"}); err == nil {
		t.Error("AddMessage(empty content) error = nil")
	}

	conv, ok := store.GetActiveConversation("t1")
	if !ok || conv.ID != id {
		t.Fatalf("GetActiveConversation() = %+v, %v", conv, ok)
	}
	if len(conv.Messages) != 2 || conv.Messages[1].Model != "m" || conv.Messages[1].OutputTokens != 2 {
		t.Errorf("messages = %+v", conv.Messages)
	}
	if conv.Messages[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}

	if err := store.SetSummary(id, "sum", 1); err != nil {
		t.Fatalf("SetSummary() error = %v", err)
	}
	if err := store.FlagMessage(id, 1); err != nil {
		t.Fatalf("FlagMessage() error = %v", err)
	}
	conv, err = store.GetConversation(id)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.Summary != "sum" || conv.CompactedAt != 1 || !conv.Messages[1].Flagged || conv.Messages[0].Flagged {
		t.Errorf("conversation = %+v", conv)
	}

	if err := store.EndConversation(id); err != nil {
		t.Fatalf("EndConversation() error = %v", err)
	}
	if _, ok := store.GetActiveConversation("t1"); ok {
		t.Error("ended conversation is still active")
	}
	conv, _ = store.GetConversation(id)
	if conv.EndedAt == nil {
		t.Error("EndedAt not set")
	}

	active, err := store.CreateConversation("t1")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	n, err := store.PurgeEndedBefore(context.Background(), time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PurgeEndedBefore() = %d, %v, want 1", n, err)
	}
	if _, err := store.GetConversation(id); !errors.Is(err, assistant.ErrConversationNotFound) {
		t.Errorf("purged conversation still readable, error = %v", err)
	}
	if _, err := store.GetConversation(active); err != nil {
		t.Errorf("active conversation was purged: %v", err)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if _, err := store.GetConversation(missing); !errors.Is(err, assistant.ErrConversationNotFound) {
		t.Errorf("GetConversation(missing) error = %v", err)
	}
	if err := store.AddMessage(missing, assistant.StoredMessage{Role: "user", Content: "x"}); !errors.Is(err, assistant.ErrConversationNotFound) {
		t.Errorf("AddMessage(missing) error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, assistant.NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := assistant.NewMemoryStore()
	id, _ := store.CreateConversation("t1")
	_ = store.AddMessage(id, assistant.StoredMessage{Role: "user", Content: "a"})

	conv, _ := store.GetConversation(id)
	conv.Messages[0].Content = "mutated"

	again, _ := store.GetConversation(id)
	if again.Messages[0].Content != "a" {
		t.Error("GetConversation() leaked internal state")
	}
}

func TestMemoryStore_LatestActive(t *testing.T) {
	store := assistant.NewMemoryStore()
	_, _ = store.CreateConversation("t1")
	time.Sleep(time.Millisecond)
	newer, _ := store.CreateConversation("t1")

	conv, ok := store.GetActiveConversation("t1")
	if !ok || conv.ID != newer {
		t.Errorf("GetActiveConversation() = %v, want %s", conv, newer)
	}
}

func TestPostgresStore(t *testing.T) {
	db := dbtest.New(t)
	store, err := assistant.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	exerciseStore(t, store)
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := assistant.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) error = nil")
	}
}
