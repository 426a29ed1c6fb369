package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/teachmate/internal/ai"
)

func chat(task ai.TaskType) ai.CompletionRequest {
	return ai.CompletionRequest{Messages: []ai.Message{{Role: "user", Content: "hi"}}, Task: task}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()
	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")
	router.Register("openai", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), chat(ai.TaskChat))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" || resp.Provider != "ollama" {
		t.Errorf("response = %+v", resp)
	}
	if len(failing.Requests()) != 1 {
		t.Error("failing provider should have been tried first")
	}
}

func TestRouter_TaskRouting(t *testing.T) {
	router := ai.NewRouter()
	cheap := ai.NewMockProvider("summary")
	main := ai.NewMockProvider("answer")
	router.Register("cheap", cheap, ai.TaskSummarize)
	router.Register("main", main)

	resp, err := router.Complete(context.Background(), chat(ai.TaskChat))
	if err != nil || resp.Content != "answer" {
		t.Fatalf("chat = %+v, %v", resp, err)
	}
	if len(cheap.Requests()) != 0 {
		t.Error("summarize-only provider should not receive chat")
	}

	resp, err = router.Complete(context.Background(), chat(ai.TaskSummarize))
	if err != nil || resp.Content != "summary" {
		t.Fatalf("summarize = %+v, %v", resp, err)
	}
}

func TestRouter_AllFail(t *testing.T) {
	router := ai.NewRouter()
	first := errors.New("fail 1")
	router.Register("openai", &ai.MockProvider{Err: first})
	router.Register("ollama", &ai.MockProvider{Err: errors.New("fail 2")})

	_, err := router.Complete(context.Background(), chat(ai.TaskChat))
	if !errors.Is(err, first) {
		t.Fatalf("error = %v, want it to wrap %v", err, first)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}
	if _, err := router.Complete(context.Background(), chat(ai.TaskChat)); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("error = %v, want ErrNoProvider", err)
	}

	router.Register("summaries", ai.NewMockProvider("x"), ai.TaskSummarize)
	if _, err := router.Complete(context.Background(), chat(ai.TaskChat)); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("error = %v, want ErrNoProvider for an unserved task", err)
	}
	if got := router.Providers(); len(got) != 1 || got[0] != "summaries" {
		t.Errorf("Providers() = %v", got)
	}
}
