// Package assistant runs the teacher's AI chat panel: conversations with
// summary compaction and a daily token budget per teacher.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/teachmate/internal/ai"
)

const (
	defaultCompactThreshold      = 20
	defaultCompactTokenThreshold = 20000 // ~20k tokens triggers compaction
	defaultKeepRecent            = 6
	defaultMaxTokens             = 1024
)

// Greeting opens every new conversation.
const Greeting = "Hello! I'm your AI teaching assistant. How can I help you today? " +
	"I can assist with lesson planning, curriculum questions, student engagement strategies, and more!"

const fallbackReply = "Sorry, the assistant is having technical trouble. Please try again shortly."

// ErrBudgetExceeded is returned when a teacher has used up today's tokens.
var ErrBudgetExceeded = errors.New("daily AI token budget exceeded")

// QuickActions are the suggested prompts shown under the input box.
var QuickActions = []string{
	"Help me create a lesson plan",
	"Suggest engagement activities",
	"Assessment ideas",
	"Classroom management tips",
}

// Reply is the assistant's answer to one message.
type Reply struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Model          string `json:"model,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

// EngineConfig holds dependencies for the assistant engine.
type EngineConfig struct {
	AIRouter              *ai.Router
	Store                 Store
	Budget                ai.Budget // nil is unlimited
	CompactThreshold      int       // messages before compaction triggers (default 20)
	CompactTokenThreshold int       // estimated tokens before compaction triggers (default 20000)
	KeepRecent            int       // recent messages kept after compaction (default 6)
	MaxTokens             int
}

// Engine answers teacher messages.
type Engine struct {
	aiRouter              *ai.Router
	store                 Store
	budget                ai.Budget
	compactThreshold      int
	compactTokenThreshold int
	keepRecent            int
	maxTokens             int
}

// NewEngine creates an assistant engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Engine{
		aiRouter:              cfg.AIRouter,
		store:                 store,
		budget:                cfg.Budget,
		compactThreshold:      orDefault(cfg.CompactThreshold, defaultCompactThreshold),
		compactTokenThreshold: orDefault(cfg.CompactTokenThreshold, defaultCompactTokenThreshold),
		keepRecent:            orDefault(cfg.KeepRecent, defaultKeepRecent),
		maxTokens:             orDefault(cfg.MaxTokens, defaultMaxTokens),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Ask records the teacher's message and returns the assistant's answer.
// Messages starting with "/" are commands. Provider failures produce an
// apology rather than an error.
func (e *Engine) Ask(ctx context.Context, teacherID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if teacherID == "" {
		return Reply{}, fmt.Errorf("teacher_id is required")
	}
	if text == "" {
		return Reply{}, fmt.Errorf("message is empty")
	}
	slog.Info("assistant message",
		"teacher_id", teacherID,
		"text_len", len(text),
	)

	if strings.HasPrefix(text, "/") {
		return e.handleCommand(teacherID, text)
	}

	if e.budget != nil {
		ok, err := e.budget.Allow(ctx, teacherID)
		if err != nil {
			slog.Warn("budget check failed, allowing request", "teacher_id", teacherID, "error", err)
		} else if !ok {
			return Reply{}, ErrBudgetExceeded
		}
	}

	conv, err := e.getOrCreateConversation(teacherID)
	if err != nil {
		slog.Error("failed to get conversation", "teacher_id", teacherID, "error", err)
		return Reply{Content: fallbackReply}, nil
	}

	if err := e.store.AddMessage(conv.ID, StoredMessage{Role: "user", Content: text}); err != nil {
		slog.Error("failed to store user message", "conversation_id", conv.ID, "error", err)
	}
	if fresh, err := e.store.GetConversation(conv.ID); err == nil {
		conv = fresh
	}

	e.maybeCompact(ctx, teacherID, conv)

	messages := []ai.Message{{Role: "system", Content: systemPrompt}}
	messages = append(messages, buildContextMessages(conv)...)

	if e.aiRouter == nil {
		return Reply{ConversationID: conv.ID, Content: fallbackReply}, nil
	}
	resp, err := e.aiRouter.Complete(ctx, ai.CompletionRequest{
		Messages:  messages,
		Task:      ai.TaskChat,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		slog.Error("AI completion failed", "teacher_id", teacherID, "error", err)
		return Reply{ConversationID: conv.ID, Content: fallbackReply}, nil
	}
	e.record(ctx, teacherID, resp)

	if err := e.store.AddMessage(conv.ID, StoredMessage{
		Role:         "assistant",
		Content:      resp.Content,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}); err != nil {
		slog.Error("failed to store assistant message", "conversation_id", conv.ID, "error", err)
	}

	return Reply{
		ConversationID: conv.ID,
		Content:        resp.Content,
		Model:          resp.Model,
		Provider:       resp.Provider,
	}, nil
}

// History returns the teacher's active conversation, if any.
func (e *Engine) History(teacherID string) (*Conversation, bool) {
	return e.store.GetActiveConversation(teacherID)
}

// Reset ends the teacher's active conversation; the next message starts a
// new one.
func (e *Engine) Reset(teacherID string) error {
	conv, found := e.store.GetActiveConversation(teacherID)
	if !found {
		return nil
	}
	return e.store.EndConversation(conv.ID)
}

// Flag marks message index of the teacher's active conversation for review.
func (e *Engine) Flag(teacherID string, index int) error {
	conv, found := e.store.GetActiveConversation(teacherID)
	if !found {
		return fmt.Errorf("%w: no active conversation for %s", ErrConversationNotFound, teacherID)
	}
	return e.store.FlagMessage(conv.ID, index)
}

func (e *Engine) record(ctx context.Context, teacherID string, resp ai.CompletionResponse) {
	if e.budget == nil {
		return
	}
	if err := e.budget.Record(ctx, teacherID, resp.TotalTokens()); err != nil {
		slog.Warn("failed to record token usage", "teacher_id", teacherID, "error", err)
	}
}

// buildContextMessages returns the conversation for the prompt. With a
// summary, only messages after the compaction point follow it.
func buildContextMessages(conv *Conversation) []ai.Message {
	var messages []ai.Message
	recent := conv.Messages
	if conv.Summary != "" {
		messages = append(messages,
			ai.Message{Role: "user", Content: "Previous conversation summary:\n" + conv.Summary},
			ai.Message{Role: "assistant", Content: "Understood, I'll continue based on our previous conversation."},
		)
		if conv.CompactedAt <= len(recent) {
			recent = recent[conv.CompactedAt:]
		}
	}
	for _, m := range recent {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

// estimateTokens gives a rough token count (1 token per 4 chars).
func estimateTokens(messages []StoredMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

// maybeCompact summarizes everything but the most recent messages once the
// uncompacted tail passes either threshold.
func (e *Engine) maybeCompact(ctx context.Context, teacherID string, conv *Conversation) {
	if e.aiRouter == nil || conv.CompactedAt > len(conv.Messages) {
		return
	}
	uncompacted := conv.Messages[conv.CompactedAt:]
	if len(uncompacted) <= e.compactThreshold && estimateTokens(uncompacted) <= e.compactTokenThreshold {
		return
	}

	compactUpTo := len(conv.Messages) - e.keepRecent
	if compactUpTo <= conv.CompactedAt {
		return
	}

	var content strings.Builder
	if conv.Summary != "" {
		content.WriteString("Previous summary:\n")
		content.WriteString(conv.Summary)
		content.WriteString("\n\nNew messages to incorporate:\n")
	}
	for _, m := range conv.Messages[conv.CompactedAt:compactUpTo] {
		role := "Teacher"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&content, "%s: %s\n", role, m.Content)
	}

	resp, err := e.aiRouter.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: content.String()},
		},
		Task:      ai.TaskSummarize,
		MaxTokens: 256,
	})
	if err != nil {
		slog.Warn("compaction failed, continuing without summary", "conversation_id", conv.ID, "error", err)
		return
	}
	e.record(ctx, teacherID, resp)

	if err := e.store.SetSummary(conv.ID, resp.Content, compactUpTo); err != nil {
		slog.Warn("failed to save summary", "conversation_id", conv.ID, "error", err)
		return
	}
	conv.Summary = resp.Content
	conv.CompactedAt = compactUpTo

	slog.Info("conversation compacted",
		"conversation_id", conv.ID,
		"compacted_messages", compactUpTo,
		"remaining_messages", len(conv.Messages)-compactUpTo,
	)
}

func (e *Engine) getOrCreateConversation(teacherID string) (*Conversation, error) {
	if conv, found := e.store.GetActiveConversation(teacherID); found {
		return conv, nil
	}
	id, err := e.store.CreateConversation(teacherID)
	if err != nil {
		return nil, err
	}
	if err := e.store.AddMessage(id, StoredMessage{Role: "assistant", Content: Greeting}); err != nil {
		slog.Warn("failed to store greeting", "conversation_id", id, "error", err)
	}
	return e.store.GetConversation(id)
}

func (e *Engine) handleCommand(teacherID, text string) (Reply, error) {
	cmd := strings.Fields(text)[0]
	switch cmd {
	case "/new", "/start":
		if err := e.Reset(teacherID); err != nil {
			slog.Error("failed to end conversation", "teacher_id", teacherID, "error", err)
		}
		return Reply{Content: Greeting}, nil
	case "/help":
		return Reply{Content: "Try one of:\n- " + strings.Join(QuickActions, "\n- ")}, nil
	default:
		return Reply{Content: fmt.Sprintf("Unknown command: %s\nUse /new to start over.", cmd)}, nil
	}
}

const systemPrompt = `You are TeachMate, an assistant for school teachers.

HELP WITH: lesson planning, curriculum questions, assessment ideas, student
engagement strategies and classroom management.

STYLE:
- Practical, classroom-ready suggestions
- Short paragraphs and lists; this is a chat panel, not a report
- Ask which grade, subject or chapter when it changes the answer
- Respond in the language the teacher writes in

RULES:
- Never invent student data; ask for it
- Say so when unsure instead of guessing`

const summaryPrompt = `Summarize this conversation between a teacher and their assistant concisely. Capture:
- Grades, subjects and chapters discussed
- Plans, activities or assessments agreed on
- Open questions the teacher still has
Keep the summary under 150 words. Write in the same language used in the conversation.`
