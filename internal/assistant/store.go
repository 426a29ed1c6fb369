package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// StoredMessage is one turn of a conversation.
type StoredMessage struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"inputTokens,omitempty"`
	OutputTokens int       `json:"outputTokens,omitempty"`
	Flagged      bool      `json:"flagged,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Conversation is a teacher's assistant chat.
type Conversation struct {
	ID          string          `json:"id"`
	TeacherID   string          `json:"teacherId"`
	Messages    []StoredMessage `json:"messages"`
	Summary     string          `json:"summary,omitempty"`
	CompactedAt int             `json:"compactedAt,omitempty"` // messages folded into Summary
	StartedAt   time.Time       `json:"startedAt"`
	EndedAt     *time.Time      `json:"endedAt,omitempty"`
}

// Flagged returns the flagged messages.
func (c *Conversation) Flagged() []StoredMessage {
	var out []StoredMessage
	for _, m := range c.Messages {
		if m.Flagged {
			out = append(out, m)
		}
	}
	return out
}

// Store persists conversations and their messages.
type Store interface {
	CreateConversation(teacherID string) (string, error)
	GetConversation(id string) (*Conversation, error)
	GetActiveConversation(teacherID string) (*Conversation, bool)
	AddMessage(conversationID string, msg StoredMessage) error
	SetSummary(conversationID string, summary string, compactedAt int) error
	FlagMessage(conversationID string, index int) error
	EndConversation(id string) error
}

// MemoryStore keeps conversations in process.
type MemoryStore struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*Conversation)}
}

func (s *MemoryStore) CreateConversation(teacherID string) (string, error) {
	if teacherID == "" {
		return "", fmt.Errorf("teacher_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.conversations[id] = &Conversation{
		ID:        id,
		TeacherID: teacherID,
		Messages:  []StoredMessage{},
		StartedAt: time.Now(),
	}
	return id, nil
}

// GetConversation returns a copy of the conversation.
func (s *MemoryStore) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return copyConversation(conv), nil
}

func (s *MemoryStore) GetActiveConversation(teacherID string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Conversation
	for _, conv := range s.conversations {
		if conv.TeacherID != teacherID || conv.EndedAt != nil {
			continue
		}
		if latest == nil || conv.StartedAt.After(latest.StartedAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, false
	}
	return copyConversation(latest), true
}

func (s *MemoryStore) AddMessage(conversationID string, msg StoredMessage) error {
	if msg.Role == "" || msg.Content == "" {
		return fmt.Errorf("message role and content are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	conv.Messages = append(conv.Messages, msg)
	return nil
}

func (s *MemoryStore) SetSummary(conversationID string, summary string, compactedAt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	conv.Summary = summary
	conv.CompactedAt = compactedAt
	return nil
}

func (s *MemoryStore) FlagMessage(conversationID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if index < 0 || index >= len(conv.Messages) {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, index)
	}
	conv.Messages[index].Flagged = true
	return nil
}

func (s *MemoryStore) EndConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	now := time.Now()
	conv.EndedAt = &now
	return nil
}

func copyConversation(c *Conversation) *Conversation {
	out := *c
	out.Messages = append([]StoredMessage{}, c.Messages...)
	return &out
}

// PurgeEndedBefore removes conversations that ended before cutoff.
func (s *MemoryStore) PurgeEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, conv := range s.conversations {
		if conv.EndedAt != nil && conv.EndedAt.Before(cutoff) {
			delete(s.conversations, id)
			n++
		}
	}
	return n, nil
}
