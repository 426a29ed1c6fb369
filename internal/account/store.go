package account

import (
	"context"
	"sync"
	"time"
)

// Record is a persisted account with its sealed token.
type Record struct {
	User        User
	SealedToken []byte
	ExpiresAt   time.Time
	UpdatedAt   time.Time
}

// Store persists accounts and preferences.
type Store interface {
	SaveAccount(ctx context.Context, rec Record) error
	GetAccount(ctx context.Context, userID string) (Record, error)
	ClearToken(ctx context.Context, userID string) error
	GetPreference(ctx context.Context, ownerID, key string) (string, bool, error)
	SetPreference(ctx context.Context, ownerID, key, value string) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	accounts map[string]Record
	prefs    map[string]map[string]string
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]Record),
		prefs:    make(map[string]map[string]string),
	}
}

func (s *MemoryStore) SaveAccount(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	s.accounts[rec.User.ID] = rec
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ClearToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[userID]
	if !ok {
		return nil
	}
	rec.SealedToken = nil
	rec.ExpiresAt = time.Time{}
	s.accounts[userID] = rec
	return nil
}

func (s *MemoryStore) GetPreference(_ context.Context, ownerID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prefs[ownerID][key]
	return v, ok, nil
}

func (s *MemoryStore) SetPreference(_ context.Context, ownerID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs[ownerID] == nil {
		s.prefs[ownerID] = make(map[string]string)
	}
	s.prefs[ownerID][key] = value
	return nil
}
