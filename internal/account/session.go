package account

import (
	"sync"
	"time"
)

// Session holds the signed-in teacher and bearer token for one surface. It
// is the gateway's token source.
type Session struct {
	mu    sync.RWMutex
	creds *Credentials
	now   func() time.Time
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// Token returns the bearer token, or "" when signed out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	if !s.creds.ExpiresAt.IsZero() && !s.now().Before(s.creds.ExpiresAt) {
		return ""
	}
	return s.creds.Token
}

// User returns the signed-in teacher.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return User{}, false
	}
	return s.creds.User, true
}

// Authenticated reports whether a usable token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) set(c Credentials) {
	s.mu.Lock()
	s.creds = &c
	s.mu.Unlock()
}

// clear drops the credential and returns the user it belonged to.
func (s *Session) clear() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return "", false
	}
	id := s.creds.User.ID
	s.creds = nil
	return id, true
}
