package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/teachmate/internal/platform/validation"
)

const themeKey = "theme"

// Theme is the dashboard colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadTheme, s)
	}
}

// LoginBackend exchanges credentials for a user record and token.
type LoginBackend interface {
	Login(ctx context.Context, req LoginRequest) (User, string, error)
}

// Service signs teachers in and out and owns their preferences.
type Service struct {
	backend      LoginBackend
	store        Store
	sealer       *Sealer
	session      *Session
	tokenTTL     time.Duration
	defaultTheme Theme
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL sets the lifetime assumed for tokens without an exp claim.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = d
	}
}

// WithDefaultTheme sets the theme returned before a teacher picks one.
func WithDefaultTheme(t Theme) Option {
	return func(s *Service) {
		s.defaultTheme = t
	}
}

// NewService creates an account service bound to session.
func NewService(backend LoginBackend, store Store, sealer *Sealer, session *Session, opts ...Option) *Service {
	s := &Service{
		backend:      backend,
		store:        store,
		sealer:       sealer,
		session:      session,
		tokenTTL:     7 * 24 * time.Hour,
		defaultTheme: ThemeDark,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session this service signs in to.
func (s *Service) Session() *Session { return s.session }

// Login signs a teacher in and persists the sealed token.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	req := LoginRequest{Email: email, Password: password, Role: RoleTeacher}
	if err := validation.Struct(req); err != nil {
		return User{}, err
	}

	user, token, err := s.backend.Login(ctx, req)
	if err != nil {
		slog.Warn("login failed", "email", email, "error", err)
		return User{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if user.Classes == nil {
		user.Classes = []Class{}
	}

	now := s.now()
	creds := Credentials{User: user, Token: token}
	if token != "" {
		creds.ExpiresAt = TokenExpiry(token, now, s.tokenTTL)
	}

	rec := Record{User: user, ExpiresAt: creds.ExpiresAt}
	if token != "" {
		sealed, err := s.sealer.Seal(token)
		if err != nil {
			return User{}, fmt.Errorf("sealing token: %w", err)
		}
		rec.SealedToken = sealed
	}
	if err := s.store.SaveAccount(ctx, rec); err != nil {
		return User{}, fmt.Errorf("saving account: %w", err)
	}

	s.session.set(creds)
	slog.Info("teacher signed in", "teacher_id", user.ID, "classes", len(user.Classes))
	return user, nil
}

// Restore signs the session back in from the stored token of userID.
func (s *Service) Restore(ctx context.Context, userID string) (User, error) {
	rec, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if len(rec.SealedToken) == 0 {
		return User{}, ErrNotSignedIn
	}
	if !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt) {
		return User{}, ErrSessionExpired
	}
	token, err := s.sealer.Open(rec.SealedToken)
	if err != nil {
		return User{}, err
	}
	s.session.set(Credentials{User: rec.User, Token: token, ExpiresAt: rec.ExpiresAt})
	return rec.User, nil
}

// Logout clears the session and the stored token.
func (s *Service) Logout(ctx context.Context) error {
	userID, ok := s.session.clear()
	if !ok {
		return nil
	}
	if err := s.store.ClearToken(ctx, userID); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	slog.Info("teacher signed out", "teacher_id", userID)
	return nil
}

// HandleUnauthorized is the gateway's 401 callback: the credential is dropped
// and the surface must send the teacher to login.
func (s *Service) HandleUnauthorized() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Logout(ctx); err != nil {
		slog.Error("clearing expired credential", "error", err)
	}
}

// Theme returns the teacher's theme, falling back to the default.
func (s *Service) Theme(ctx context.Context, userID string) (Theme, error) {
	v, ok, err := s.store.GetPreference(ctx, userID, themeKey)
	if err != nil {
		return s.defaultTheme, err
	}
	if !ok {
		return s.defaultTheme, nil
	}
	t, err := ParseTheme(v)
	if err != nil {
		return s.defaultTheme, nil
	}
	return t, nil
}

func (s *Service) SetTheme(ctx context.Context, userID string, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	return s.store.SetPreference(ctx, userID, themeKey, string(t))
}

// ToggleTheme flips light and dark and returns the new theme.
func (s *Service) ToggleTheme(ctx context.Context, userID string) (Theme, error) {
	cur, err := s.Theme(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	next := ThemeDark
	if cur == ThemeDark {
		next = ThemeLight
	}
	if err := s.SetTheme(ctx, userID, next); err != nil {
		return "", err
	}
	return next, nil
}
