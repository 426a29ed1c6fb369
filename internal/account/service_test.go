package account

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	user  User
	token string
	err   error
	got   LoginRequest
}

func (f *fakeBackend) Login(_ context.Context, req LoginRequest) (User, string, error) {
	f.got = req
	return f.user, f.token, f.err
}

func newTestService(t *testing.T, backend *fakeBackend) (*Service, *MemoryStore) {
	t.Helper()
	sealer, err := NewSealer("test-secret-1234567890")
	if err != nil {
		t.Fatal(err)
	}
	store := NewMemoryStore()
	return NewService(backend, store, sealer, NewSession(), WithTokenTTL(time.Hour)), store
}

func TestService_Login(t *testing.T) {
	backend := &fakeBackend{
		user: User{
			ID: "t1", Name: "Ms. Ada", Email: "ada@school.test", Role: RoleTeacher,
			Classes: []Class{{ID: "c9a", Name: "9A"}, {ID: "c9b", Name: "9B"}},
		},
		token: "opaque-token",
	}
	svc, store := newTestService(t, backend)

	user, err := svc.Login(context.Background(), "ada@school.test", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if backend.got.Role != RoleTeacher {
		t.Errorf("login role = %q, want teacher", backend.got.Role)
	}
	if user.FirstClassID() != "c9a" {
		t.Errorf("FirstClassID() = %q, want c9a", user.FirstClassID())
	}
	if svc.Session().Token() != "opaque-token" {
		t.Errorf("session token = %q, want opaque-token", svc.Session().Token())
	}

	rec, err := store.GetAccount(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if len(rec.SealedToken) == 0 || string(rec.SealedToken) == "opaque-token" {
		t.Error("stored token should be sealed")
	}
	if rec.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be set from the fallback TTL")
	}
}

func TestService_LoginValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})

	tests := []struct {
		name, email, password string
	}{
		{"missing email", "", "secret"},
		{"bad email", "not-an-email", "secret"},
		{"missing password", "ada@school.test", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tt.email, tt.password); err == nil {
				t.Error("Login() should fail validation")
			}
		})
	}
}

func TestService_LoginBackendError(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{err: errors.New("401")})

	_, err := svc.Login(context.Background(), "ada@school.test", "wrong")
	if !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Login() error = %v, want ErrLoginFailed", err)
	}
	if svc.Session().Authenticated() {
		t.Error("session should stay signed out")
	}
}

func TestService_HandleUnauthorizedClearsCredentials(t *testing.T) {
	svc, store := newTestService(t, &fakeBackend{
		user:  User{ID: "t1", Email: "ada@school.test", Role: RoleTeacher},
		token: "tok",
	})
	ctx := context.Background()
	if _, err := svc.Login(ctx, "ada@school.test", "secret"); err != nil {
		t.Fatal(err)
	}

	svc.HandleUnauthorized()

	if svc.Session().Authenticated() {
		t.Error("session should be cleared after 401")
	}
	rec, _ := store.GetAccount(ctx, "t1")
	if len(rec.SealedToken) != 0 {
		t.Error("stored token should be cleared after 401")
	}
	if _, err := svc.Restore(ctx, "t1"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Restore() error = %v, want ErrNotSignedIn", err)
	}
}

func TestService_Restore(t *testing.T) {
	backend := &fakeBackend{user: User{ID: "t1", Email: "ada@school.test", Role: RoleTeacher}, token: "tok"}
	svc, store := newTestService(t, backend)
	ctx := context.Background()
	if _, err := svc.Login(ctx, "ada@school.test", "secret"); err != nil {
		t.Fatal(err)
	}

	// A fresh surface sharing the store.
	fresh := NewService(backend, store, svc.sealer, NewSession())
	user, err := fresh.Restore(ctx, "t1")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if user.ID != "t1" || fresh.Session().Token() != "tok" {
		t.Errorf("Restore() user=%+v token=%q", user, fresh.Session().Token())
	}

	fresh.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := fresh.Restore(ctx, "t1"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Restore() after expiry error = %v, want ErrSessionExpired", err)
	}
}

func TestSession_ExpiredTokenIsEmpty(t *testing.T) {
	s := NewSession()
	s.set(Credentials{Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)})
	if s.Token() != "" {
		t.Error("expired token should not be handed out")
	}
}

func TestService_Theme(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})
	ctx := context.Background()

	theme, err := svc.Theme(ctx, "t1")
	if err != nil || theme != ThemeDark {
		t.Fatalf("Theme() = %q, %v; want dark default", theme, err)
	}

	next, err := svc.ToggleTheme(ctx, "t1")
	if err != nil || next != ThemeLight {
		t.Fatalf("ToggleTheme() = %q, %v; want light", next, err)
	}
	if theme, _ := svc.Theme(ctx, "t1"); theme != ThemeLight {
		t.Errorf("Theme() after toggle = %q, want light", theme)
	}

	if err := svc.SetTheme(ctx, "t1", Theme("blue")); !errors.Is(err, ErrBadTheme) {
		t.Errorf("SetTheme(blue) error = %v, want ErrBadTheme", err)
	}
}
