// Package web serves the teacher dashboard to browsers: a JSON API per
// dashboard screen and the live planner WebSocket.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/dashboard"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/report"
)

const (
	cookieName   = "teachmate"
	teacherIDKey = "teacher_id"
)

// Backend is everything a signed-in surface needs from the remote API.
// gateway.Client satisfies it.
type Backend interface {
	account.LoginBackend
	curriculum.Source
	planner.Backend
	assessment.Backend
	dashboard.Backend
	StudentProgress(ctx context.Context, teacherID string) ([]report.StudentProgress, error)
}

// BackendFactory builds the backend of one surface. The backend must read
// its bearer token from session and call onUnauthorized on a 401.
type BackendFactory func(session *account.Session, onUnauthorized func()) Backend

// PlannerDefaults prefill the generation form.
type PlannerDefaults struct {
	Sessions    int
	Duration    int
	MaxSessions int
}

// Config holds the server's collaborators.
type Config struct {
	NewBackend   BackendFactory
	Accounts     account.Store
	Sealer       *account.Sealer
	Cookies      sessions.Store
	TokenTTL     time.Duration
	DefaultTheme account.Theme

	// Curriculum wraps the backend's curriculum, for caching or an offline
	// catalog. Nil uses the backend directly.
	Curriculum func(curriculum.Source) curriculum.Source

	Events    planner.EventLogger
	Planner   PlannerDefaults
	Assistant *assistant.Engine
	Templates *report.Templates
	Now       func() time.Time
}

// Server routes dashboard requests to per-teacher surfaces.
type Server struct {
	cfg Config

	mu       sync.Mutex
	surfaces map[string]*surface
}

// NewServer creates a server. Config.NewBackend, Accounts, Sealer and
// Cookies are required.
func NewServer(cfg Config) (*Server, error) {
	if cfg.NewBackend == nil || cfg.Accounts == nil || cfg.Sealer == nil || cfg.Cookies == nil {
		return nil, fmt.Errorf("web: backend factory, account store, sealer and cookie store are required")
	}
	if cfg.Events == nil {
		cfg.Events = planner.NopEventLogger{}
	}
	if cfg.Assistant == nil {
		cfg.Assistant = assistant.NewEngine(assistant.EngineConfig{})
	}
	if cfg.Templates == nil {
		t, err := report.DefaultTemplates()
		if err != nil {
			return nil, err
		}
		cfg.Templates = t
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = account.ThemeDark
	}
	return &Server{cfg: cfg, surfaces: make(map[string]*surface)}, nil
}

// Register adds the dashboard routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.authed(s.handleMe))
	mux.HandleFunc("PUT /api/preferences/theme", s.authed(s.handleSetTheme))
	mux.HandleFunc("POST /api/preferences/theme/toggle", s.authed(s.handleToggleTheme))

	mux.HandleFunc("GET /api/grades", s.authed(s.handleGrades))
	mux.HandleFunc("GET /api/grades/{grade}/subjects", s.authed(s.handleSubjects))
	mux.HandleFunc("GET /api/grades/{grade}/subjects/{subject}/chapters", s.authed(s.handleChapters))

	mux.HandleFunc("GET /api/lesson-plans", s.authed(s.handleListPlans))
	mux.HandleFunc("POST /api/lesson-plans", s.authed(s.handleGeneratePlan))
	mux.HandleFunc("GET /api/lesson-plans/form", s.authed(s.handlePlanForm))
	mux.HandleFunc("POST /api/lesson-plans/{id}/sessions/{n}/complete", s.authed(s.handleCompleteSession))
	mux.HandleFunc("GET /api/lesson-plans/{id}/sessions/{n}/assessment", s.authed(s.handleAssessmentDefaults))
	mux.HandleFunc("POST /api/lesson-plans/{id}/sessions/{n}/assessment", s.authed(s.handleCreateSessionAssessment))

	mux.HandleFunc("GET /api/assessments", s.authed(s.handleListAssessments))
	mux.HandleFunc("GET /api/assessments/stats", s.authed(s.handleAssessmentStats))
	mux.HandleFunc("POST /api/assessments", s.authed(s.handleCreateAssessment))
	mux.HandleFunc("PUT /api/assessments/{id}", s.authed(s.handleUpdateAssessment))
	mux.HandleFunc("DELETE /api/assessments/{id}", s.authed(s.handleDeleteAssessment))

	mux.HandleFunc("GET /api/dashboard", s.authed(s.handleDashboard))

	mux.HandleFunc("GET /api/reports/progress", s.authed(s.handleProgress))
	mux.HandleFunc("GET /api/reports/templates", s.authed(s.handleTemplates))
	mux.HandleFunc("POST /api/reports/render", s.authed(s.handleRenderReport))
	mux.HandleFunc("GET /api/reports/export", s.authed(s.handleExport))

	mux.HandleFunc("GET /api/assistant", s.authed(s.handleAssistant))
	mux.HandleFunc("POST /api/assistant/messages", s.authed(s.handleAsk))
	mux.HandleFunc("DELETE /api/assistant/messages", s.authed(s.handleResetChat))
	mux.HandleFunc("POST /api/assistant/messages/{index}/flag", s.authed(s.handleFlag))

	mux.HandleFunc("GET /ws/planner", s.authed(s.handleLive))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, sf *surface)

// authed resolves the request's surface or answers 401 with a login redirect.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, err := s.surfaceFor(r)
		if err != nil {
			writeError(w, err)
			return
		}
		h(w, r, sf)
	}
}

func (s *Server) teacherID(r *http.Request) string {
	sess, err := s.cfg.Cookies.Get(r, cookieName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[teacherIDKey].(string)
	return id
}

// surfaceFor returns the teacher's live surface, restoring it from the
// sealed token after a restart. An expired credential drops the surface.
func (s *Server) surfaceFor(r *http.Request) (*surface, error) {
	teacherID := s.teacherID(r)
	if teacherID == "" {
		return nil, account.ErrNotSignedIn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sf, ok := s.surfaces[teacherID]; ok {
		if sf.session.Authenticated() {
			return sf, nil
		}
		delete(s.surfaces, teacherID)
		sf.close()
		return nil, account.ErrSessionExpired
	}

	sf := s.newSurface()
	if _, err := sf.accounts.Restore(r.Context(), teacherID); err != nil {
		sf.close()
		if errors.Is(err, account.ErrNotFound) {
			return nil, account.ErrNotSignedIn
		}
		return nil, err
	}
	sf.teacherID = teacherID
	s.surfaces[teacherID] = sf
	slog.Info("surface restored", "teacher_id", teacherID)
	return sf, nil
}

func (s *Server) attach(sf *surface) {
	s.mu.Lock()
	old := s.surfaces[sf.teacherID]
	s.surfaces[sf.teacherID] = sf
	s.mu.Unlock()
	if old != nil && old != sf {
		old.close()
	}
}

func (s *Server) detach(teacherID string) {
	s.mu.Lock()
	sf := s.surfaces[teacherID]
	delete(s.surfaces, teacherID)
	s.mu.Unlock()
	if sf != nil {
		sf.close()
	}
}

// Close ends every surface.
func (s *Server) Close() {
	s.mu.Lock()
	all := s.surfaces
	s.surfaces = make(map[string]*surface)
	s.mu.Unlock()
	for _, sf := range all {
		sf.close()
	}
}
