package web

import (
	"sync"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/dashboard"
	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/selector"
)

// surface is one signed-in teacher: their credential, backend and the
// workflow state shared by every tab they have open.
type surface struct {
	teacherID   string
	session     *account.Session
	backend     Backend
	accounts    *account.Service
	curriculum  curriculum.Source
	hub         *notify.Hub
	selectors   *selectorSet
	workflow    *planner.Workflow
	assessments *assessment.Service
	dashboard   *dashboard.Service

	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

func (s *Server) newSurface() *surface {
	sf := &surface{
		session:   account.NewSession(),
		hub:       notify.NewHub(),
		selectors: &selectorSet{m: make(map[*selector.CurriculumSelector]struct{})},
		watchers:  make(map[chan struct{}]struct{}),
	}

	var accounts *account.Service
	sf.backend = s.cfg.NewBackend(sf.session, func() {
		if accounts != nil {
			accounts.HandleUnauthorized()
		}
	})

	opts := []account.Option{account.WithDefaultTheme(s.cfg.DefaultTheme)}
	if s.cfg.TokenTTL > 0 {
		opts = append(opts, account.WithTokenTTL(s.cfg.TokenTTL))
	}
	accounts = account.NewService(sf.backend, s.cfg.Accounts, s.cfg.Sealer, sf.session, opts...)
	sf.accounts = accounts

	sf.curriculum = curriculum.Source(sf.backend)
	if s.cfg.Curriculum != nil {
		sf.curriculum = s.cfg.Curriculum(sf.backend)
	}

	wfOpts := []planner.Option{
		planner.WithNotifier(sf.hub),
		planner.WithEventLogger(s.cfg.Events),
		planner.WithFormResetter(sf.selectors),
		planner.WithOnChange(sf.broadcast),
		planner.WithClock(s.cfg.Now),
	}
	if p := s.cfg.Planner; p.MaxSessions > 0 {
		wfOpts = append(wfOpts, planner.WithFormDefaults(p.Sessions, p.Duration, p.MaxSessions))
	}
	sf.workflow = planner.NewWorkflow(sf.backend, wfOpts...)
	sf.assessments = assessment.NewService(sf.backend)
	sf.dashboard = dashboard.NewService(sf.backend)
	return sf
}

// user returns the signed-in teacher.
func (sf *surface) user() account.User {
	u, _ := sf.session.User()
	return u
}

// watch returns a channel signalled whenever the plan list or an in-flight
// flag changes.
func (sf *surface) watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	sf.mu.Lock()
	sf.watchers[ch] = struct{}{}
	sf.mu.Unlock()
	return ch, func() {
		sf.mu.Lock()
		delete(sf.watchers, ch)
		sf.mu.Unlock()
	}
}

func (sf *surface) broadcast() {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	for ch := range sf.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (sf *surface) close() {
	sf.selectors.closeAll()
}

// selectorSet resets every open selector of a surface once a plan is
// generated.
type selectorSet struct {
	mu sync.Mutex
	m  map[*selector.CurriculumSelector]struct{}
}

func (s *selectorSet) add(sel *selector.CurriculumSelector) {
	s.mu.Lock()
	s.m[sel] = struct{}{}
	s.mu.Unlock()
}

func (s *selectorSet) remove(sel *selector.CurriculumSelector) {
	s.mu.Lock()
	delete(s.m, sel)
	s.mu.Unlock()
}

func (s *selectorSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sel := range s.m {
		sel.Reset()
	}
}

func (s *selectorSet) closeAll() {
	s.mu.Lock()
	all := s.m
	s.m = make(map[*selector.CurriculumSelector]struct{})
	s.mu.Unlock()
	for sel := range all {
		sel.Close()
	}
}
