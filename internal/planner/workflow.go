package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/platform/validation"
)

// Backend is the remote side of the workflow. gateway.Client satisfies it.
type Backend interface {
	GeneratePlan(ctx context.Context, req GenerateRequest) (LessonPlan, error)
	ListPlans(ctx context.Context, teacherID string) ([]LessonPlan, error)
	CompleteSession(ctx context.Context, planID string, n int) (Ack, error)
	CreateSessionAssessment(ctx context.Context, planID string, n int, cfg AssessmentConfig) (Ack, error)
}

// FormResetter clears the curriculum selection after a plan is generated.
// selector.CurriculumSelector satisfies it.
type FormResetter interface {
	Reset()
}

// Form holds the non-curriculum inputs of the generation form.
type Form struct {
	SessionCount    int `json:"sessionCount"`
	SessionDuration int `json:"sessionDuration"`
}

const (
	DefaultSessions    = 3
	DefaultDuration    = 45
	DefaultMaxSessions = 20
)

// Option configures a Workflow.
type Option func(*Workflow)

// WithNotifier sets where toasts go.
func WithNotifier(n notify.Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

// WithEventLogger records workflow events.
func WithEventLogger(l EventLogger) Option {
	return func(w *Workflow) { w.events = l }
}

// WithFormResetter is reset together with the form after generation.
func WithFormResetter(r FormResetter) Option {
	return func(w *Workflow) { w.resetter = r }
}

// WithFormDefaults sets the form defaults and the session-count bound.
func WithFormDefaults(sessions, duration, maxSessions int) Option {
	return func(w *Workflow) {
		if sessions > 0 {
			w.defaults.SessionCount = sessions
		}
		if duration > 0 {
			w.defaults.SessionDuration = duration
		}
		if maxSessions > 0 {
			w.maxSessions = maxSessions
		}
	}
}

// WithOnChange is called after every state change, outside the lock.
func WithOnChange(fn func()) Option {
	return func(w *Workflow) { w.onChange = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

type sessionKey struct {
	planID string
	n      int
}

// Workflow owns one surface's lesson plans and drives the per-session state
// machine. Local state changes only after the backend acknowledges.
type Workflow struct {
	backend  Backend
	notifier notify.Notifier
	events   EventLogger
	resetter FormResetter
	onChange func()
	now      func() time.Time

	defaults    Form
	maxSessions int

	mu         sync.Mutex
	plans      []LessonPlan
	form       Form
	generating bool
	inflight   map[sessionKey]bool
}

// NewWorkflow creates a workflow over backend.
func NewWorkflow(backend Backend, opts ...Option) *Workflow {
	w := &Workflow{
		backend:     backend,
		notifier:    notify.Func(func(notify.Notification) {}),
		events:      NopEventLogger{},
		now:         time.Now,
		defaults:    Form{SessionCount: DefaultSessions, SessionDuration: DefaultDuration},
		maxSessions: DefaultMaxSessions,
		inflight:    make(map[sessionKey]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.form = w.defaults
	return w
}

// Plans returns a copy of the plan list.
func (w *Workflow) Plans() []LessonPlan {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]LessonPlan, len(w.plans))
	for i, p := range w.plans {
		out[i] = clonePlan(p)
	}
	return out
}

// Plan returns a copy of the plan with id.
func (w *Workflow) Plan(id string) (LessonPlan, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.findLocked(id)
	if p == nil {
		return LessonPlan{}, false
	}
	return clonePlan(*p), true
}

// Form returns the current form values.
func (w *Workflow) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// SetForm replaces the form values. Zero fields keep their current value.
func (w *Workflow) SetForm(f Form) {
	w.mu.Lock()
	if f.SessionCount != 0 {
		w.form.SessionCount = f.SessionCount
	}
	if f.SessionDuration != 0 {
		w.form.SessionDuration = f.SessionDuration
	}
	w.mu.Unlock()
	w.changed()
}

// MaxSessions is the upper bound on the generated session count.
func (w *Workflow) MaxSessions() int {
	return w.maxSessions
}

// Generating reports whether a generation request is outstanding.
func (w *Workflow) Generating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generating
}

// Busy reports whether session n of planID has a transition in flight.
func (w *Workflow) Busy(planID string, n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inflight[sessionKey{planID, n}]
}

// ListPlans reloads the teacher's plans. On failure the list is emptied.
func (w *Workflow) ListPlans(ctx context.Context, teacherID string) ([]LessonPlan, error) {
	plans, err := w.backend.ListPlans(ctx, teacherID)
	if err != nil {
		w.mu.Lock()
		w.plans = nil
		w.mu.Unlock()
		w.changed()
		return nil, w.fail(notify.KindLoadFailure, "list_plans", "Failed to load lesson plans", err)
	}

	w.mu.Lock()
	w.plans = plans
	w.mu.Unlock()
	w.changed()
	return w.Plans(), nil
}

// GeneratePlan validates req, asks the backend for a plan and stores it at
// the head of the list. The form is reset only on success.
func (w *Workflow) GeneratePlan(ctx context.Context, req GenerateRequest) (LessonPlan, error) {
	if err := w.validateGenerate(req); err != nil {
		return LessonPlan{}, err
	}

	w.mu.Lock()
	if w.generating {
		w.mu.Unlock()
		return LessonPlan{}, ErrInFlight
	}
	w.generating = true
	w.mu.Unlock()
	w.changed()

	defer func() {
		w.mu.Lock()
		w.generating = false
		w.mu.Unlock()
		w.changed()
	}()

	plan, err := w.backend.GeneratePlan(ctx, req)
	if err != nil {
		return LessonPlan{}, w.fail(notify.KindGenerationFailure, "generate_plan", "Failed to generate lesson plan", err)
	}

	for i := range plan.Sessions {
		s := &plan.Sessions[i]
		s.Completed = false
		s.CompletedAt = nil
		s.HasAssessment = false
		s.AssessmentID = ""
	}
	if plan.TotalSessions == 0 {
		plan.TotalSessions = len(plan.Sessions)
	}
	if err := plan.CheckSessions(); err != nil {
		return LessonPlan{}, w.fail(notify.KindGenerationFailure, "generate_plan", "Failed to generate lesson plan", err)
	}
	if plan.TotalSessions != req.SessionCount {
		err := fmt.Errorf("requested %d sessions, backend returned %d", req.SessionCount, plan.TotalSessions)
		return LessonPlan{}, w.fail(notify.KindGenerationFailure, "generate_plan", "Failed to generate lesson plan", err)
	}

	reloaded, reloadErr := w.backend.ListPlans(ctx, req.TeacherID)
	if reloadErr != nil {
		slog.Warn("reloading plans after generation failed",
			"teacher_id", req.TeacherID,
			"error", reloadErr,
		)
	}

	w.mu.Lock()
	if reloadErr == nil {
		w.plans = reloaded
	}
	if w.findLocked(plan.ID) == nil {
		w.plans = append([]LessonPlan{clonePlan(plan)}, w.plans...)
	}
	w.form = w.defaults
	w.mu.Unlock()

	if w.resetter != nil {
		w.resetter.Reset()
	}

	w.logEvent(Event{
		TeacherID: req.TeacherID,
		PlanID:    plan.ID,
		EventType: EventPlanGenerated,
		Data: map[string]any{
			"grade_id":   req.GradeID,
			"subject_id": req.SubjectID,
			"chapter_id": req.ChapterID,
			"sessions":   plan.TotalSessions,
		},
	})
	w.notify(notify.KindSuccess, "generate_plan", "Lesson plan generated successfully!")
	w.changed()

	slog.Info("lesson plan generated",
		"teacher_id", req.TeacherID,
		"plan_id", plan.ID,
		"sessions", plan.TotalSessions,
	)
	return plan, nil
}

func (w *Workflow) validateGenerate(req GenerateRequest) error {
	if err := validation.Struct(req); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) && len(verr.Fields) > 0 {
			f := verr.Fields[0]
			return w.invalid("generate_plan", f.Field, f.Message)
		}
		return w.invalid("generate_plan", "form", err.Error())
	}
	if req.SessionCount > w.maxSessions {
		return w.invalid("generate_plan", "sessionCount",
			fmt.Sprintf("Number of sessions must be between 1 and %d", w.maxSessions))
	}
	return nil
}

// CompleteSession marks a Pending session as taught.
func (w *Workflow) CompleteSession(ctx context.Context, planID string, n int) error {
	key := sessionKey{planID, n}

	w.mu.Lock()
	s, err := w.sessionLocked(planID, n)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if s.State() != SessionPending {
		w.mu.Unlock()
		return fmt.Errorf("session %d of plan %s: %w", n, planID, ErrSessionNotPending)
	}
	if w.inflight[key] {
		w.mu.Unlock()
		return ErrInFlight
	}
	w.inflight[key] = true
	teacherID := w.findLocked(planID).TeacherID
	w.mu.Unlock()
	w.changed()
	defer w.release(key)

	if _, err := w.backend.CompleteSession(ctx, planID, n); err != nil {
		return w.fail(notify.KindTransitionFailure, "complete_session", "Failed to mark session as complete", err)
	}

	at := w.now()
	w.mu.Lock()
	if s, err := w.sessionLocked(planID, n); err == nil {
		s.Completed = true
		s.CompletedAt = &at
	}
	w.mu.Unlock()

	w.logEvent(Event{
		TeacherID:     teacherID,
		PlanID:        planID,
		SessionNumber: n,
		EventType:     EventSessionCompleted,
	})
	w.notify(notify.KindSuccess, "complete_session", "Session "+strconv.Itoa(n)+" marked as complete!")
	return nil
}

// CreateAssessmentForSession links a new assessment to a Completed session
// and returns the backend's assessment id, which may be empty.
func (w *Workflow) CreateAssessmentForSession(ctx context.Context, planID string, n int, cfg AssessmentConfig) (string, error) {
	key := sessionKey{planID, n}

	w.mu.Lock()
	s, err := w.sessionLocked(planID, n)
	if err != nil {
		w.mu.Unlock()
		return "", err
	}
	switch s.State() {
	case SessionPending:
		w.mu.Unlock()
		return "", fmt.Errorf("session %d of plan %s: %w", n, planID, ErrSessionNotCompleted)
	case SessionAssessed:
		w.mu.Unlock()
		return "", fmt.Errorf("session %d of plan %s: %w", n, planID, ErrAssessmentLinked)
	}
	teacherID := w.findLocked(planID).TeacherID
	w.mu.Unlock()

	if err := w.validateAssessment(cfg); err != nil {
		return "", err
	}

	w.mu.Lock()
	if w.inflight[key] {
		w.mu.Unlock()
		return "", ErrInFlight
	}
	w.inflight[key] = true
	w.mu.Unlock()
	w.changed()
	defer w.release(key)

	ack, err := w.backend.CreateSessionAssessment(ctx, planID, n, cfg)
	if err != nil {
		return "", w.fail(notify.KindTransitionFailure, "create_assessment", "Failed to create assessment", err)
	}

	w.mu.Lock()
	if s, err := w.sessionLocked(planID, n); err == nil {
		s.HasAssessment = true
		s.AssessmentID = ack.AssessmentID
	}
	w.mu.Unlock()

	w.logEvent(Event{
		TeacherID:     teacherID,
		PlanID:        planID,
		SessionNumber: n,
		EventType:     EventAssessmentCreated,
		Data: map[string]any{
			"assessment_id": ack.AssessmentID,
			"class_id":      cfg.ClassID,
			"duration":      cfg.Duration,
		},
	})
	w.notify(notify.KindSuccess, "create_assessment", "Assessment created for session "+strconv.Itoa(n)+"!")
	return ack.AssessmentID, nil
}

func (w *Workflow) validateAssessment(cfg AssessmentConfig) error {
	if cfg.ClassID == "" {
		return w.invalid("create_assessment", "class", "Please select a class")
	}
	if !cfg.DueDate.After(cfg.OpensOn) {
		return w.invalid("create_assessment", "schedule", "Due date must be after opening date")
	}
	if cfg.Duration < 1 {
		return w.invalid("create_assessment", "duration", "Duration must be at least 1 minute")
	}
	return nil
}

func (w *Workflow) findLocked(id string) *LessonPlan {
	for i := range w.plans {
		if w.plans[i].ID == id {
			return &w.plans[i]
		}
	}
	return nil
}

func (w *Workflow) sessionLocked(planID string, n int) (*SessionDetail, error) {
	p := w.findLocked(planID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	s, ok := p.Session(n)
	if !ok {
		return nil, fmt.Errorf("%w: %d of plan %s", ErrSessionNotFound, n, planID)
	}
	return s, nil
}

func (w *Workflow) release(key sessionKey) {
	w.mu.Lock()
	delete(w.inflight, key)
	w.mu.Unlock()
	w.changed()
}

func (w *Workflow) invalid(op, rule, msg string) error {
	slog.Debug("workflow input rejected", "op", op, "rule", rule, "message", msg)
	w.notify(notify.KindValidationFailure, op, msg)
	return &ValidationError{Rule: rule, Message: msg}
}

// fail converts a remote error into a Failure, logs it and raises a toast.
// A 401 becomes an AuthFailure regardless of the operation.
func (w *Workflow) fail(kind FailureKind, op, msg string, err error) error {
	if errors.Is(err, account.ErrSessionExpired) {
		kind = notify.KindAuthFailure
		msg = "Session expired, please log in again"
	}
	slog.Warn("workflow operation failed", "op", op, "kind", kind, "error", err)
	w.notify(kind, op, msg)
	return &Failure{Kind: kind, Op: op, Message: msg, Err: err}
}

func (w *Workflow) notify(kind notify.Kind, op, msg string) {
	w.notifier.Notify(notify.Notification{Kind: kind, Op: op, Message: msg, At: w.now()})
}

func (w *Workflow) logEvent(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = w.now()
	}
	if err := w.events.LogEvent(e); err != nil {
		slog.Warn("failed to log workflow event", "type", e.EventType, "error", err)
	}
}

func (w *Workflow) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

func clonePlan(p LessonPlan) LessonPlan {
	p.Sessions = append([]SessionDetail(nil), p.Sessions...)
	for i := range p.Sessions {
		if at := p.Sessions[i].CompletedAt; at != nil {
			t := *at
			p.Sessions[i].CompletedAt = &t
		}
	}
	return p
}
