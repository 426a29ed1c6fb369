package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/ai"
	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/dashboard"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/report"
	"github.com/p-n-ai/teachmate/internal/web"
)

var errDown = errors.New("backend unavailable")

// fakeBackend is an in-memory remote API shared by every surface of a test.
type fakeBackend struct {
	mu             sync.Mutex
	expired        bool
	onUnauthorized func()
	plans          []planner.LessonPlan
	assessments    []assessment.Assessment
	dashboardDown  bool
	nextID         int
}

func (f *fakeBackend) expire() {
	f.mu.Lock()
	f.expired = true
	f.mu.Unlock()
}

// check fails every authenticated call once the credential has expired.
func (f *fakeBackend) check() error {
	f.mu.Lock()
	expired, cb := f.expired, f.onUnauthorized
	f.mu.Unlock()
	if !expired {
		return nil
	}
	if cb != nil {
		cb()
	}
	return account.ErrSessionExpired
}

func (f *fakeBackend) Login(_ context.Context, req account.LoginRequest) (account.User, string, error) {
	if req.Password != "secret" {
		return account.User{}, "", errors.New("invalid credentials")
	}
	f.mu.Lock()
	f.expired = false
	f.mu.Unlock()
	return account.User{
		ID: "t1", Name: "Ms. Ada", Email: req.Email, Role: account.RoleTeacher,
		Classes: []account.Class{{ID: "c9a", Name: "9A"}},
	}, "token-t1", nil
}

func (f *fakeBackend) Grades(context.Context) ([]curriculum.Grade, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return []curriculum.Grade{{ID: "g9", Name: "Grade 9"}, {ID: "g10", Name: "Grade 10"}}, nil
}

func (f *fakeBackend) Subjects(_ context.Context, gradeID string) ([]curriculum.Subject, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return []curriculum.Subject{{ID: "math", Name: "Mathematics", GradeID: gradeID}}, nil
}

func (f *fakeBackend) Chapters(_ context.Context, subjectID, gradeID string) ([]curriculum.Chapter, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return []curriculum.Chapter{{ID: "ch1", Name: "Linear Equations", SubjectID: subjectID, GradeID: gradeID, Ordinal: 1}}, nil
}

func (f *fakeBackend) GeneratePlan(_ context.Context, req planner.GenerateRequest) (planner.LessonPlan, error) {
	if err := f.check(); err != nil {
		return planner.LessonPlan{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := planner.LessonPlan{
		ID: fmt.Sprintf("plan-%d", f.nextID), TeacherID: req.TeacherID,
		GradeID: req.GradeID, GradeName: req.GradeName,
		SubjectID: req.SubjectID, SubjectName: req.SubjectName,
		ChapterID: req.ChapterID, ChapterName: req.ChapterName,
		TotalSessions: req.SessionCount, SessionDuration: req.SessionDuration,
		Status: planner.StatusActive, CreatedAt: time.Now(),
	}
	for i := 1; i <= req.SessionCount; i++ {
		p.Sessions = append(p.Sessions, planner.SessionDetail{Number: i})
	}
	f.plans = append([]planner.LessonPlan{p}, f.plans...)
	return p, nil
}

func (f *fakeBackend) ListPlans(context.Context, string) ([]planner.LessonPlan, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]planner.LessonPlan, len(f.plans))
	for i, p := range f.plans {
		p.Sessions = append([]planner.SessionDetail(nil), p.Sessions...)
		out[i] = p
	}
	return out, nil
}

func (f *fakeBackend) CompleteSession(_ context.Context, planID string, n int) (planner.Ack, error) {
	if err := f.check(); err != nil {
		return planner.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.plans {
		if f.plans[i].ID == planID {
			f.plans[i].Sessions[n-1].Completed = true
		}
	}
	return planner.Ack{Success: true}, nil
}

func (f *fakeBackend) CreateSessionAssessment(context.Context, string, int, planner.AssessmentConfig) (planner.Ack, error) {
	if err := f.check(); err != nil {
		return planner.Ack{}, err
	}
	return planner.Ack{Success: true, AssessmentID: "as-1"}, nil
}

func (f *fakeBackend) ListAssessments(context.Context, string) ([]assessment.Assessment, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assessment.Assessment(nil), f.assessments...), nil
}

func (f *fakeBackend) CreateAssessment(_ context.Context, req assessment.CreateRequest) (assessment.Assessment, error) {
	if err := f.check(); err != nil {
		return assessment.Assessment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := assessment.Assessment{
		ID: fmt.Sprintf("as-%d", len(f.assessments)+1), Title: req.Title, TeacherID: req.TeacherID,
		ClassID: req.ClassID, Questions: req.Questions, Duration: req.Duration,
		Status: assessment.StatusDraft, CreatedAt: time.Now(),
	}
	f.assessments = append(f.assessments, a)
	return a, nil
}

func (f *fakeBackend) UpdateAssessment(_ context.Context, id string, req assessment.UpdateRequest) (assessment.Assessment, error) {
	if err := f.check(); err != nil {
		return assessment.Assessment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assessments {
		if f.assessments[i].ID == id {
			if req.Title != nil {
				f.assessments[i].Title = *req.Title
			}
			return f.assessments[i], nil
		}
	}
	return assessment.Assessment{}, errDown
}

func (f *fakeBackend) DeleteAssessment(context.Context, string) error {
	return f.check()
}

func (f *fakeBackend) DashboardStats(context.Context, string) (dashboard.Stats, error) {
	if err := f.check(); err != nil {
		return dashboard.Stats{}, err
	}
	if f.isDashboardDown() {
		return dashboard.Stats{}, errDown
	}
	return dashboard.Stats{ActiveLessons: 7}, nil
}

func (f *fakeBackend) RecentActivities(context.Context, string) ([]dashboard.Activity, error) {
	if f.isDashboardDown() {
		return nil, errDown
	}
	return []dashboard.Activity{{ID: "a1", Title: "Quiz", Type: dashboard.ActivityAssessment}}, nil
}

func (f *fakeBackend) UpcomingTasks(context.Context, string) ([]dashboard.Task, error) {
	if f.isDashboardDown() {
		return nil, errDown
	}
	return []dashboard.Task{{ID: "k1", Title: "Grade quiz", Priority: dashboard.PriorityHigh}}, nil
}

func (f *fakeBackend) isDashboardDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboardDown
}

func (f *fakeBackend) StudentProgress(context.Context, string) ([]report.StudentProgress, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return []report.StudentProgress{
		{ID: "s1", Name: "Aina", Grade: "Grade 9", OverallScore: 92, Subjects: map[string]int{"Math": 95, "Science": 89}, Trend: report.TrendUp},
		{ID: "s2", Name: "Ben", Grade: "Grade 9", OverallScore: 64, Subjects: map[string]int{"Math": 58, "Science": 70}, Trend: report.TrendDown},
	}, nil
}

// harness runs a Server behind httptest with a cookie-keeping client.
type harness struct {
	t       *testing.T
	backend *fakeBackend
	srv     *web.Server
	ts      *httptest.Server
	client  *http.Client
}

func testConfig(backend *fakeBackend, store account.Store) web.Config {
	sealer, _ := account.NewSealer("0123456789abcdef-test")
	mock := ai.NewMockProvider("Try exit tickets.")
	router := ai.NewRouter()
	router.Register("mock", mock)
	return web.Config{
		NewBackend: func(_ *account.Session, onUnauthorized func()) web.Backend {
			backend.mu.Lock()
			backend.onUnauthorized = onUnauthorized
			backend.mu.Unlock()
			return backend
		},
		Accounts:  store,
		Sealer:    sealer,
		Cookies:   sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		Planner:   web.PlannerDefaults{Sessions: 3, Duration: 45, MaxSessions: 20},
		Assistant: assistant.NewEngine(assistant.EngineConfig{AIRouter: router}),
		Now:       func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	}
}

func newHarness(t *testing.T, mutate ...func(*web.Config)) *harness {
	t.Helper()
	backend := &fakeBackend{}
	cfg := testConfig(backend, account.NewMemoryStore())
	for _, m := range mutate {
		m(&cfg)
	}
	return startHarness(t, backend, cfg)
}

func startHarness(t *testing.T, backend *fakeBackend, cfg web.Config) *harness {
	t.Helper()
	srv, err := web.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	jar, _ := cookiejar.New(nil)
	return &harness{t: t, backend: backend, srv: srv, ts: ts, client: &http.Client{Jar: jar}}
}

func (h *harness) do(method, path string, body any) (int, []byte) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatal(err)
		}
		r = strings.NewReader(string(raw))
	}
	req, err := http.NewRequest(method, h.ts.URL+path, r)
	if err != nil {
		h.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func (h *harness) login() {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@school.test", "password": "secret"})
	if status != http.StatusOK {
		h.t.Fatalf("login status = %d, body = %s", status, body)
	}
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
