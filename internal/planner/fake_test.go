package planner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/planner"
)

// fakeBackend generates plans with numbered sessions and records every call.
// Calls for a gated op block until released.
type fakeBackend struct {
	mu       sync.Mutex
	stored   []planner.LessonPlan
	calls    []string
	failures map[string]error
	gates    map[string]chan struct{}
	nextID   int
	assessID string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failures: map[string]error{},
		gates:    map[string]chan struct{}{},
		assessID: "as-1",
	}
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *fakeBackend) gate(op string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	gate := f.gates[op]
	err := f.failures[op]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) GeneratePlan(ctx context.Context, req planner.GenerateRequest) (planner.LessonPlan, error) {
	if err := f.enter(ctx, "generate"); err != nil {
		return planner.LessonPlan{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := planner.LessonPlan{
		ID:              fmt.Sprintf("plan-%d", f.nextID),
		TeacherID:       req.TeacherID,
		GradeID:         req.GradeID,
		GradeName:       req.GradeName,
		SubjectID:       req.SubjectID,
		SubjectName:     req.SubjectName,
		ChapterID:       req.ChapterID,
		ChapterName:     req.ChapterName,
		TotalSessions:   req.SessionCount,
		SessionDuration: req.SessionDuration,
		Status:          planner.StatusActive,
		CreatedAt:       time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= req.SessionCount; i++ {
		p.Sessions = append(p.Sessions, planner.SessionDetail{
			Number:             i,
			LearningObjectives: []string{fmt.Sprintf("objective %d", i)},
		})
	}
	f.stored = append([]planner.LessonPlan{p}, f.stored...)
	return p, nil
}

func (f *fakeBackend) ListPlans(ctx context.Context, teacherID string) ([]planner.LessonPlan, error) {
	if err := f.enter(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []planner.LessonPlan
	for _, p := range f.stored {
		if p.TeacherID == teacherID {
			p.Sessions = append([]planner.SessionDetail(nil), p.Sessions...)
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) CompleteSession(ctx context.Context, planID string, n int) (planner.Ack, error) {
	if err := f.enter(ctx, "complete"); err != nil {
		return planner.Ack{}, err
	}
	return planner.Ack{Success: true, Message: "Session marked as completed"}, nil
}

func (f *fakeBackend) CreateSessionAssessment(ctx context.Context, planID string, n int, cfg planner.AssessmentConfig) (planner.Ack, error) {
	if err := f.enter(ctx, "assess"); err != nil {
		return planner.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return planner.Ack{Success: true, AssessmentID: f.assessID}, nil
}

var errBackendDown = errors.New("backend down")

// staticSource is a one-grade curriculum.
type staticSource struct{}

func (staticSource) Grades(context.Context) ([]curriculum.Grade, error) {
	return []curriculum.Grade{{ID: "g9", Name: "Grade 9"}}, nil
}

func (staticSource) Subjects(_ context.Context, gradeID string) ([]curriculum.Subject, error) {
	return []curriculum.Subject{{ID: "math", Name: "Mathematics", GradeID: gradeID}}, nil
}

func (staticSource) Chapters(_ context.Context, subjectID, gradeID string) ([]curriculum.Chapter, error) {
	return []curriculum.Chapter{
		{ID: "quad", Name: "Quadratic Equations", SubjectID: subjectID, GradeID: gradeID, Ordinal: 4},
	}, nil
}
