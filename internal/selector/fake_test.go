package selector_test

import (
	"context"
	"errors"
	"sync"

	"github.com/p-n-ai/teachmate/internal/curriculum"
)

// fakeSource serves a fixed catalog. Calls whose key has a gate block until
// the gate is closed or the context ends.
type fakeSource struct {
	mu       sync.Mutex
	gates    map[string]chan struct{}
	failures map[string]error
	calls    []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{gates: map[string]chan struct{}{}, failures: map[string]error{}}
}

// gate makes calls for key block; the returned func releases them.
func (f *fakeSource) gate(key string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeSource) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, key)
		return
	}
	f.failures[key] = err
}

func (f *fakeSource) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeSource) enter(ctx context.Context, key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	gate := f.gates[key]
	err := f.failures[key]
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

func (f *fakeSource) Grades(ctx context.Context) ([]curriculum.Grade, error) {
	if err := f.enter(ctx, "grades"); err != nil {
		return nil, err
	}
	return []curriculum.Grade{{ID: "g9", Name: "Grade 9"}, {ID: "g10", Name: "Grade 10"}}, nil
}

func (f *fakeSource) Subjects(ctx context.Context, gradeID string) ([]curriculum.Subject, error) {
	if err := f.enter(ctx, "subjects:"+gradeID); err != nil {
		return nil, err
	}
	return []curriculum.Subject{
		{ID: "math", Name: "Mathematics", GradeID: gradeID},
		{ID: "phy", Name: "Physics", GradeID: gradeID},
	}, nil
}

func (f *fakeSource) Chapters(ctx context.Context, subjectID, gradeID string) ([]curriculum.Chapter, error) {
	if err := f.enter(ctx, "chapters:"+subjectID+":"+gradeID); err != nil {
		return nil, err
	}
	return []curriculum.Chapter{
		{ID: subjectID + "-1", Name: "Chapter 1", SubjectID: subjectID, GradeID: gradeID, Ordinal: 1},
		{ID: subjectID + "-2", Name: "Chapter 2", SubjectID: subjectID, GradeID: gradeID, Ordinal: 2},
	}, nil
}

var errBackend = errors.New("backend unavailable")
