package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/teachmate/internal/platform/validation"
)

// ErrBadSchedule is returned when the due date is not after the opening date.
var ErrBadSchedule = errors.New("due date must be after opening date")

// Backend is the remote assessment API.
type Backend interface {
	ListAssessments(ctx context.Context, teacherID string) ([]Assessment, error)
	CreateAssessment(ctx context.Context, req CreateRequest) (Assessment, error)
	UpdateAssessment(ctx context.Context, id string, req UpdateRequest) (Assessment, error)
	DeleteAssessment(ctx context.Context, id string) error
}

// Service validates requests before they reach the backend.
type Service struct {
	backend Backend
	now     func() time.Time
}

// NewService creates an assessment service.
func NewService(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

func (s *Service) List(ctx context.Context, teacherID string) ([]Assessment, error) {
	list, err := s.backend.ListAssessments(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	return list, nil
}

// Stats loads the teacher's assessments and summarizes them.
func (s *Service) Stats(ctx context.Context, teacherID string) (Stats, error) {
	list, err := s.List(ctx, teacherID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(list, s.now()), nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Assessment, error) {
	if err := validation.Struct(req); err != nil {
		return Assessment{}, err
	}
	if err := checkSchedule(req.OpensOn, req.DueDate); err != nil {
		return Assessment{}, err
	}

	a, err := s.backend.CreateAssessment(ctx, req)
	if err != nil {
		return Assessment{}, fmt.Errorf("creating assessment: %w", err)
	}
	slog.Info("assessment created", "assessment_id", a.ID, "teacher_id", req.TeacherID)
	return a, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Assessment, error) {
	if err := validation.Struct(req); err != nil {
		return Assessment{}, err
	}
	if err := checkSchedule(req.OpensOn, req.DueDate); err != nil {
		return Assessment{}, err
	}

	a, err := s.backend.UpdateAssessment(ctx, id, req)
	if err != nil {
		return Assessment{}, fmt.Errorf("updating assessment %s: %w", id, err)
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteAssessment(ctx, id); err != nil {
		return fmt.Errorf("deleting assessment %s: %w", id, err)
	}
	slog.Info("assessment deleted", "assessment_id", id)
	return nil
}

func checkSchedule(opensOn, dueDate *time.Time) error {
	if opensOn != nil && dueDate != nil && !dueDate.After(*opensOn) {
		return ErrBadSchedule
	}
	return nil
}
