package planner

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/teachmate/internal/notify"
)

var (
	// ErrInFlight is returned when the same plan session (or a generation)
	// already has a remote call outstanding.
	ErrInFlight = errors.New("operation already in progress")

	ErrPlanNotFound        = errors.New("lesson plan not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotPending   = errors.New("session is already completed")
	ErrSessionNotCompleted = errors.New("session must be completed before creating an assessment")
	ErrAssessmentLinked    = errors.New("session already has an assessment")
)

// FailureKind classifies a workflow failure for the surface.
type FailureKind = notify.Kind

// ValidationError blocks a submission before any remote call.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Failure wraps any error a workflow operation reports.
type Failure struct {
	Kind    FailureKind
	Op      string
	Message string // what the teacher was told
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
