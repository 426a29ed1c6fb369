// Package planner drives lesson-plan generation and the per-session
// Pending → Completed → Assessment-Created workflow.
package planner

import (
	"fmt"
	"time"
)

// PlanStatus is the backend status of a lesson plan.
type PlanStatus string

const (
	StatusDraft  PlanStatus = "Draft"
	StatusActive PlanStatus = "Active"
)

// SessionState is derived from a session's completion flag and assessment link.
type SessionState int

const (
	SessionPending SessionState = iota
	SessionCompleted
	SessionAssessed
)

func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionCompleted:
		return "completed"
	case SessionAssessed:
		return "assessment_created"
	default:
		return "unknown"
	}
}

// FlowStep is one slot of a session's teaching flow.
type FlowStep struct {
	TimeSlot    string `json:"timeSlot"`
	Activity    string `json:"activity"`
	Description string `json:"description"`
}

// Video is a suggested video resource.
type Video struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Source   string `json:"source,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Simulation is a suggested interactive resource.
type Simulation struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Resources attached to a session by the generator.
type Resources struct {
	Videos      []Video      `json:"videos,omitempty"`
	Simulations []Simulation `json:"simulations,omitempty"`
}

// SessionDetail is one numbered session of a plan.
type SessionDetail struct {
	Number             int        `json:"sessionNumber"`
	LearningObjectives []string   `json:"learningObjectives"`
	TopicsCovered      []string   `json:"topicsCovered"`
	TeachingFlow       []FlowStep `json:"teachingFlow"`
	Resources          *Resources `json:"resources,omitempty"`
	Completed          bool       `json:"completed"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	HasAssessment      bool       `json:"hasAssessment"`
	AssessmentID       string     `json:"assessmentId,omitempty"` // may be empty even when HasAssessment
}

// State reports where the session sits in the workflow.
func (s SessionDetail) State() SessionState {
	switch {
	case s.HasAssessment || s.AssessmentID != "":
		return SessionAssessed
	case s.Completed:
		return SessionCompleted
	default:
		return SessionPending
	}
}

// LessonPlan is a generated multi-session plan for one chapter.
type LessonPlan struct {
	ID                string          `json:"id"`
	TeacherID         string          `json:"teacherId"`
	GradeID           string          `json:"gradeId"`
	GradeName         string          `json:"gradeName"`
	SubjectID         string          `json:"subjectId"`
	SubjectName       string          `json:"subjectName"`
	ChapterID         string          `json:"chapterId"`
	ChapterName       string          `json:"chapterName"`
	TotalSessions     int             `json:"totalSessions"`
	SessionDuration   int             `json:"sessionDuration"`
	Sessions          []SessionDetail `json:"sessions"`
	OverallObjectives []string        `json:"overallObjectives"`
	Prerequisites     []string        `json:"prerequisites,omitempty"`
	LearningOutcomes  []string        `json:"learningOutcomes,omitempty"`
	Status            PlanStatus      `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Session returns the session numbered n.
func (p *LessonPlan) Session(n int) (*SessionDetail, bool) {
	if n < 1 || n > len(p.Sessions) {
		return nil, false
	}
	s := &p.Sessions[n-1]
	if s.Number != n {
		return nil, false
	}
	return s, true
}

// CheckSessions verifies sessions are numbered contiguously 1..TotalSessions
// and that no session is linked to an assessment before completion.
func (p *LessonPlan) CheckSessions() error {
	if p.TotalSessions != len(p.Sessions) {
		return fmt.Errorf("plan %s declares %d sessions, has %d", p.ID, p.TotalSessions, len(p.Sessions))
	}
	for i, s := range p.Sessions {
		if s.Number != i+1 {
			return fmt.Errorf("plan %s: session at position %d numbered %d", p.ID, i+1, s.Number)
		}
		if s.State() == SessionAssessed && !s.Completed {
			return fmt.Errorf("plan %s: session %d linked to assessment before completion", p.ID, s.Number)
		}
	}
	return nil
}

// GenerateRequest asks the backend to generate and store a plan.
type GenerateRequest struct {
	TeacherID       string `json:"teacherId" validate:"required"`
	GradeID         string `json:"gradeId" validate:"required"`
	GradeName       string `json:"gradeName"`
	SubjectID       string `json:"subjectId" validate:"required"`
	SubjectName     string `json:"subjectName"`
	ChapterID       string `json:"chapterId" validate:"required"`
	ChapterName     string `json:"chapterName"`
	ChapterNumber   int    `json:"chapterNumber"`
	SessionCount    int    `json:"sessionCount" validate:"min=1"`
	SessionDuration int    `json:"sessionDuration" validate:"min=1"`
}

// AssessmentConfig schedules the assessment created for a completed session.
type AssessmentConfig struct {
	OpensOn  time.Time `json:"opensOn" validate:"required"`
	DueDate  time.Time `json:"dueDate" validate:"required"`
	Duration int       `json:"duration" validate:"min=1"`
	ClassID  string    `json:"classId" validate:"required"`
}

// Ack is the backend's acknowledgement of a session transition.
type Ack struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AssessmentID string `json:"assessmentId,omitempty"`
}
