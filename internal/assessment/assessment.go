// Package assessment lists, creates and summarizes a teacher's assessments.
package assessment

import (
	"time"
)

// Status of an assessment.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
)

// Assessment is a scheduled quiz for a grade/subject/chapter.
type Assessment struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	TeacherID string     `json:"teacherId"`
	Grade     string     `json:"grade,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	GradeID   string     `json:"gradeId,omitempty"`
	SubjectID string     `json:"subjectId,omitempty"`
	ChapterID string     `json:"chapterId,omitempty"`
	ClassID   string     `json:"classId,omitempty"`
	Questions int        `json:"questions"`
	Duration  int        `json:"duration"`
	Status    Status     `json:"status"`
	OpensOn   *time.Time `json:"opensOn,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CreateRequest creates a standalone assessment.
type CreateRequest struct {
	Title     string     `json:"title" validate:"required"`
	TeacherID string     `json:"teacherId" validate:"required"`
	GradeID   string     `json:"gradeId" validate:"required"`
	SubjectID string     `json:"subjectId" validate:"required"`
	ChapterID string     `json:"chapterId,omitempty"`
	ClassID   string     `json:"classId,omitempty"`
	Questions int        `json:"questions" validate:"min=1"`
	Duration  int        `json:"duration" validate:"min=1"`
	OpensOn   *time.Time `json:"opensOn,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

// UpdateRequest changes the non-nil fields of an assessment.
type UpdateRequest struct {
	Title     *string    `json:"title,omitempty"`
	Questions *int       `json:"questions,omitempty" validate:"omitempty,min=1"`
	Duration  *int       `json:"duration,omitempty" validate:"omitempty,min=1"`
	Status    *Status    `json:"status,omitempty" validate:"omitempty,oneof=Draft Published"`
	OpensOn   *time.Time `json:"opensOn,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	ClassID   *string    `json:"classId,omitempty"`
}

// Stats summarizes a teacher's assessments.
type Stats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Drafts    int `json:"drafts"`
	ThisMonth int `json:"thisMonth"`
}

// ComputeStats counts assessments by status and those created since the first
// day of now's month.
func ComputeStats(list []Assessment, now time.Time) Stats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	st := Stats{Total: len(list)}
	for _, a := range list {
		switch a.Status {
		case StatusPublished:
			st.Published++
		case StatusDraft:
			st.Drafts++
		}
		if !a.CreatedAt.Before(monthStart) {
			st.ThisMonth++
		}
	}
	return st
}
