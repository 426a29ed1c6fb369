package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/p-n-ai/teachmate/internal/assessment"
)

var _ assessment.Backend = (*Client)(nil)

type assessmentWire struct {
	ID        oid     `json:"_id"`
	Title     string  `json:"title"`
	Subject   string  `json:"subject"`
	Grade     string  `json:"grade"`
	Questions flexInt `json:"questions"`
	Duration  flexInt `json:"duration"`
	Status    string  `json:"status"`
	CreatedAt stamp   `json:"createdAt"`
	UpdatedAt stamp   `json:"updatedAt"`
	TeacherID oid     `json:"teacher_id"`
	SubjectID oid     `json:"subject_id"`
	GradeID   oid     `json:"grade_id"`
	ChapterID oid     `json:"chapter_id"`
	ClassID   oid     `json:"class_id"`
	OpensOn   *stamp  `json:"opens_on"`
	DueDate   *stamp  `json:"due_date"`
}

func (w assessmentWire) toAssessment() assessment.Assessment {
	a := assessment.Assessment{
		ID:        string(w.ID),
		Title:     w.Title,
		TeacherID: string(w.TeacherID),
		Grade:     w.Grade,
		Subject:   w.Subject,
		GradeID:   string(w.GradeID),
		SubjectID: string(w.SubjectID),
		ChapterID: string(w.ChapterID),
		ClassID:   string(w.ClassID),
		Questions: int(w.Questions),
		Duration:  int(w.Duration),
		Status:    assessment.Status(w.Status),
		OpensOn:   w.OpensOn.ptr(),
		DueDate:   w.DueDate.ptr(),
		CreatedAt: w.CreatedAt.Time(),
		UpdatedAt: w.UpdatedAt.Time(),
	}
	if a.Status == "" {
		a.Status = assessment.StatusDraft
	}
	return a
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ListAssessments lists a teacher's assessments.
func (c *Client) ListAssessments(ctx context.Context, teacherID string) ([]assessment.Assessment, error) {
	var wire []assessmentWire
	if err := c.do(ctx, http.MethodGet, "/api/assessment/teacher/"+url.PathEscape(teacherID), nil, &wire); err != nil {
		return nil, fmt.Errorf("listing assessments for %s: %w", teacherID, err)
	}
	list := make([]assessment.Assessment, len(wire))
	for i, w := range wire {
		list[i] = w.toAssessment()
	}
	return list, nil
}

type createAssessmentWire struct {
	Title     string `json:"title"`
	SubjectID string `json:"subject_id"`
	GradeID   string `json:"grade_id"`
	ChapterID string `json:"chapter_id,omitempty"`
	Questions int    `json:"questions"`
	Duration  int    `json:"duration"`
	OpensOn   string `json:"opens_on,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
	TeacherID string `json:"teacher_id"`
	ClassID   string `json:"class_id,omitempty"`
}

// CreateAssessment creates a standalone assessment.
func (c *Client) CreateAssessment(ctx context.Context, req assessment.CreateRequest) (assessment.Assessment, error) {
	body := createAssessmentWire{
		Title:     req.Title,
		SubjectID: req.SubjectID,
		GradeID:   req.GradeID,
		ChapterID: req.ChapterID,
		Questions: req.Questions,
		Duration:  req.Duration,
		OpensOn:   formatTime(req.OpensOn),
		DueDate:   formatTime(req.DueDate),
		TeacherID: req.TeacherID,
		ClassID:   req.ClassID,
	}
	var w assessmentWire
	if err := c.do(ctx, http.MethodPost, "/api/assessment/create", body, &w); err != nil {
		return assessment.Assessment{}, fmt.Errorf("creating assessment: %w", err)
	}
	return w.toAssessment(), nil
}

type updateAssessmentWire struct {
	Title     *string `json:"title,omitempty"`
	Questions *int    `json:"questions,omitempty"`
	Duration  *int    `json:"duration,omitempty"`
	Status    *string `json:"status,omitempty"`
	OpensOn   string  `json:"opens_on,omitempty"`
	DueDate   string  `json:"due_date,omitempty"`
	ClassID   *string `json:"class_id,omitempty"`
}

// UpdateAssessment changes the set fields of an assessment.
func (c *Client) UpdateAssessment(ctx context.Context, id string, req assessment.UpdateRequest) (assessment.Assessment, error) {
	body := updateAssessmentWire{
		Title:     req.Title,
		Questions: req.Questions,
		Duration:  req.Duration,
		OpensOn:   formatTime(req.OpensOn),
		DueDate:   formatTime(req.DueDate),
		ClassID:   req.ClassID,
	}
	if req.Status != nil {
		s := string(*req.Status)
		body.Status = &s
	}
	var w assessmentWire
	if err := c.do(ctx, http.MethodPut, "/api/assessment/"+url.PathEscape(id), body, &w); err != nil {
		return assessment.Assessment{}, fmt.Errorf("updating assessment %s: %w", id, err)
	}
	return w.toAssessment(), nil
}

// DeleteAssessment removes an assessment.
func (c *Client) DeleteAssessment(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/assessment/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting assessment %s: %w", id, err)
	}
	return nil
}
