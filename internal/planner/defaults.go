package planner

import (
	"time"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/selector"
)

// DefaultAssessmentDuration is the prefilled assessment length in minutes.
const DefaultAssessmentDuration = 60

// AssessmentDefaults prefills the assessment dialog: opens tomorrow, due in
// a week, one hour long, for the teacher's first class.
func AssessmentDefaults(now time.Time, user account.User) AssessmentConfig {
	now = now.Truncate(time.Minute)
	return AssessmentConfig{
		OpensOn:  now.AddDate(0, 0, 1),
		DueDate:  now.AddDate(0, 0, 7),
		Duration: DefaultAssessmentDuration,
		ClassID:  user.FirstClassID(),
	}
}

// NewGenerateRequest builds a generation request from the current selector
// state and form.
func NewGenerateRequest(teacherID string, sel selector.Selection, form Form) GenerateRequest {
	req := GenerateRequest{
		TeacherID:       teacherID,
		GradeID:         sel.GradeID,
		SubjectID:       sel.SubjectID,
		ChapterID:       sel.ChapterID,
		SessionCount:    form.SessionCount,
		SessionDuration: form.SessionDuration,
	}
	if sel.Grade != nil {
		req.GradeName = sel.Grade.Name
	}
	if sel.Subject != nil {
		req.SubjectName = sel.Subject.Name
	}
	if sel.Chapter != nil {
		req.ChapterName = sel.Chapter.Name
		req.ChapterNumber = sel.Chapter.Ordinal
	}
	return req
}
