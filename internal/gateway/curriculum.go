package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/p-n-ai/teachmate/internal/curriculum"
)

var _ curriculum.Source = (*Client)(nil)

type gradeWire struct {
	ID   oid    `json:"_id"`
	Name string `json:"grade_name"`
}

type subjectWire struct {
	ID      oid    `json:"_id"`
	Name    string `json:"subject_name"`
	GradeID oid    `json:"grade_id"`
}

type chapterWire struct {
	ID        oid     `json:"_id"`
	Name      string  `json:"chapter_name"`
	Number    flexInt `json:"chapter_number"`
	SubjectID oid     `json:"subject_id"`
	GradeID   oid     `json:"grade_id"`
}

// Grades lists every grade.
func (c *Client) Grades(ctx context.Context) ([]curriculum.Grade, error) {
	var wire []gradeWire
	if err := c.do(ctx, http.MethodGet, "/api/grade", nil, &wire); err != nil {
		return nil, fmt.Errorf("listing grades: %w", err)
	}
	grades := make([]curriculum.Grade, len(wire))
	for i, g := range wire {
		grades[i] = curriculum.Grade{ID: string(g.ID), Name: g.Name}
	}
	return grades, nil
}

// Subjects lists the subjects taught in a grade.
func (c *Client) Subjects(ctx context.Context, gradeID string) ([]curriculum.Subject, error) {
	var wire []subjectWire
	path := "/api/subject/grade/" + url.PathEscape(gradeID)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing subjects for grade %s: %w", gradeID, err)
	}
	subjects := make([]curriculum.Subject, len(wire))
	for i, s := range wire {
		gid := string(s.GradeID)
		if gid == "" {
			gid = gradeID
		}
		subjects[i] = curriculum.Subject{ID: string(s.ID), Name: s.Name, GradeID: gid}
	}
	return subjects, nil
}

// Chapters lists the chapters of a subject within a grade.
func (c *Client) Chapters(ctx context.Context, subjectID, gradeID string) ([]curriculum.Chapter, error) {
	var wire []chapterWire
	path := "/api/chapter/subject/" + url.PathEscape(subjectID) + "/grade/" + url.PathEscape(gradeID)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing chapters for subject %s grade %s: %w", subjectID, gradeID, err)
	}
	chapters := make([]curriculum.Chapter, len(wire))
	for i, ch := range wire {
		sid, gid := string(ch.SubjectID), string(ch.GradeID)
		if sid == "" {
			sid = subjectID
		}
		if gid == "" {
			gid = gradeID
		}
		chapters[i] = curriculum.Chapter{
			ID:        string(ch.ID),
			Name:      ch.Name,
			SubjectID: sid,
			GradeID:   gid,
			Ordinal:   int(ch.Number),
		}
	}
	return chapters, nil
}
