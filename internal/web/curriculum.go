package web

import (
	"context"
	"net/http"

	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/selector"
)

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request, sf *surface) {
	grades, err := sf.curriculum.Grades(r.Context())
	respondList(w, grades, err, "Failed to load grades")
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request, sf *surface) {
	subjects, err := sf.curriculum.Subjects(r.Context(), r.PathValue("grade"))
	respondList(w, subjects, err, "Failed to load subjects for selected grade")
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request, sf *surface) {
	chapters, err := sf.curriculum.Chapters(r.Context(), r.PathValue("subject"), r.PathValue("grade"))
	respondList(w, chapters, err, "Failed to load chapters for selected subject")
}

// respondList answers a load. A failed load is a LoadFailure with an empty
// list, unless the credential expired.
func respondList[T any](w http.ResponseWriter, items []T, err error, msg string) {
	if err != nil {
		status, body := classify(err)
		if status != http.StatusUnauthorized {
			status, body = http.StatusBadGateway, errorBody{Error: msg, Kind: notify.KindLoadFailure}
		}
		writeJSON(w, status, body)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

// resolveSelection looks up the display data of a selection posted by id.
// Names stay empty when a level cannot be found.
func resolveSelection(ctx context.Context, src curriculum.Source, gradeID, subjectID, chapterID string) selector.Selection {
	sel := selector.Selection{GradeID: gradeID, SubjectID: subjectID, ChapterID: chapterID}
	if grades, err := src.Grades(ctx); err == nil {
		sel.Grade = findByID(grades, gradeID, func(g curriculum.Grade) string { return g.ID })
	}
	if gradeID == "" {
		return sel
	}
	if subjects, err := src.Subjects(ctx, gradeID); err == nil {
		sel.Subject = findByID(subjects, subjectID, func(s curriculum.Subject) string { return s.ID })
	}
	if subjectID == "" {
		return sel
	}
	if chapters, err := src.Chapters(ctx, subjectID, gradeID); err == nil {
		sel.Chapter = findByID(chapters, chapterID, func(c curriculum.Chapter) string { return c.ID })
	}
	return sel
}

func findByID[T any](items []T, id string, key func(T) string) *T {
	for i := range items {
		if key(items[i]) == id {
			return &items[i]
		}
	}
	return nil
}
