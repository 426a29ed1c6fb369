package web

import (
	"fmt"
	"net/http"

	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/report"
)

type progressBody struct {
	Students []report.StudentProgress `json:"students"`
	Summary  report.Summary           `json:"summary"`
}

type renderBody struct {
	TemplateID string `json:"templateId"`
	StudentID  string `json:"studentId"`
	ParentName string `json:"parentName"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, sf *surface) {
	rows, err := sf.backend.StudentProgress(r.Context(), sf.teacherID)
	if err != nil {
		respondList[report.StudentProgress](w, nil, err, "Failed to load student progress")
		return
	}
	if rows == nil {
		rows = []report.StudentProgress{}
	}
	writeJSON(w, http.StatusOK, progressBody{Students: rows, Summary: report.Summarize(rows)})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request, _ *surface) {
	writeJSON(w, http.StatusOK, s.cfg.Templates.List())
}

func (s *Server) handleRenderReport(w http.ResponseWriter, r *http.Request, sf *surface) {
	var body renderBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	rows, err := sf.backend.StudentProgress(r.Context(), sf.teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	student := findByID(rows, body.StudentID, func(p report.StudentProgress) string { return p.ID })
	if student == nil {
		writeError(w, &planner.ValidationError{Rule: "student", Message: "Please select a student"})
		return
	}
	msg, err := s.cfg.Templates.Render(body.TemplateID, report.NewRecipient(*student, body.ParentName, sf.user().Name))
	if err != nil {
		writeError(w, &planner.ValidationError{Rule: "template", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sf *surface) {
	rows, err := sf.backend.StudentProgress(r.Context(), sf.teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	label := r.URL.Query().Get("label")
	if label == "" {
		label = sf.user().Name
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFilename(label, s.cfg.Now())))
	if err := report.ExportProgress(w, rows); err != nil {
		writeError(w, err)
	}
}
