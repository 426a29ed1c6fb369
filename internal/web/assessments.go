package web

import (
	"net/http"

	"github.com/p-n-ai/teachmate/internal/assessment"
)

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request, sf *surface) {
	list, err := sf.assessments.List(r.Context(), sf.teacherID)
	respondList(w, list, err, "Failed to load assessments")
}

func (s *Server) handleAssessmentStats(w http.ResponseWriter, r *http.Request, sf *surface) {
	stats, err := sf.assessments.Stats(r.Context(), sf.teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request, sf *surface) {
	var req assessment.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.TeacherID = sf.teacherID
	if req.ClassID == "" {
		req.ClassID = sf.user().FirstClassID()
	}
	a, err := sf.assessments.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAssessment(w http.ResponseWriter, r *http.Request, sf *surface) {
	var req assessment.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	a, err := sf.assessments.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAssessment(w http.ResponseWriter, r *http.Request, sf *surface) {
	if err := sf.assessments.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
