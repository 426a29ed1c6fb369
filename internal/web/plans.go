package web

import (
	"net/http"
	"strconv"

	"github.com/p-n-ai/teachmate/internal/planner"
)

type generateBody struct {
	GradeID         string `json:"gradeId"`
	SubjectID       string `json:"subjectId"`
	ChapterID       string `json:"chapterId"`
	SessionCount    int    `json:"sessionCount"`
	SessionDuration int    `json:"sessionDuration"`
}

type formBody struct {
	Form        planner.Form `json:"form"`
	MaxSessions int          `json:"maxSessions"`
	Generating  bool         `json:"generating"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request, sf *surface) {
	plans, err := sf.workflow.ListPlans(r.Context(), sf.teacherID)
	respondList(w, plans, err, "Failed to load lesson plans")
}

func (s *Server) handlePlanForm(w http.ResponseWriter, r *http.Request, sf *surface) {
	writeJSON(w, http.StatusOK, formBody{
		Form:        sf.workflow.Form(),
		MaxSessions: sf.workflow.MaxSessions(),
		Generating:  sf.workflow.Generating(),
	})
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request, sf *surface) {
	var body generateBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	// Omitted counts keep the form's current values.
	sf.workflow.SetForm(planner.Form{SessionCount: body.SessionCount, SessionDuration: body.SessionDuration})

	sel := resolveSelection(r.Context(), sf.curriculum, body.GradeID, body.SubjectID, body.ChapterID)
	req := planner.NewGenerateRequest(sf.teacherID, sel, sf.workflow.Form())
	plan, err := sf.workflow.GeneratePlan(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func sessionParams(r *http.Request) (string, int, error) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		return "", 0, &planner.ValidationError{Rule: "session", Message: "Invalid session number"}
	}
	return r.PathValue("id"), n, nil
}

// ensurePlan loads the teacher's plans when planID is not known yet, as
// after a restart.
func (sf *surface) ensurePlan(r *http.Request, planID string) {
	if _, ok := sf.workflow.Plan(planID); ok {
		return
	}
	_, _ = sf.workflow.ListPlans(r.Context(), sf.teacherID)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request, sf *surface) {
	planID, n, err := sessionParams(r)
	if err == nil {
		sf.ensurePlan(r, planID)
		err = sf.workflow.CompleteSession(r.Context(), planID, n)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	plan, _ := sf.workflow.Plan(planID)
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAssessmentDefaults(w http.ResponseWriter, r *http.Request, sf *surface) {
	planID, n, err := sessionParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sf.ensurePlan(r, planID)
	plan, ok := sf.workflow.Plan(planID)
	if !ok {
		writeError(w, planner.ErrPlanNotFound)
		return
	}
	if _, ok := plan.Session(n); !ok {
		writeError(w, planner.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, planner.AssessmentDefaults(s.cfg.Now(), sf.user()))
}

func (s *Server) handleCreateSessionAssessment(w http.ResponseWriter, r *http.Request, sf *surface) {
	planID, n, err := sessionParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var cfg planner.AssessmentConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	sf.ensurePlan(r, planID)
	id, err := sf.workflow.CreateAssessmentForSession(r.Context(), planID, n, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"assessmentId": id})
}
