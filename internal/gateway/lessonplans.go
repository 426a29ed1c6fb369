package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/teachmate/internal/planner"
)

type flowWire struct {
	TimeSlot    string `json:"time_slot"`
	Activity    string `json:"activity"`
	Description string `json:"description"`
}

type resourcesWire struct {
	Videos []struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		Source   string `json:"source"`
		Topic    string `json:"topic"`
		Duration string `json:"duration"`
	} `json:"videos"`
	Simulations []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Type  string `json:"type"`
	} `json:"simulations"`
}

type sessionWire struct {
	SessionNumber      flexInt        `json:"session_number"`
	LearningObjectives []string       `json:"learning_objectives"`
	TopicsCovered      []string       `json:"topics_covered"`
	TeachingFlow       []flowWire     `json:"teaching_flow"`
	Resources          *resourcesWire `json:"resources"`
	IsCompleted        bool           `json:"is_completed"`
	CompletedAt        *stamp         `json:"completed_at"`
	HasAssessment      bool           `json:"has_assessment"`
	AssessmentID       oid            `json:"assessment_id"`
}

type planWire struct {
	ID                oid           `json:"_id"`
	TeacherID         oid           `json:"teacher_id"`
	GradeID           oid           `json:"grade_id"`
	GradeName         string        `json:"grade_name"`
	SubjectID         oid           `json:"subject_id"`
	SubjectName       string        `json:"subject_name"`
	ChapterID         oid           `json:"chapter_id"`
	ChapterName       string        `json:"chapter_name"`
	TotalSessions     flexInt       `json:"total_sessions"`
	SessionDuration   flexInt       `json:"session_duration"`
	SessionDetails    []sessionWire `json:"session_details"`
	OverallObjectives []string      `json:"overall_objectives"`
	Prerequisites     []string      `json:"prerequisites"`
	LearningOutcomes  []string      `json:"learning_outcomes"`
	Status            string        `json:"status"`
	CreatedAt         stamp         `json:"createdAt"`
	UpdatedAt         stamp         `json:"updatedAt"`
}

func (w planWire) toPlan() planner.LessonPlan {
	p := planner.LessonPlan{
		ID:                string(w.ID),
		TeacherID:         string(w.TeacherID),
		GradeID:           string(w.GradeID),
		GradeName:         w.GradeName,
		SubjectID:         string(w.SubjectID),
		SubjectName:       w.SubjectName,
		ChapterID:         string(w.ChapterID),
		ChapterName:       w.ChapterName,
		TotalSessions:     int(w.TotalSessions),
		SessionDuration:   int(w.SessionDuration),
		OverallObjectives: w.OverallObjectives,
		Prerequisites:     w.Prerequisites,
		LearningOutcomes:  w.LearningOutcomes,
		Status:            planner.PlanStatus(w.Status),
		CreatedAt:         w.CreatedAt.Time(),
		UpdatedAt:         w.UpdatedAt.Time(),
	}
	if p.Status == "" {
		p.Status = planner.StatusDraft
	}

	p.Sessions = make([]planner.SessionDetail, len(w.SessionDetails))
	for i, s := range w.SessionDetails {
		sd := planner.SessionDetail{
			Number:             int(s.SessionNumber),
			LearningObjectives: s.LearningObjectives,
			TopicsCovered:      s.TopicsCovered,
			Completed:          s.IsCompleted,
			CompletedAt:        s.CompletedAt.ptr(),
			HasAssessment:      s.HasAssessment || s.AssessmentID != "",
			AssessmentID:       string(s.AssessmentID),
		}
		sd.TeachingFlow = make([]planner.FlowStep, len(s.TeachingFlow))
		for j, f := range s.TeachingFlow {
			sd.TeachingFlow[j] = planner.FlowStep(f)
		}
		if s.Resources != nil {
			r := &planner.Resources{}
			for _, v := range s.Resources.Videos {
				r.Videos = append(r.Videos, planner.Video(v))
			}
			for _, sim := range s.Resources.Simulations {
				r.Simulations = append(r.Simulations, planner.Simulation(sim))
			}
			sd.Resources = r
		}
		p.Sessions[i] = sd
	}
	if p.TotalSessions == 0 {
		p.TotalSessions = len(p.Sessions)
	}
	return p
}

type generateWire struct {
	TeacherID       string `json:"teacher_id"`
	GradeID         string `json:"grade_id"`
	GradeName       string `json:"grade_name"`
	SubjectID       string `json:"subject_id"`
	SubjectName     string `json:"subject_name"`
	ChapterID       string `json:"chapter_id"`
	Topic           string `json:"topic"`
	ChapterNumber   int    `json:"chapter_number,omitempty"`
	Sessions        int    `json:"sessions"`
	SessionDuration int    `json:"session_duration"`
}

// GeneratePlan asks the backend to generate and store a lesson plan. The
// document is schema-checked before decoding; fields the backend omits are
// filled from the request.
func (c *Client) GeneratePlan(ctx context.Context, req planner.GenerateRequest) (planner.LessonPlan, error) {
	body := generateWire{
		TeacherID:       req.TeacherID,
		GradeID:         req.GradeID,
		GradeName:       req.GradeName,
		SubjectID:       req.SubjectID,
		SubjectName:     req.SubjectName,
		ChapterID:       req.ChapterID,
		Topic:           req.ChapterName,
		ChapterNumber:   req.ChapterNumber,
		Sessions:        req.SessionCount,
		SessionDuration: req.SessionDuration,
	}

	resp, err := c.call(ctx, http.MethodPost, "/api/lesson-plan/generate", body, callOpts{})
	if err != nil {
		return planner.LessonPlan{}, fmt.Errorf("generating lesson plan: %w", err)
	}
	if err := validatePlan(resp.payload); err != nil {
		return planner.LessonPlan{}, err
	}

	var wire planWire
	if err := json.Unmarshal(resp.payload, &wire); err != nil {
		return planner.LessonPlan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	plan := wire.toPlan()
	fillFromRequest(&plan, req)
	return plan, nil
}

func fillFromRequest(p *planner.LessonPlan, req planner.GenerateRequest) {
	if p.ID == "" {
		p.ID = "local-" + uuid.NewString()
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&p.TeacherID, req.TeacherID)
	fill(&p.GradeID, req.GradeID)
	fill(&p.GradeName, req.GradeName)
	fill(&p.SubjectID, req.SubjectID)
	fill(&p.SubjectName, req.SubjectName)
	fill(&p.ChapterID, req.ChapterID)
	fill(&p.ChapterName, req.ChapterName)
	if p.SessionDuration == 0 {
		p.SessionDuration = req.SessionDuration
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

// ListPlans lists a teacher's lesson plans, newest first as the backend
// returns them.
func (c *Client) ListPlans(ctx context.Context, teacherID string) ([]planner.LessonPlan, error) {
	var wire []planWire
	if err := c.do(ctx, http.MethodGet, "/api/lesson-plan/teacher/"+url.PathEscape(teacherID), nil, &wire); err != nil {
		return nil, fmt.Errorf("listing lesson plans for %s: %w", teacherID, err)
	}
	plans := make([]planner.LessonPlan, len(wire))
	for i, w := range wire {
		plans[i] = w.toPlan()
	}
	return plans, nil
}

type ackWire struct {
	Success      *bool  `json:"success"`
	Message      string `json:"message"`
	AssessmentID oid    `json:"assessment_id"`
	ID           oid    `json:"_id"`
}

func (c *Client) ack(ctx context.Context, method, path string, body any) (planner.Ack, error) {
	resp, err := c.call(ctx, method, path, body, callOpts{})
	if err != nil {
		return planner.Ack{}, err
	}
	var w ackWire
	if err := decode(resp.payload, &w); err != nil {
		return planner.Ack{}, err
	}
	msg := resp.message
	if msg == "" {
		msg = w.Message
	}
	id := w.AssessmentID
	if id == "" {
		id = w.ID
	}
	return planner.Ack{Success: true, Message: msg, AssessmentID: string(id)}, nil
}

func sessionPath(planID string, n int) string {
	return "/api/lesson-plan/" + url.PathEscape(planID) + "/sessions/" + strconv.Itoa(n)
}

// CompleteSession marks session n of a plan as taught.
func (c *Client) CompleteSession(ctx context.Context, planID string, n int) (planner.Ack, error) {
	a, err := c.ack(ctx, http.MethodPatch, sessionPath(planID, n)+"/complete", nil)
	if err != nil {
		return planner.Ack{}, fmt.Errorf("completing session %d of plan %s: %w", n, planID, err)
	}
	return a, nil
}

type sessionAssessmentWire struct {
	OpensOn  string `json:"opens_on"`
	DueDate  string `json:"due_date"`
	Duration int    `json:"duration"`
	ClassID  string `json:"class_id"`
}

// CreateSessionAssessment creates the assessment for a completed session.
func (c *Client) CreateSessionAssessment(ctx context.Context, planID string, n int, cfg planner.AssessmentConfig) (planner.Ack, error) {
	body := sessionAssessmentWire{
		OpensOn:  cfg.OpensOn.UTC().Format(time.RFC3339),
		DueDate:  cfg.DueDate.UTC().Format(time.RFC3339),
		Duration: cfg.Duration,
		ClassID:  cfg.ClassID,
	}
	a, err := c.ack(ctx, http.MethodPost, sessionPath(planID, n)+"/assessment", body)
	if err != nil {
		return planner.Ack{}, fmt.Errorf("creating assessment for session %d of plan %s: %w", n, planID, err)
	}
	return a, nil
}
