package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/teachmate/internal/planner"
)

const generatedPlan = `{
  "success": true,
  "message": "Lesson plan generated successfully",
  "data": {
    "_id": {"$oid": "plan1"},
    "teacher_id": {"$oid": "t1"},
    "session_details": [
      {"session_number": 1, "learning_objectives": ["Define photosynthesis"], "topics_covered": ["Intro"],
       "teaching_flow": [{"time_slot": "0-10 min", "activity": "Warm up", "description": "Discussion"}],
       "resources": {"videos": [{"title": "Leaves", "url": "https://v.test/1", "source": "YouTube"}]}},
      {"session_number": 2, "learning_objectives": ["Explain the process"], "topics_covered": ["Process"],
       "teaching_flow": []}
    ],
    "overall_objectives": ["Understand photosynthesis"],
    "prerequisites": ["Plant parts"],
    "learning_outcomes": ["Explain photosynthesis"],
    "status": "Active",
    "createdAt": {"$date": "2025-03-14T09:30:00Z"}
  }
}`

func TestClient_GeneratePlan(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/lesson-plan/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Write([]byte(generatedPlan))
	})

	plan, err := c.GeneratePlan(context.Background(), planner.GenerateRequest{
		TeacherID: "t1", GradeID: "g9", GradeName: "Grade 9",
		SubjectID: "bio", SubjectName: "Biology", ChapterID: "ch1", ChapterName: "Photosynthesis",
		SessionCount: 2, SessionDuration: 45,
	})
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}

	if body["topic"] != "Photosynthesis" || body["sessions"] != float64(2) || body["grade_id"] != "g9" {
		t.Errorf("request body = %v", body)
	}
	if plan.ID != "plan1" || plan.Status != planner.StatusActive {
		t.Errorf("plan id/status = %q/%q", plan.ID, plan.Status)
	}
	if plan.TotalSessions != 2 || len(plan.Sessions) != 2 {
		t.Errorf("sessions = %d/%d, want 2", plan.TotalSessions, len(plan.Sessions))
	}
	if plan.ChapterName != "Photosynthesis" || plan.SessionDuration != 45 {
		t.Errorf("missing fields should come from request: %+v", plan)
	}
	if plan.Sessions[0].Resources == nil || plan.Sessions[0].Resources.Videos[0].URL != "https://v.test/1" {
		t.Errorf("resources = %+v", plan.Sessions[0].Resources)
	}
	if !plan.CreatedAt.Equal(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", plan.CreatedAt)
	}
	if err := plan.CheckSessions(); err != nil {
		t.Errorf("CheckSessions() error = %v", err)
	}
}

func TestClient_GeneratePlanRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no sessions", `{"success":true,"data":{"overall_objectives":[]}}`},
		{"empty sessions", `{"success":true,"data":{"session_details":[]}}`},
		{"session missing flow", `{"success":true,"data":{"session_details":[{"session_number":1,"learning_objectives":[],"topics_covered":[]}]}}`},
		{"session number zero", `{"success":true,"data":{"session_details":[{"session_number":0,"learning_objectives":[],"topics_covered":[],"teaching_flow":[]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := c.GeneratePlan(context.Background(), planner.GenerateRequest{TeacherID: "t1", SessionCount: 1})
			if !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("GeneratePlan() error = %v, want ErrInvalidPlan", err)
			}
		})
	}
}

func TestClient_GeneratePlanAssignsLocalID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"session_details":[
			{"session_number":1,"learning_objectives":[],"topics_covered":[],"teaching_flow":[]}]}}`))
	})
	plan, err := c.GeneratePlan(context.Background(), planner.GenerateRequest{TeacherID: "t1", SessionCount: 1})
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if !strings.HasPrefix(plan.ID, "local-") {
		t.Errorf("plan.ID = %q, want local- prefix", plan.ID)
	}
	if plan.Status != planner.StatusDraft {
		t.Errorf("plan.Status = %q, want Draft", plan.Status)
	}
}

func TestClient_ListPlans(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lesson-plan/teacher/t1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Bare array, no envelope.
		w.Write([]byte(`[{"_id":"p1","chapter_name":"Motion","session_details":[
			{"session_number":1,"is_completed":true,"completed_at":"2025-03-01T10:00:00Z","assessment_id":{"$oid":"a1"}},
			{"session_number":2,"is_completed":false}]}]`))
	})

	plans, err := c.ListPlans(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("ListPlans() = %d plans, want 1", len(plans))
	}
	s1 := plans[0].Sessions[0]
	if !s1.Completed || s1.CompletedAt == nil || s1.AssessmentID != "a1" || s1.State() != planner.SessionAssessed {
		t.Errorf("session 1 = %+v", s1)
	}
	if plans[0].Sessions[1].State() != planner.SessionPending {
		t.Errorf("session 2 state = %v, want pending", plans[0].Sessions[1].State())
	}
}

func TestClient_SessionTransitions(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = nil
		json.Unmarshal(raw, &gotBody)
		if strings.HasSuffix(r.URL.Path, "/assessment") {
			w.Write([]byte(`{"success":true,"message":"Assessment created","assessment_id":"a42"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"Session marked complete"}`))
	})
	ctx := context.Background()

	ack, err := c.CompleteSession(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/lesson-plan/p1/sessions/2/complete" {
		t.Errorf("CompleteSession hit %s %s", gotMethod, gotPath)
	}
	if !ack.Success || ack.Message != "Session marked complete" {
		t.Errorf("ack = %+v", ack)
	}

	opens := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	ack, err = c.CreateSessionAssessment(ctx, "p1", 2, planner.AssessmentConfig{
		OpensOn: opens, DueDate: opens.AddDate(0, 0, 6), Duration: 60, ClassID: "c9a",
	})
	if err != nil {
		t.Fatalf("CreateSessionAssessment() error = %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/lesson-plan/p1/sessions/2/assessment" {
		t.Errorf("CreateSessionAssessment hit %s %s", gotMethod, gotPath)
	}
	if gotBody["opens_on"] != "2025-03-15T08:00:00Z" || gotBody["class_id"] != "c9a" || gotBody["duration"] != float64(60) {
		t.Errorf("assessment body = %v", gotBody)
	}
	if ack.AssessmentID != "a42" {
		t.Errorf("AssessmentID = %q, want a42", ack.AssessmentID)
	}
}

func TestClient_SessionTransitionRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Session already completed"}`))
	})
	_, err := c.CompleteSession(context.Background(), "p1", 1)
	if !errors.Is(err, ErrRejected) || !strings.Contains(err.Error(), "already completed") {
		t.Errorf("CompleteSession() error = %v, want ErrRejected with message", err)
	}
}
