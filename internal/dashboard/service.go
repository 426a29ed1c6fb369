package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/planner"
)

// Fallback constants used when the backend has no dashboard endpoint.
const (
	WeeklyLessonPlanTarget  = 10
	PlaceholderProgress     = 85
	PlaceholderReportsSent  = 8
	PlaceholderReportsTotal = 12

	maxActivities = 4
	maxTasks      = 3
)

// Backend serves the dashboard endpoints and the lists the fallbacks are
// computed from. gateway.Client satisfies it.
type Backend interface {
	DashboardStats(ctx context.Context, teacherID string) (Stats, error)
	RecentActivities(ctx context.Context, teacherID string) ([]Activity, error)
	UpcomingTasks(ctx context.Context, teacherID string) ([]Task, error)
	ListPlans(ctx context.Context, teacherID string) ([]planner.LessonPlan, error)
	ListAssessments(ctx context.Context, teacherID string) ([]assessment.Assessment, error)
}

// Service reads the dashboard endpoints and derives the same views from
// plans and assessments when an endpoint is unavailable.
type Service struct {
	backend Backend
	now     func() time.Time
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

// Stats returns headline numbers. When both the endpoint and the fallback
// fail, the zero stats with the weekly target are returned with the error.
func (s *Service) Stats(ctx context.Context, teacherID string) (Stats, error) {
	st, err := s.backend.DashboardStats(ctx, teacherID)
	if err == nil {
		return st, nil
	}
	slog.Debug("dashboard stats endpoint unavailable, computing", "teacher_id", teacherID, "error", err)

	plans, assessments, err := s.lists(ctx, teacherID)
	if err != nil {
		slog.Warn("computing dashboard stats failed", "teacher_id", teacherID, "error", err)
		return Stats{WeeklyProgress: WeeklyProgress{TotalLessonPlansTarget: WeeklyLessonPlanTarget}}, err
	}
	return ComputeStats(plans, assessments, s.now()), nil
}

// Activities returns the recent activity feed, newest first.
func (s *Service) Activities(ctx context.Context, teacherID string) ([]Activity, error) {
	acts, err := s.backend.RecentActivities(ctx, teacherID)
	if err == nil {
		return acts, nil
	}
	slog.Debug("dashboard activities endpoint unavailable, computing", "teacher_id", teacherID, "error", err)

	plans, assessments, err := s.lists(ctx, teacherID)
	if err != nil {
		slog.Warn("computing recent activities failed", "teacher_id", teacherID, "error", err)
		return []Activity{}, err
	}
	return ComputeActivities(plans, assessments, s.now()), nil
}

// Tasks returns upcoming to-dos.
func (s *Service) Tasks(ctx context.Context, teacherID string) ([]Task, error) {
	tasks, err := s.backend.UpcomingTasks(ctx, teacherID)
	if err == nil {
		return tasks, nil
	}
	slog.Debug("dashboard tasks endpoint unavailable, computing", "teacher_id", teacherID, "error", err)

	assessments, err := s.backend.ListAssessments(ctx, teacherID)
	if err != nil {
		slog.Warn("computing upcoming tasks failed", "teacher_id", teacherID, "error", err)
		return []Task{}, fmt.Errorf("listing assessments: %w", err)
	}
	return ComputeTasks(assessments), nil
}

func (s *Service) lists(ctx context.Context, teacherID string) ([]planner.LessonPlan, []assessment.Assessment, error) {
	var (
		plans       []planner.LessonPlan
		assessments []assessment.Assessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plans, err = s.backend.ListPlans(gctx, teacherID)
		return err
	})
	g.Go(func() error {
		var err error
		assessments, err = s.backend.ListAssessments(gctx, teacherID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return plans, assessments, nil
}

// ComputeStats derives the headline numbers from plans and assessments.
func ComputeStats(plans []planner.LessonPlan, assessments []assessment.Assessment, now time.Time) Stats {
	weekAgo := now.AddDate(0, 0, -7)
	st := Stats{
		TotalAssessments:       len(assessments),
		AverageStudentProgress: PlaceholderProgress,
		ContentItems:           len(plans) + len(assessments),
		WeeklyProgress: WeeklyProgress{
			TotalLessonPlansTarget:  WeeklyLessonPlanTarget,
			TotalAssessmentsToGrade: len(assessments),
			ParentReportsSent:       PlaceholderReportsSent,
			TotalParentReports:      PlaceholderReportsTotal,
		},
	}
	for _, p := range plans {
		if p.Status == planner.StatusActive {
			st.ActiveLessons++
		}
		if !p.CreatedAt.Before(weekAgo) {
			st.WeeklyProgress.LessonPlansCreated++
		}
	}
	for _, a := range assessments {
		switch a.Status {
		case assessment.StatusDraft:
			st.PendingAssessments++
		case assessment.StatusPublished:
			st.WeeklyProgress.AssessmentsGraded++
		}
	}
	return st
}

// ComputeActivities takes the first two plans and the first two assessments
// and orders them newest first.
func ComputeActivities(plans []planner.LessonPlan, assessments []assessment.Assessment, now time.Time) []Activity {
	out := make([]Activity, 0, maxActivities)
	for _, p := range plans[:min(2, len(plans))] {
		out = append(out, Activity{
			ID:        p.ID,
			Title:     fmt.Sprintf("%s Lesson Plan - %s", p.SubjectName, p.ChapterName),
			Type:      ActivityLessonPlan,
			Time:      RelativeTime(p.CreatedAt, now),
			Status:    statusLabel(string(p.Status)),
			CreatedAt: p.CreatedAt,
		})
	}
	for _, a := range assessments[:min(2, len(assessments))] {
		title := a.Title
		if title == "" {
			title = "Assessment " + a.ID[max(0, len(a.ID)-6):]
		}
		out = append(out, Activity{
			ID:        a.ID,
			Title:     title,
			Type:      ActivityAssessment,
			Time:      RelativeTime(a.CreatedAt, now),
			Status:    statusLabel(string(a.Status)),
			CreatedAt: a.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out[:min(maxActivities, len(out))]
}

func statusLabel(s string) string {
	if s == "" {
		return "draft"
	}
	return strings.ToLower(s)
}

// ComputeTasks suggests a review task for draft assessments followed by the
// standing planning and reporting tasks.
func ComputeTasks(assessments []assessment.Assessment) []Task {
	drafts := 0
	for _, a := range assessments {
		if a.Status == assessment.StatusDraft {
			drafts++
		}
	}

	var tasks []Task
	if drafts > 0 {
		tasks = append(tasks, Task{
			ID:       "review-assessments",
			Title:    fmt.Sprintf("Review %d pending assessments", drafts),
			DueDate:  "Today",
			Priority: PriorityHigh,
			Type:     "Assessment Review",
		})
	}
	tasks = append(tasks,
		Task{
			ID:       "lesson-plan-tomorrow",
			Title:    "Prepare lesson plan for tomorrow",
			DueDate:  "Tomorrow",
			Priority: PriorityMedium,
			Type:     "Lesson Planning",
		},
		Task{
			ID:       "progress-reports",
			Title:    "Update student progress reports",
			DueDate:  "This week",
			Priority: PriorityLow,
			Type:     "Reporting",
		},
	)
	return tasks[:min(maxTasks, len(tasks))]
}

// RelativeTime renders t as "Just now", "N hours ago" or "N days ago".
func RelativeTime(t, now time.Time) string {
	hours := int(now.Sub(t) / time.Hour)
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	default:
		return plural(hours/24, "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
