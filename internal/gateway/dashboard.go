package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/p-n-ai/teachmate/internal/dashboard"
	"github.com/p-n-ai/teachmate/internal/report"
)

func teacherPath(teacherID, rest string) string {
	return "/api/teacher/" + url.PathEscape(teacherID) + rest
}

// DashboardStats fetches precomputed headline numbers.
func (c *Client) DashboardStats(ctx context.Context, teacherID string) (dashboard.Stats, error) {
	var st dashboard.Stats
	if err := c.do(ctx, http.MethodGet, teacherPath(teacherID, "/dashboard/stats"), nil, &st); err != nil {
		return dashboard.Stats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return st, nil
}

type activityWire struct {
	ID        oid    `json:"_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	CreatedAt stamp  `json:"createdAt"`
}

// RecentActivities fetches the activity feed.
func (c *Client) RecentActivities(ctx context.Context, teacherID string) ([]dashboard.Activity, error) {
	var wire []activityWire
	if err := c.do(ctx, http.MethodGet, teacherPath(teacherID, "/dashboard/activities"), nil, &wire); err != nil {
		return nil, fmt.Errorf("dashboard activities: %w", err)
	}
	out := make([]dashboard.Activity, len(wire))
	for i, w := range wire {
		out[i] = dashboard.Activity{
			ID:        string(w.ID),
			Title:     w.Title,
			Type:      dashboard.ActivityType(w.Type),
			Time:      w.Time,
			Status:    w.Status,
			CreatedAt: w.CreatedAt.Time(),
		}
	}
	return out, nil
}

type taskWire struct {
	ID       oid    `json:"_id"`
	Title    string `json:"title"`
	DueDate  string `json:"dueDate"`
	Priority string `json:"priority"`
	Type     string `json:"type"`
}

// UpcomingTasks fetches the to-do list.
func (c *Client) UpcomingTasks(ctx context.Context, teacherID string) ([]dashboard.Task, error) {
	var wire []taskWire
	if err := c.do(ctx, http.MethodGet, teacherPath(teacherID, "/dashboard/tasks"), nil, &wire); err != nil {
		return nil, fmt.Errorf("dashboard tasks: %w", err)
	}
	out := make([]dashboard.Task, len(wire))
	for i, w := range wire {
		out[i] = dashboard.Task{
			ID:       string(w.ID),
			Title:    w.Title,
			DueDate:  w.DueDate,
			Priority: dashboard.Priority(w.Priority),
			Type:     w.Type,
		}
	}
	return out, nil
}

type studentWire struct {
	MongoID      oid            `json:"_id"`
	ID           oid            `json:"id"`
	Name         string         `json:"name"`
	Grade        string         `json:"grade"`
	OverallScore flexInt        `json:"overallScore"`
	Subjects     map[string]int `json:"subjects"`
	Trend        string         `json:"trend"`
	LastActivity string         `json:"lastActivity"`
}

// StudentProgress lists the progress of the teacher's students.
func (c *Client) StudentProgress(ctx context.Context, teacherID string) ([]report.StudentProgress, error) {
	var wire []studentWire
	if err := c.do(ctx, http.MethodGet, teacherPath(teacherID, "/students/progress"), nil, &wire); err != nil {
		return nil, fmt.Errorf("student progress: %w", err)
	}
	out := make([]report.StudentProgress, len(wire))
	for i, w := range wire {
		id := w.MongoID
		if id == "" {
			id = w.ID
		}
		trend := report.Trend(w.Trend)
		if trend == "" {
			trend = report.TrendFlat
		}
		out[i] = report.StudentProgress{
			ID:           string(id),
			Name:         w.Name,
			Grade:        w.Grade,
			OverallScore: int(w.OverallScore),
			Subjects:     w.Subjects,
			Trend:        trend,
			LastActivity: w.LastActivity,
		}
	}
	return out, nil
}
