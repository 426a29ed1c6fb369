// Package dashboard assembles the teacher home screen: headline stats,
// recent activity and upcoming tasks.
package dashboard

import "time"

// Stats are the headline numbers.
type Stats struct {
	ActiveLessons          int            `json:"activeLessons"`
	TotalAssessments       int            `json:"totalAssessments"`
	PendingAssessments     int            `json:"pendingAssessments"`
	AverageStudentProgress int            `json:"averageStudentProgress"`
	ContentItems           int            `json:"contentItems"`
	WeeklyProgress         WeeklyProgress `json:"weeklyProgress"`
}

// WeeklyProgress tracks goals for the trailing seven days.
type WeeklyProgress struct {
	LessonPlansCreated      int `json:"lessonPlansCreated"`
	TotalLessonPlansTarget  int `json:"totalLessonPlansTarget"`
	AssessmentsGraded       int `json:"assessmentsGraded"`
	TotalAssessmentsToGrade int `json:"totalAssessmentsToGrade"`
	ParentReportsSent       int `json:"parentReportsSent"`
	TotalParentReports      int `json:"totalParentReports"`
}

// ActivityType labels a recent activity.
type ActivityType string

const (
	ActivityAssessment ActivityType = "Assessment"
	ActivityLessonPlan ActivityType = "Lesson Plan"
	ActivityContent    ActivityType = "Content"
	ActivityReport     ActivityType = "Report"
)

// Activity is one row of the recent activity feed.
type Activity struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Type      ActivityType `json:"type"`
	Time      string       `json:"time"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Priority of an upcoming task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Task is one upcoming to-do.
type Task struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	DueDate  string   `json:"dueDate"`
	Priority Priority `json:"priority"`
	Type     string   `json:"type"`
}
