package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Event types recorded by the workflow.
const (
	EventPlanGenerated     = "plan_generated"
	EventSessionCompleted  = "session_completed"
	EventAssessmentCreated = "assessment_created"
)

// Event is one workflow step persisted for auditing and the activity feed.
type Event struct {
	TeacherID     string
	PlanID        string
	SessionNumber int
	EventType     string
	Data          map[string]any
	CreatedAt     time.Time
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresEventLogger inserts events into the workflow_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.TeacherID == "" {
		return fmt.Errorf("teacher_id is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var session *int
	if event.SessionNumber > 0 {
		session = &event.SessionNumber
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO workflow_events (teacher_id, plan_id, session_number, event_type, data, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5::jsonb, $6)`,
		event.TeacherID,
		event.PlanID,
		session,
		event.EventType,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"teacher_id", event.TeacherID,
		"plan_id", event.PlanID,
	)
	return nil
}

// RecentEvents returns a teacher's newest events first.
func (l *PostgresEventLogger) RecentEvents(ctx context.Context, teacherID string, limit int) ([]Event, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT teacher_id, COALESCE(plan_id, ''), COALESCE(session_number, 0), event_type, data, created_at
		 FROM workflow_events
		 WHERE teacher_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		teacherID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.TeacherID, &e.PlanID, &e.SessionNumber, &e.EventType, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeBefore drops events older than cutoff.
func (l *MemoryEventLogger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.events[:0]
	for _, e := range l.events {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	n := int64(len(l.events) - len(kept))
	l.events = kept
	return n, nil
}

// PurgeBefore deletes events older than cutoff.
func (l *PostgresEventLogger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil || l.pool == nil {
		return 0, fmt.Errorf("event logger pool is nil")
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM workflow_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return tag.RowsAffected(), nil
}
