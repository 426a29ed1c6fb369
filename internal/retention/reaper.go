// Package retention purges old workflow events and ended assistant
// conversations on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds one scheduled purge.
const runTimeout = 4 * time.Minute

// PurgeFunc deletes records older than cutoff and reports how many went.
type PurgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// Target is one table or store the reaper trims.
type Target struct {
	Name  string
	Purge PurgeFunc
}

// Reaper runs its targets on a schedule, skipping a tick while the previous
// run is still going.
type Reaper struct {
	cron      *cron.Cron
	retention time.Duration
	targets   []Target
	now       func() time.Time
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithClock overrides time.Now for cutoff calculation.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) { r.now = now }
}

// New builds a reaper keeping days of history. It fails on a non-positive
// retention or a schedule cron cannot parse.
func New(schedule string, days int, targets []Target, opts ...Option) (*Reaper, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	logger := slogLogger{}
	r := &Reaper{
		cron:      cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		retention: time.Duration(days) * 24 * time.Hour,
		targets:   targets,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the schedule in the background.
func (r *Reaper) Start() {
	slog.Info("retention reaper started", "retention", r.retention, "targets", len(r.targets))
	r.cron.Start()
}

// Stop halts the schedule and waits for a running purge to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce purges every target now. A failing target does not stop the
// others; their errors are joined.
func (r *Reaper) RunOnce(ctx context.Context) (map[string]int64, error) {
	cutoff := r.now().Add(-r.retention)
	removed := make(map[string]int64, len(r.targets))
	var errs []error
	for _, t := range r.targets {
		n, err := t.Purge(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		removed[t.Name] = n
	}
	return removed, errors.Join(errs...)
}

func (r *Reaper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	removed, err := r.RunOnce(ctx)
	for name, n := range removed {
		slog.Info("retention purge", "target", name, "removed", n)
	}
	if err != nil {
		slog.Error("retention purge failed", "error", err)
	}
}

// slogLogger routes cron's own logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
