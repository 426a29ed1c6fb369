package web

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/dashboard"
)

type dashboardBody struct {
	Stats      dashboard.Stats      `json:"stats"`
	Activities []dashboard.Activity `json:"activities"`
	Tasks      []dashboard.Task     `json:"tasks"`
	Degraded   bool                 `json:"degraded,omitempty"`
}

// handleDashboard loads the three panels in parallel. A panel that fails
// keeps its placeholder values; only an expired credential fails the page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sf *surface) {
	var (
		body                      dashboardBody
		statsErr, actErr, taskErr error
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		body.Stats, statsErr = sf.dashboard.Stats(ctx, sf.teacherID)
		return nil
	})
	g.Go(func() error {
		body.Activities, actErr = sf.dashboard.Activities(ctx, sf.teacherID)
		return nil
	})
	g.Go(func() error {
		body.Tasks, taskErr = sf.dashboard.Tasks(ctx, sf.teacherID)
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(statsErr, actErr, taskErr); err != nil {
		if errors.Is(err, account.ErrSessionExpired) {
			writeError(w, err)
			return
		}
		slog.Warn("dashboard partially unavailable", "teacher_id", sf.teacherID, "error", err)
		body.Degraded = true
	}
	if body.Activities == nil {
		body.Activities = []dashboard.Activity{}
	}
	if body.Tasks == nil {
		body.Tasks = []dashboard.Task{}
	}
	writeJSON(w, http.StatusOK, body)
}
