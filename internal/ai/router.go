package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when no registered provider serves a task.
var ErrNoProvider = errors.New("no AI provider available")

type route struct {
	name     string
	provider Provider
	tasks    map[TaskType]bool // nil serves every task
}

func (r route) serves(t TaskType) bool {
	return r.tasks == nil || r.tasks[t]
}

// Router tries providers in registration order, skipping those that do not
// serve the request's task, and falls through on error.
type Router struct {
	mu     sync.RWMutex
	routes []route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Register appends a provider. With no tasks it serves all of them.
func (r *Router) Register(name string, p Provider, tasks ...TaskType) {
	rt := route{name: name, provider: p}
	if len(tasks) > 0 {
		rt.tasks = make(map[TaskType]bool, len(tasks))
		for _, t := range tasks {
			rt.tasks[t] = true
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, rt)
}

// Complete sends req to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	routes := append([]route(nil), r.routes...)
	r.mu.RUnlock()

	var errs []error
	for _, rt := range routes {
		if !rt.serves(req.Task) {
			continue
		}
		resp, err := rt.provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", rt.name,
				"task", req.Task,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", rt.name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.Provider == "" {
			resp.Provider = rt.name
		}
		slog.Debug("AI request completed",
			"provider", rt.name,
			"task", req.Task,
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if len(errs) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w for task %s", ErrNoProvider, req.Task)
	}
	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes) > 0
}

// Providers lists registered provider names in order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.name
	}
	return out
}
