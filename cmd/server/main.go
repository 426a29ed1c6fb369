package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/ai"
	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/gateway"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/platform/cache"
	"github.com/p-n-ai/teachmate/internal/platform/config"
	"github.com/p-n-ai/teachmate/internal/platform/database"
	"github.com/p-n-ai/teachmate/internal/platform/logging"
	"github.com/p-n-ai/teachmate/internal/report"
	"github.com/p-n-ai/teachmate/internal/retention"
	"github.com/p-n-ai/teachmate/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newMux(a.web, a.checks...),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // plan generation is slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "backend", cfg.Backend.URL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	a.web.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// readyCheck is one dependency probed by /readyz.
type readyCheck struct {
	name  string
	check func(context.Context) error
}

// app is the wired dashboard with the resources it owns.
type app struct {
	web     *web.Server
	checks  []readyCheck
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the optional stores and builds the dashboard server.
// Without a database URL every store lives in memory; without a cache URL
// reference data is cached in process.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout}
	probe := gateway.New(cfg.Backend.URL, gateway.WithHTTPClient(httpClient))
	a.checks = append(a.checks, readyCheck{name: "backend", check: probe.Ping})

	var (
		accounts account.Store = account.NewMemoryStore()
		events   planner.EventLogger
		convs    assistant.Store = assistant.NewMemoryStore()
		purge    []retention.Target
	)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks = append(a.checks, readyCheck{name: "database", check: db.HealthCheck})
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}

		pgAccounts, err := account.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		pgConvs, err := assistant.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		pgEvents := planner.NewPostgresEventLogger(db.Pool)
		accounts, convs, events = pgAccounts, pgConvs, pgEvents
		purge = []retention.Target{
			{Name: "workflow_events", Purge: pgEvents.PurgeBefore},
			{Name: "conversations", Purge: pgConvs.PurgeEndedBefore},
		}
		slog.Info("using postgres stores")
	} else {
		memEvents, memConvs := planner.NewMemoryEventLogger(), assistant.NewMemoryStore()
		convs, events = memConvs, memEvents
		purge = []retention.Target{
			{Name: "workflow_events", Purge: memEvents.PurgeBefore},
			{Name: "conversations", Purge: memConvs.PurgeEndedBefore},
		}
		slog.Warn("no database configured, accounts and conversations are kept in memory")
	}

	var (
		refCache curriculum.Store = cache.NewMemory()
		counter  ai.Counter
	)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		a.checks = append(a.checks, readyCheck{name: "cache", check: c.HealthCheck})
		refCache, counter = c, c
	}

	wrapCurriculum := func(next curriculum.Source) curriculum.Source {
		return curriculum.NewCachedSource(next, refCache, cfg.Cache.TTL)
	}
	if cfg.CurriculumPath != "" {
		loader, err := curriculum.NewLoader(cfg.CurriculumPath)
		if err != nil {
			return nil, err
		}
		slog.Info("serving curriculum from disk", "path", cfg.CurriculumPath)
		wrapCurriculum = func(curriculum.Source) curriculum.Source { return loader }
	}

	if cfg.Retention.Days > 0 {
		reaper, err := retention.New(cfg.Retention.Schedule, cfg.Retention.Days, purge)
		if err != nil {
			return nil, err
		}
		reaper.Start()
		a.closers = append(a.closers, reaper.Stop)
	}

	templates, err := report.LoadTemplates(cfg.Report.TemplatesPath)
	if err != nil {
		return nil, err
	}

	sealer, err := account.NewSealer(cfg.Auth.SealSecret)
	if err != nil {
		return nil, err
	}
	theme, err := account.ParseTheme(cfg.Auth.DefaultTheme)
	if err != nil {
		return nil, err
	}

	cookies := sessions.NewCookieStore([]byte(cfg.Auth.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Auth.TokenTTL * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	srv, err := web.NewServer(web.Config{
		NewBackend: func(session *account.Session, onUnauthorized func()) web.Backend {
			return gateway.New(cfg.Backend.URL,
				gateway.WithHTTPClient(httpClient),
				gateway.WithTokenSource(session),
				gateway.WithUnauthorizedHandler(onUnauthorized),
			)
		},
		Accounts:     accounts,
		Sealer:       sealer,
		Cookies:      cookies,
		TokenTTL:     time.Duration(cfg.Auth.TokenTTL) * 24 * time.Hour,
		DefaultTheme: theme,
		Curriculum:   wrapCurriculum,
		Events:       events,
		Planner: web.PlannerDefaults{
			Sessions:    cfg.Planner.DefaultSessions,
			Duration:    cfg.Planner.DefaultDuration,
			MaxSessions: cfg.Planner.MaxSessions,
		},
		Assistant: assistant.NewEngine(assistant.EngineConfig{
			AIRouter: ai.NewRouterFromConfig(cfg.AI),
			Store:    convs,
			Budget:   ai.NewBudget(cfg.AI.TokenBudget, counter),
		}),
		Templates: templates,
	})
	if err != nil {
		return nil, err
	}
	a.web = srv
	ok = true
	return a, nil
}

// newMux creates the HTTP router with health check endpoints and, when srv
// is set, the dashboard routes.
func newMux(srv *web.Server, checks ...readyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	if srv != nil {
		srv.Register(mux)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []readyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.name, "error", err)
				failed[c.name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
