package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/teachmate/internal/ai"
	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/dashboard"
	"github.com/p-n-ai/teachmate/internal/platform/cache"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/report"
	"github.com/p-n-ai/teachmate/internal/retention"
)

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check your credentials and show your classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.signIn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Signed in as %s <%s>\n", t.user.Name, t.user.Email)
			for _, c := range t.user.Classes {
				fmt.Fprintf(e.out, "  %s\t%s\t%s\n", c.ID, c.Name, c.GradeName)
			}
			return nil
		},
	}
}

func newAssessmentsCmd(e *env) *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "assessments",
		Short: "List your assessments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			svc := assessment.NewService(t.backend)
			if stats {
				st, err := svc.Stats(ctx, t.user.ID)
				if err != nil {
					return err
				}
				return e.emit(st)
			}
			list, err := svc.List(ctx, t.user.ID)
			if err != nil {
				return err
			}
			return e.emit(list)
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "show totals instead of the list")
	return cmd
}

func newDashboardCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show stats, recent activity and upcoming tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			svc := dashboard.NewService(t.backend)

			var (
				out struct {
					Stats      dashboard.Stats      `json:"stats"`
					Activities []dashboard.Activity `json:"activities"`
					Tasks      []dashboard.Task     `json:"tasks"`
				}
				statsErr, actErr, taskErr error
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				out.Stats, statsErr = svc.Stats(gctx, t.user.ID)
				return nil
			})
			g.Go(func() error {
				out.Activities, actErr = svc.Activities(gctx, t.user.ID)
				return nil
			})
			g.Go(func() error {
				out.Tasks, taskErr = svc.Tasks(gctx, t.user.ID)
				return nil
			})
			_ = g.Wait()

			if err := errors.Join(statsErr, actErr, taskErr); err != nil {
				fmt.Fprintf(e.errOut, "warning: dashboard partially unavailable: %v\n", err)
			}
			return e.emit(out)
		},
	}
}

func newReportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Student progress and parent reports",
	}

	progress := &cobra.Command{
		Use:   "progress",
		Short: "Show student progress with a band summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			rows, err := t.backend.StudentProgress(ctx, t.user.ID)
			if err != nil {
				return err
			}
			return e.emit(map[string]any{"students": rows, "summary": report.Summarize(rows)})
		},
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write student progress to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			rows, err := t.backend.StudentProgress(ctx, t.user.ID)
			if err != nil {
				return err
			}
			path := outPath
			if path == "" {
				path = report.ExportFilename(t.user.Name, e.now())
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.ExportProgress(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Wrote %d students to %s\n", len(rows), path)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "output file (default derived from your name and the date)")

	templates := &cobra.Command{
		Use:   "templates",
		Short: "List parent-report templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := report.LoadTemplates(e.cfg.Report.TemplatesPath)
			if err != nil {
				return err
			}
			for _, tpl := range ts.List() {
				fmt.Fprintf(e.out, "%s\t%s\n", tpl.ID, tpl.Name)
			}
			return nil
		},
	}

	var templateID, studentID, parentName string
	render := &cobra.Command{
		Use:   "render",
		Short: "Render a parent report for one student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ts, err := report.LoadTemplates(e.cfg.Report.TemplatesPath)
			if err != nil {
				return err
			}
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			rows, err := t.backend.StudentProgress(ctx, t.user.ID)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if row.ID != studentID {
					continue
				}
				msg, err := ts.Render(templateID, report.NewRecipient(row, parentName, t.user.Name))
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Subject: %s\n\n%s\n", msg.Subject, msg.Body)
				return nil
			}
			return fmt.Errorf("unknown student %q", studentID)
		},
	}
	render.Flags().StringVar(&templateID, "template", "", "template id")
	render.Flags().StringVar(&studentID, "student", "", "student id")
	render.Flags().StringVar(&parentName, "parent", "", "parent name used in the greeting")
	_ = render.MarkFlagRequired("template")
	_ = render.MarkFlagRequired("student")

	cmd.AddCommand(progress, export, templates, render)
	return cmd
}

func newAskCmd(e *env) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the teaching assistant",
		Long: `Ask the teaching assistant. With a database configured the conversation
continues across runs; --new starts over.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}

			var store assistant.Store = assistant.NewMemoryStore()
			db, err := e.database(ctx)
			if err != nil {
				return err
			}
			if db != nil {
				if store, err = assistant.NewPostgresStore(db.Pool); err != nil {
					return err
				}
			}
			// The daily budget only holds across runs when it lives in Redis.
			var counter ai.Counter
			if e.cfg.Cache.URL != "" && e.cfg.AI.TokenBudget > 0 {
				c, err := cache.New(ctx, e.cfg.Cache.URL)
				if err != nil {
					return err
				}
				e.closers = append(e.closers, func() { c.Close() })
				counter = c
			}
			engine := assistant.NewEngine(assistant.EngineConfig{
				AIRouter: ai.NewRouterFromConfig(e.cfg.AI),
				Store:    store,
				Budget:   ai.NewBudget(e.cfg.AI.TokenBudget, counter),
			})
			if fresh {
				if err := engine.Reset(t.user.ID); err != nil {
					return err
				}
			}

			reply, err := engine.Ask(ctx, t.user.ID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, reply.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new conversation")
	return cmd
}

func newPurgeCmd(e *env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete workflow events and ended conversations past retention",
		Long: `Delete workflow events and ended assistant conversations older than the
retention window. The server does this on its own schedule; purge runs it now.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := e.database(ctx)
			if err != nil {
				return err
			}
			if db == nil {
				return errNoDatabase
			}
			if !cmd.Flags().Changed("days") {
				days = e.cfg.Retention.Days
			}
			convs, err := assistant.NewPostgresStore(db.Pool)
			if err != nil {
				return err
			}
			r, err := retention.New(e.cfg.Retention.Schedule, days, []retention.Target{
				{Name: "workflow_events", Purge: planner.NewPostgresEventLogger(db.Pool).PurgeBefore},
				{Name: "conversations", Purge: convs.PurgeEndedBefore},
			}, retention.WithClock(e.now))
			if err != nil {
				return err
			}
			removed, err := r.RunOnce(ctx)
			for _, name := range []string{"workflow_events", "conversations"} {
				if n, ok := removed[name]; ok {
					fmt.Fprintf(e.out, "%s\t%d removed\n", name, n)
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "keep this many days (default from TEACHMATE_RETENTION_DAYS)")
	return cmd
}
