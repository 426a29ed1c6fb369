package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/selector"
)

const dateLayout = "2006-01-02"

type selection struct {
	grade, subject, chapter string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.grade, "grade", "", "grade id")
	cmd.Flags().StringVar(&s.subject, "subject", "", "subject id")
	cmd.Flags().StringVar(&s.chapter, "chapter", "", "chapter id")
}

// choose drives a selector down the chain as far as sel reaches. Each level
// must exist among the options loaded for its parent.
func (e *env) choose(ctx context.Context, t *teacher, sel selection) (*selector.CurriculumSelector, error) {
	src, err := e.curriculum(t)
	if err != nil {
		return nil, err
	}
	cs := selector.NewCurriculumSelector(src,
		selector.WithNotifier(t.notifier),
		selector.WithContext(ctx),
	)
	cs.Init()
	cs.Settle()

	steps := []struct {
		level, id string
		known     func() []string
		pick      func(string)
	}{
		{selector.LevelGrade, sel.grade, func() []string { return ids(cs.Grades(), gradeID) }, cs.SelectGrade},
		{selector.LevelSubject, sel.subject, func() []string { return ids(cs.Subjects(), subjectID) }, cs.SelectSubject},
		{selector.LevelChapter, sel.chapter, func() []string { return ids(cs.Chapters(), chapterID) }, cs.SelectChapter},
	}
	for _, st := range steps {
		if st.id == "" {
			break
		}
		if !slices.Contains(st.known(), st.id) {
			cs.Close()
			return nil, fmt.Errorf("unknown %s %q", st.level, st.id)
		}
		st.pick(st.id)
		cs.Settle()
	}
	return cs, nil
}

func ids[T any](list []T, id func(T) string) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = id(v)
	}
	return out
}

func gradeID(g curriculum.Grade) string     { return g.ID }
func subjectID(s curriculum.Subject) string { return s.ID }
func chapterID(c curriculum.Chapter) string { return c.ID }

func newCurriculumCmd(e *env) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "curriculum",
		Short: "List grades, or the subjects and chapters under a selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			cs, err := e.choose(ctx, t, sel)
			if err != nil {
				return err
			}
			defer cs.Close()

			switch {
			case sel.subject != "":
				return e.emit(cs.Chapters())
			case sel.grade != "":
				return e.emit(cs.Subjects())
			default:
				return e.emit(cs.Grades())
			}
		},
	}
	cmd.Flags().StringVar(&sel.grade, "grade", "", "list the subjects of this grade")
	cmd.Flags().StringVar(&sel.subject, "subject", "", "list the chapters of this subject (needs --grade)")
	return cmd
}

func (e *env) workflow(ctx context.Context, t *teacher, opts ...planner.Option) (*planner.Workflow, error) {
	var events planner.EventLogger = planner.NopEventLogger{}
	db, err := e.database(ctx)
	if err != nil {
		return nil, err
	}
	if db != nil {
		events = planner.NewPostgresEventLogger(db.Pool)
	}
	p := e.cfg.Planner
	return planner.NewWorkflow(t.backend, append([]planner.Option{
		planner.WithNotifier(t.notifier),
		planner.WithEventLogger(events),
		planner.WithFormDefaults(p.DefaultSessions, p.DefaultDuration, p.MaxSessions),
		planner.WithClock(e.now),
	}, opts...)...), nil
}

// loadedWorkflow returns a workflow holding the teacher's current plans.
func (e *env) loadedWorkflow(ctx context.Context, t *teacher) (*planner.Workflow, error) {
	wf, err := e.workflow(ctx, t)
	if err != nil {
		return nil, err
	}
	if _, err := wf.ListPlans(ctx, t.user.ID); err != nil {
		return nil, err
	}
	return wf, nil
}

func newPlanCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate and track lesson plans",
	}
	cmd.AddCommand(newPlanGenerateCmd(e), newPlanListCmd(e), newPlanCompleteCmd(e), newPlanAssessCmd(e), newPlanHistoryCmd(e))
	return cmd
}

func newPlanGenerateCmd(e *env) *cobra.Command {
	var (
		sel  selection
		form planner.Form
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a lesson plan for a chapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			cs, err := e.choose(ctx, t, sel)
			if err != nil {
				return err
			}
			defer cs.Close()

			wf, err := e.workflow(ctx, t, planner.WithFormResetter(cs))
			if err != nil {
				return err
			}
			wf.SetForm(form)
			plan, err := wf.GeneratePlan(ctx, planner.NewGenerateRequest(t.user.ID, cs.Selection(), wf.Form()))
			if err != nil {
				return err
			}
			return e.emit(plan)
		},
	}
	sel.bind(cmd)
	cmd.Flags().IntVar(&form.SessionCount, "sessions", 0, "number of sessions (default from config)")
	cmd.Flags().IntVar(&form.SessionDuration, "duration", 0, "minutes per session (default from config)")
	return cmd
}

func newPlanListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your lesson plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			wf, err := e.loadedWorkflow(ctx, t)
			if err != nil {
				return err
			}
			for _, p := range wf.Plans() {
				done := 0
				for _, s := range p.Sessions {
					if s.Completed {
						done++
					}
				}
				fmt.Fprintf(e.out, "%s\t%s / %s / %s\t%d/%d sessions taught\n",
					p.ID, p.GradeName, p.SubjectName, p.ChapterName, done, len(p.Sessions))
			}
			return nil
		},
	}
}

func planArgs(args []string) (string, int, error) {
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("session number %q: %w", args[1], err)
	}
	return args[0], n, nil
}

func newPlanCompleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "complete PLAN SESSION",
		Short: "Mark a session as taught",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, n, err := planArgs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			wf, err := e.loadedWorkflow(ctx, t)
			if err != nil {
				return err
			}
			if err := wf.CompleteSession(ctx, planID, n); err != nil {
				return err
			}
			plan, _ := wf.Plan(planID)
			if s, ok := plan.Session(n); ok {
				return e.emit(s)
			}
			return e.emit(plan)
		},
	}
}

func newPlanAssessCmd(e *env) *cobra.Command {
	var (
		opensOn, dueDate string
		duration         int
		classID          string
	)
	cmd := &cobra.Command{
		Use:   "assess PLAN SESSION",
		Short: "Create the assessment for a completed session",
		Long: `Create the assessment for a completed session. Unset flags take the
dialog defaults: opens tomorrow, due in a week, 60 minutes, your first class.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, n, err := planArgs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}

			cfg := planner.AssessmentDefaults(e.now(), t.user)
			if opensOn != "" {
				if cfg.OpensOn, err = time.ParseInLocation(dateLayout, opensOn, time.Local); err != nil {
					return fmt.Errorf("--opens: %w", err)
				}
			}
			if dueDate != "" {
				if cfg.DueDate, err = time.ParseInLocation(dateLayout, dueDate, time.Local); err != nil {
					return fmt.Errorf("--due: %w", err)
				}
			}
			if duration != 0 {
				cfg.Duration = duration
			}
			if classID != "" {
				cfg.ClassID = classID
			}

			wf, err := e.loadedWorkflow(ctx, t)
			if err != nil {
				return err
			}
			id, err := wf.CreateAssessmentForSession(ctx, planID, n, cfg)
			if err != nil {
				return err
			}
			return e.emit(map[string]any{"planId": planID, "session": n, "assessmentId": id})
		},
	}
	cmd.Flags().StringVar(&opensOn, "opens", "", "opening date, "+dateLayout)
	cmd.Flags().StringVar(&dueDate, "due", "", "due date, "+dateLayout)
	cmd.Flags().IntVar(&duration, "duration", 0, "minutes")
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	return cmd
}

func newPlanHistoryCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your recorded workflow steps, newest first (needs a database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := e.database(ctx)
			if err != nil {
				return err
			}
			if db == nil {
				return errNoDatabase
			}
			t, err := e.signIn(ctx)
			if err != nil {
				return err
			}
			events, err := planner.NewPostgresEventLogger(db.Pool).RecentEvents(ctx, t.user.ID, limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				session := "-"
				if ev.SessionNumber > 0 {
					session = strconv.Itoa(ev.SessionNumber)
				}
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\n",
					ev.CreatedAt.Local().Format(time.DateTime), ev.EventType, ev.PlanID, session)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}
