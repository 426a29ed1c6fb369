package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/selector"
)

const writeTimeout = 10 * time.Second

// Frame types pushed to the planner page.
const (
	FrameSelector     = "selector"
	FramePlans        = "plans"
	FrameNotification = "notification"
	FrameDefaults     = "assessment_defaults"
	FrameError        = "error"
)

// Command is a message from the planner page.
type Command struct {
	Type       string                    `json:"type"`
	Level      string                    `json:"level,omitempty"`
	Value      string                    `json:"value,omitempty"`
	PlanID     string                    `json:"planId,omitempty"`
	Session    int                       `json:"session,omitempty"`
	Form       *planner.Form             `json:"form,omitempty"`
	Assessment *planner.AssessmentConfig `json:"assessment,omitempty"`
}

// Frame is a message to the planner page.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type plansFrame struct {
	Plans       []planner.LessonPlan `json:"plans"`
	Form        planner.Form         `json:"form"`
	MaxSessions int                  `json:"maxSessions"`
	Generating  bool                 `json:"generating"`
	Busy        []busySession        `json:"busy"`
}

type busySession struct {
	PlanID  string `json:"planId"`
	Session int    `json:"session"`
}

// live is one open planner page: its own selector, sharing the teacher's
// workflow with every other page.
type live struct {
	sf   *surface
	conn *websocket.Conn
	sel  *selector.CurriculumSelector
	now  func() time.Time

	// The selector can emit from several goroutines; only the newest
	// snapshot is worth sending.
	snapMu   sync.Mutex
	snap     *selector.Snapshot
	snapSig  chan struct{}
	frames   chan Frame
	toasts   *notify.Chan
	inflight sync.WaitGroup
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, sf *surface) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	l := &live{
		sf:      sf,
		now:     s.cfg.Now,
		snapSig: make(chan struct{}, 1),
		frames:  make(chan Frame, 16),
		toasts:  notify.NewChan(32),
	}
	l.sel = selector.NewCurriculumSelector(sf.curriculum,
		selector.WithNotifier(l.toasts),
		selector.WithOnChange(l.onSnapshot),
		selector.WithContext(ctx),
	)
	sf.selectors.add(l.sel)
	defer func() {
		sf.selectors.remove(l.sel)
		l.sel.Close()
	}()

	// Subscribe before the handshake completes so nothing raised meanwhile
	// is missed.
	sinkName := "ws-" + uuid.NewString()
	sf.hub.Register(sinkName, l.toasts)
	defer sf.hub.Unregister(sinkName)

	changes, stopWatch := sf.watch()
	defer stopWatch()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "teacher_id", sf.teacherID, "error", err)
		return
	}
	defer conn.CloseNow()
	l.conn = conn

	slog.Info("planner connected", "teacher_id", sf.teacherID, "sink", sinkName)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.writeLoop(ctx, changes)
	}()

	err = l.readLoop(ctx)
	cancel()
	l.inflight.Wait()
	<-done

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		slog.Warn("planner connection ended", "teacher_id", sf.teacherID, "error", err)
		conn.Close(websocket.StatusInternalError, "")
	}
	slog.Info("planner disconnected", "teacher_id", sf.teacherID)
}

func (l *live) onSnapshot(s selector.Snapshot) {
	l.snapMu.Lock()
	if l.snap == nil || s.Version > l.snap.Version {
		l.snap = &s
	}
	l.snapMu.Unlock()
	select {
	case l.snapSig <- struct{}{}:
	default:
	}
}

func (l *live) takeSnapshot() *selector.Snapshot {
	l.snapMu.Lock()
	defer l.snapMu.Unlock()
	s := l.snap
	l.snap = nil
	return s
}

// writeLoop is the only writer on the connection.
func (l *live) writeLoop(ctx context.Context, changes <-chan struct{}) {
	for {
		var f Frame
		select {
		case <-ctx.Done():
			return
		case <-l.snapSig:
			s := l.takeSnapshot()
			if s == nil {
				continue
			}
			f = Frame{Type: FrameSelector, Data: s}
		case <-changes:
			f = Frame{Type: FramePlans, Data: l.plans()}
		case n := <-l.toasts.C:
			f = Frame{Type: FrameNotification, Data: n}
		case f = <-l.frames:
		}
		if err := l.write(ctx, f); err != nil {
			return
		}
	}
}

func (l *live) write(ctx context.Context, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, l.conn, f)
}

func (l *live) send(ctx context.Context, f Frame) {
	select {
	case l.frames <- f:
	case <-ctx.Done():
	}
}

func (l *live) plans() plansFrame {
	wf := l.sf.workflow
	pf := plansFrame{
		Plans:       wf.Plans(),
		Form:        wf.Form(),
		MaxSessions: wf.MaxSessions(),
		Generating:  wf.Generating(),
		Busy:        []busySession{},
	}
	for _, p := range pf.Plans {
		for _, s := range p.Sessions {
			if wf.Busy(p.ID, s.Number) {
				pf.Busy = append(pf.Busy, busySession{PlanID: p.ID, Session: s.Number})
			}
		}
	}
	return pf
}

func (l *live) readLoop(ctx context.Context) error {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, l.conn, &cmd); err != nil {
			return err
		}
		l.handle(ctx, cmd)
	}
}

// handle applies one command. Remote operations run in the background so
// the page stays responsive; their outcome arrives as notifications and
// plan frames.
func (l *live) handle(ctx context.Context, cmd Command) {
	wf := l.sf.workflow
	teacherID := l.sf.teacherID

	switch cmd.Type {
	case "init":
		l.sel.Init()
		l.background(ctx, func() error {
			_, err := wf.ListPlans(ctx, teacherID)
			return err
		})
	case "select":
		switch cmd.Level {
		case selector.LevelGrade:
			l.sel.SelectGrade(cmd.Value)
		case selector.LevelSubject:
			l.sel.SelectSubject(cmd.Value)
		case selector.LevelChapter:
			l.sel.SelectChapter(cmd.Value)
		default:
			l.send(ctx, Frame{Type: FrameError, Data: selector.ErrUnknownLevel.Error() + ": " + cmd.Level})
		}
	case "reset":
		l.sel.Reset()
	case "form":
		if cmd.Form != nil {
			wf.SetForm(*cmd.Form)
			l.sf.broadcast()
		}
	case "generate":
		req := planner.NewGenerateRequest(teacherID, l.sel.Selection(), wf.Form())
		l.background(ctx, func() error {
			_, err := wf.GeneratePlan(ctx, req)
			return err
		})
	case "complete":
		l.background(ctx, func() error {
			return wf.CompleteSession(ctx, cmd.PlanID, cmd.Session)
		})
	case "assessment_defaults":
		l.send(ctx, Frame{Type: FrameDefaults, Data: planner.AssessmentDefaults(l.now(), l.sf.user())})
	case "assess":
		if cmd.Assessment == nil {
			l.send(ctx, Frame{Type: FrameError, Data: "assessment settings are required"})
			return
		}
		cfg := *cmd.Assessment
		l.background(ctx, func() error {
			_, err := wf.CreateAssessmentForSession(ctx, cmd.PlanID, cmd.Session, cfg)
			return err
		})
	default:
		l.send(ctx, Frame{Type: FrameError, Data: "unknown command: " + cmd.Type})
	}
}

// background runs op and reports errors the workflow did not already turn
// into a notification, such as a rejected duplicate click.
func (l *live) background(ctx context.Context, op func() error) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		err := op()
		if err == nil || ctx.Err() != nil {
			return
		}
		var (
			verr    *planner.ValidationError
			failure *planner.Failure
		)
		if errors.As(err, &verr) || errors.As(err, &failure) {
			return
		}
		l.send(ctx, Frame{Type: FrameError, Data: err.Error()})
	}()
}
