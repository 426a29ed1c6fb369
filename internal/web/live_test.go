package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/selector"
	"github.com/p-n-ai/teachmate/internal/web"
)

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type livePlans struct {
	Plans []struct {
		ID       string `json:"id"`
		Sessions []struct {
			Number    int  `json:"number"`
			Completed bool `json:"completed"`
		} `json:"sessions"`
	} `json:"plans"`
	Generating bool `json:"generating"`
}

func dialLive(t *testing.T, h *harness) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL, nil)
	header := http.Header{}
	for _, c := range h.client.Jar.Cookies(req.URL) {
		header.Add("Cookie", c.String())
	}
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws/planner"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, cmd web.Command) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		t.Fatalf("write %s: %v", cmd.Type, err)
	}
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, what string, match func(rawFrame) bool) rawFrame {
	t.Helper()
	for {
		var f rawFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(f) {
			return f
		}
	}
}

// expectAll reads frames until every matcher has accepted one, in any order.
func expectAll(t *testing.T, ctx context.Context, conn *websocket.Conn, matchers map[string]func(rawFrame) bool) {
	t.Helper()
	for len(matchers) > 0 {
		var f rawFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %d frames: %v", len(matchers), err)
		}
		for what, match := range matchers {
			if match(f) {
				delete(matchers, what)
			}
		}
	}
}

func snapshotWhere(t *testing.T, pred func(selector.Snapshot) bool) func(rawFrame) bool {
	return func(f rawFrame) bool {
		if f.Type != web.FrameSelector {
			return false
		}
		var s selector.Snapshot
		if err := json.Unmarshal(f.Data, &s); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		return pred(s)
	}
}

func notificationWhere(t *testing.T, kind notify.Kind, text string) func(rawFrame) bool {
	return func(f rawFrame) bool {
		if f.Type != web.FrameNotification {
			return false
		}
		var n notify.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		return n.Kind == kind && strings.Contains(n.Message, text)
	}
}

func TestLive_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws/planner"
	_, resp, err := websocket.Dial(context.Background(), url, nil)
	if err == nil {
		t.Fatal("Dial() without a session succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestLive_SelectGenerateComplete(t *testing.T) {
	h := newHarness(t)
	h.login()
	conn, ctx := dialLive(t, h)

	send(t, ctx, conn, web.Command{Type: "init"})
	readUntil(t, ctx, conn, "grades", snapshotWhere(t, func(s selector.Snapshot) bool {
		return len(s.Levels[selector.LevelGrade].Options) == 2
	}))

	send(t, ctx, conn, web.Command{Type: "select", Level: selector.LevelGrade, Value: "g9"})
	readUntil(t, ctx, conn, "subjects", snapshotWhere(t, func(s selector.Snapshot) bool {
		return len(s.Levels[selector.LevelSubject].Options) == 1
	}))
	send(t, ctx, conn, web.Command{Type: "select", Level: selector.LevelSubject, Value: "math"})
	readUntil(t, ctx, conn, "chapters", snapshotWhere(t, func(s selector.Snapshot) bool {
		return len(s.Levels[selector.LevelChapter].Options) == 1
	}))
	send(t, ctx, conn, web.Command{Type: "select", Level: selector.LevelChapter, Value: "ch1"})
	readUntil(t, ctx, conn, "chapter selected", snapshotWhere(t, func(s selector.Snapshot) bool {
		return s.Levels[selector.LevelChapter].Value == "ch1"
	}))

	send(t, ctx, conn, web.Command{Type: "generate"})
	expectAll(t, ctx, conn, map[string]func(rawFrame) bool{
		"generated toast": notificationWhere(t, notify.KindSuccess, "Lesson plan generated"),
		// The selection is cleared once the plan exists.
		"selector reset": snapshotWhere(t, func(s selector.Snapshot) bool {
			return s.Levels[selector.LevelGrade].Value == "" && len(s.Levels[selector.LevelGrade].Options) == 2
		}),
	})

	send(t, ctx, conn, web.Command{Type: "complete", PlanID: "plan-1", Session: 1})
	expectAll(t, ctx, conn, map[string]func(rawFrame) bool{
		"completed toast": notificationWhere(t, notify.KindSuccess, "Session 1 marked as complete"),
		"completed plan": func(f rawFrame) bool {
			if f.Type != web.FramePlans {
				return false
			}
			var p livePlans
			_ = json.Unmarshal(f.Data, &p)
			return len(p.Plans) == 1 && p.Plans[0].Sessions[0].Completed
		},
	})

	// Completing again is rejected without a remote call.
	send(t, ctx, conn, web.Command{Type: "complete", PlanID: "plan-1", Session: 1})
	readUntil(t, ctx, conn, "guard error", func(f rawFrame) bool {
		return f.Type == web.FrameError && strings.Contains(string(f.Data), "already completed")
	})
}

func TestLive_ValidationAndUnknownCommands(t *testing.T) {
	h := newHarness(t)
	h.login()
	conn, ctx := dialLive(t, h)

	// Nothing selected yet.
	send(t, ctx, conn, web.Command{Type: "generate"})
	readUntil(t, ctx, conn, "validation toast", func(f rawFrame) bool {
		return f.Type == web.FrameNotification && strings.Contains(string(f.Data), string(notify.KindValidationFailure))
	})

	send(t, ctx, conn, web.Command{Type: "dance"})
	readUntil(t, ctx, conn, "unknown command", func(f rawFrame) bool {
		return f.Type == web.FrameError && strings.Contains(string(f.Data), "dance")
	})

	send(t, ctx, conn, web.Command{Type: "assessment_defaults", PlanID: "plan-1", Session: 1})
	readUntil(t, ctx, conn, "defaults", func(f rawFrame) bool {
		return f.Type == web.FrameDefaults && strings.Contains(string(f.Data), "c9a")
	})
}

func TestLive_NotificationsReachEveryTab(t *testing.T) {
	h := newHarness(t)
	h.login()
	first, ctx := dialLive(t, h)
	second, _ := dialLive(t, h)

	// A plan generated over HTTP is announced on both sockets.
	status, body := h.do(http.MethodPost, "/api/lesson-plans", map[string]any{
		"gradeId": "g9", "subjectId": "math", "chapterId": "ch1", "sessionCount": 1, "sessionDuration": 40,
	})
	if status != http.StatusCreated {
		t.Fatalf("generate = %d %s", status, body)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		readUntil(t, ctx, conn, "generated toast", notificationWhere(t, notify.KindSuccess, "Lesson plan generated"))
	}
}
