package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
}

func TestClient_InjectsBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"success":true,"data":[]}`))
	}, WithTokenSource(staticToken("tok-1")))

	if _, err := c.Grades(context.Background()); err != nil {
		t.Fatalf("Grades() error = %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID should be set")
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}, WithTokenSource(staticToken("")))

	if _, err := c.Grades(context.Background()); err != nil {
		t.Fatalf("Grades() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_UnauthorizedRunsHandler(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"jwt expired"}`))
	}, WithTokenSource(staticToken("stale")), WithUnauthorizedHandler(func() { calls.Add(1) }))

	_, err := c.ListPlans(context.Background(), "t1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ListPlans() error = %v, want ErrUnauthorized", err)
	}
	if calls.Load() != 1 {
		t.Errorf("unauthorized handler calls = %d, want 1", calls.Load())
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"success":false,"message":"db down"}`,
			check: func(err error) bool {
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.Status == 500 && apiErr.Message == "db down"
			},
		},
		{
			name:   "non-json error",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(err error) bool {
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.Status == 502
			},
		},
		{
			name:   "success false on 200",
			status: http.StatusOK,
			body:   `{"success":false,"message":"grade not found"}`,
			check:  func(err error) bool { return errors.Is(err, ErrRejected) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Grades(context.Background())
			if err == nil || !tt.check(err) {
				t.Errorf("Grades() error = %v", err)
			}
		})
	}
}

func TestClient_Ping(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/grade" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"success":true,"data":[]}`))
	}, WithTokenSource(staticToken("tok")))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotAuth != "" {
		t.Error("Ping should not send credentials")
	}
}
