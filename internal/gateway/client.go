// Package gateway is the client for the TeachMate REST backend. It injects
// the bearer credential, unwraps the {success, message, data} envelope and
// maps the backend's document shapes onto domain types.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies the bearer credential for authenticated calls.
type TokenSource interface {
	Token() string
}

// Client talks to the backend.
type Client struct {
	baseURL        string
	client         *http.Client
	tokens         TokenSource
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTokenSource sets where the bearer credential comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithUnauthorizedHandler sets the callback run when an authenticated call
// comes back 401. It typically clears the stored credential.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// response is an unwrapped 2xx body.
type response struct {
	payload json.RawMessage // data when enveloped, the whole body otherwise
	message string
}

type callOpts struct {
	public bool
}

func (c *Client) call(ctx context.Context, method, path string, body any, o callOpts) (response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if !o.public && c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	slog.Debug("backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusUnauthorized && !o.public {
		slog.Warn("backend rejected credential", "path", path, "request_id", requestID)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return response{}, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env) // non-object bodies leave env zero

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, &APIError{Status: resp.StatusCode, Message: env.Message, Body: string(raw)}
	}

	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "no message"
		}
		return response{}, fmt.Errorf("%s %s: %w: %s", method, path, ErrRejected, msg)
	}
	if env.Success != nil && len(env.Data) > 0 {
		return response{payload: env.Data, message: env.Message}, nil
	}
	return response{payload: raw, message: env.Message}, nil
}

// do performs a call and decodes the payload into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.call(ctx, method, path, body, callOpts{})
	if err != nil {
		return err
	}
	return decode(resp.payload, out)
}

func decode(payload json.RawMessage, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Ping checks that the backend answers the public grade listing.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodGet, "/api/grade", nil, callOpts{public: true})
	return err
}
