package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orchestrator/cli/session"
	"orchestrator/cli/telemetry"
)

// Client talks to the orchestrator REST API. Every method is an independent
// request, so a Client is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	session *session.Session
	tracer  trace.Tracer
}

type Option func(*Client)

// WithSession attaches the authentication context used for every request.
func WithSession(s *session.Session) Option {
	return func(c *Client) { c.session = s }
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTPClient = h
		}
	}
}

// WithTimeout sets the transport's per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tracer: telemetry.Tracer("orchestrator/cli/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the authentication context the client was built with.
func (c *Client) Session() *session.Session {
	return c.session
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *Client) post(ctx context.Context, path string, body io.Reader, v any) error {
	return c.do(ctx, http.MethodPost, path, body, v)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, v any) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.AccessToken != "" {
		if err := c.session.Authorize(req); err != nil {
			return err
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// WebSocketURL maps path onto the ws:// or wss:// form of BaseURL.
func (c *Client) WebSocketURL(path string) string {
	base := c.BaseURL
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return base + path
}
