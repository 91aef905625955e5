// Package backend is the HTTP client for the voucher backend API.
//
// Every call except Login carries the user's bearer credential, passed in
// explicitly by the caller. An empty credential fails with
// core.ErrUnauthorized before any request is built.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes caps JSON bodies read from the backend.
	maxResponseBytes = 10 << 20
)

// Client talks to the voucher backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call except ImportVouchers, which is bounded only
// by its context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for response diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// callContext derives the context for a non-import call.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// endpoint joins path segments onto the base URL, escaping each one.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.baseURL
	for _, s := range segments {
		u = *u.JoinPath(url.PathEscape(s))
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, endpoint, credential string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint, credential string, payload any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := c.newRequest(ctx, method, endpoint, credential, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// response is a fully read backend reply.
type response struct {
	Status int
	Body   []byte
}

func (r response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// do sends req and reads the whole body. Transport failures are returned
// as-is so callers can classify them.
func (c *Client) do(req *http.Request) (response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	return response{Status: resp.StatusCode, Body: body}, nil
}

// envelope is the common {success, message} part of every backend body.
type envelope struct {
	Success *bool   `json:"success"`
	Message *string `json:"message"`
}

// bodyMessage extracts a non-empty string "message" from a JSON body.
// Other fields are not decoded, so their types do not matter.
func bodyMessage(body []byte) string {
	var env struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Message == nil {
		return ""
	}
	return strings.TrimSpace(*env.Message)
}

// bodyFailed reports whether a JSON body explicitly says success:false.
func bodyFailed(body []byte) bool {
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return false
	}
	return !*env.Success
}
