package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/dbdev/pkg/observability"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError carries the status code and response body of a failed request.
type StatusError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%v: status %d", e.kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Client provides shared HTTP functionality for the REST collaborators
// (database REST API, auth API, storage API). It handles retries, default
// headers, JSON encoding and status classification.
//
// All methods are safe for concurrent use.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// NewClient creates a Client with default headers applied to every request.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string) *Client {
	return &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		headers:  headers,
		attempts: 3,
		delay:    time.Second,
	}
}

// WithHTTPClient replaces the underlying *http.Client (tests use the
// httptest server's client).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithRetry configures the retry policy. attempts <= 1 disables retries.
func (c *Client) WithRetry(attempts int, delay time.Duration) *Client {
	c.attempts = attempts
	c.delay = delay
	return c
}

// Request describes one HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any       // JSON-encoded when non-nil and Raw is nil
	Raw     io.Reader // sent as-is; disables retries since it cannot be replayed
}

// Response is the decoded outcome of a call.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Do performs req and JSON-decodes a successful response body into v (if v
// is non-nil). Transient failures are retried unless the body is a raw
// stream. Cancellation of ctx aborts the in-flight request.
func (c *Client) Do(ctx context.Context, req Request, v any) (*Response, error) {
	var resp *Response
	call := func() error {
		r, err := c.do(ctx, req, v)
		resp = r
		return err
	}
	if req.Raw != nil {
		return resp, call()
	}
	err := Retry(ctx, c.attempts, c.delay, call)
	return resp, err
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url}, v)
	return err
}

func (c *Client) do(ctx context.Context, r Request, v any) (*Response, error) {
	var body io.Reader = r.Raw
	if body == nil && r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	if r.Body != nil && r.Raw == nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, val := range c.headers {
		req.Header.Set(k, val)
	}
	for k, val := range r.Headers {
		req.Header.Set(k, val)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, req.URL.Host, req.URL.Path)
	start := time.Now()

	hr, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, req.URL.Host, req.URL.Path, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer hr.Body.Close()
	hooks.OnResponse(ctx, method, req.URL.Host, req.URL.Path, hr.StatusCode, time.Since(start))

	resp := &Response{StatusCode: hr.StatusCode, Header: hr.Header}
	if err := checkStatus(hr); err != nil {
		return resp, err
	}
	if v == nil || hr.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if err := json.NewDecoder(hr.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{StatusCode: code, Body: string(bytes.TrimSpace(data))}
	switch {
	case code == http.StatusNotFound:
		se.kind = ErrNotFound
		return se
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		se.kind = ErrUnauthorized
		return se
	case code >= 500 || code == http.StatusTooManyRequests:
		se.kind = ErrNetwork
		return Retryable(se)
	default:
		se.kind = ErrNetwork
		return se
	}
}
