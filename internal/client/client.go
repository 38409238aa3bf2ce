// Package client provides the JSON-over-HTTP request helpers used by the
// smoke-test runner. Each call is issued exactly once; there are no retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/motion-backend/motion-smoke/internal/jsonfmt"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

// Response is a completed round trip. Body is always a JSON document: the
// response body itself, or a {"raw": ...} wrapper when it was not JSON.
type Response struct {
	Method     string
	Path       string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	Method     string
	Path       string
	URL        string
	StatusCode int
	Body       []byte // normalised like Response.Body
}

func (e *APIError) Error() string {
	kind := "Client Error"
	if e.StatusCode >= 500 {
		kind = "Server Error"
	}
	return fmt.Sprintf("%d %s: %s for %s %s", e.StatusCode, kind, http.StatusText(e.StatusCode), e.Method, e.URL)
}

// Observer is called after every round trip that produced a response,
// successful or not, before the status is checked.
type Observer func(*Response)

// Client sends JSON requests to a single base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	token     string
	observers []Observer
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit paces requests to at most perSecond. Zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithObserver registers fn to receive every response.
func WithObserver(fn Observer) Option {
	return func(c *Client) {
		c.observers = append(c.observers, fn)
	}
}

// NewHTTPClient returns an *http.Client with a tuned transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken attaches "Authorization: Bearer <token>" to subsequent requests.
// An empty token removes the header.
func (c *Client) SetToken(token string) {
	c.token = token
}

// PostJSON sends body as JSON with POST.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// DeleteJSON sends body as JSON with DELETE.
func (c *Client) DeleteJSON(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, body)
}

// GetJSON sends a GET with optional query parameters.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Do performs one request. A nil body sends no payload; a []byte or
// json.RawMessage body is sent as-is; anything else is JSON-encoded.
// Non-2xx responses return both the Response and an *APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := encodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: building request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response body: %w", method, path, err)
	}

	out := &Response{
		Method:     method,
		Path:       path,
		URL:        fullURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       jsonfmt.Decode(raw),
		Duration:   time.Since(start),
	}
	for _, fn := range c.observers {
		fn(out)
	}

	if !out.OK() {
		return out, &APIError{
			Method:     method,
			Path:       path,
			URL:        fullURL,
			StatusCode: out.StatusCode,
			Body:       out.Body,
		}
	}
	return out, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(body)
	}
}
