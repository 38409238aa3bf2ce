// Package testutil drives a Motion twin over HTTP in tests: a request client,
// an /admin client, and chainable assertions on JSON responses.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

// TwinClient sends requests to one twin and fails the test on transport
// errors, so callers only look at status and body.
type TwinClient struct {
	BaseURL    string
	HTTPClient *http.Client
	t          testing.TB
}

// NewTwinClient targets an httptest server.
func NewTwinClient(t testing.TB, server *httptest.Server) *TwinClient {
	return &TwinClient{BaseURL: server.URL, HTTPClient: server.Client(), t: t}
}

// NewTwinClientURL targets a twin already listening at baseURL.
func NewTwinClientURL(t testing.TB, baseURL string) *TwinClient {
	return &TwinClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: http.DefaultClient, t: t}
}

// Get sends a GET, appending query when non-empty.
func (c *TwinClient) Get(path string, query url.Values) *Response {
	c.t.Helper()
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.send(http.MethodGet, path, nil, nil)
}

// Post sends body as JSON. A []byte body is sent unchanged.
func (c *TwinClient) Post(path string, body any) *Response {
	c.t.Helper()
	return c.send(http.MethodPost, path, body, nil)
}

// Delete sends a DELETE. The saved-events endpoint takes its arguments in a
// JSON body, so one may be given.
func (c *TwinClient) Delete(path string, body any) *Response {
	c.t.Helper()
	return c.send(http.MethodDelete, path, body, nil)
}

// DoWithHeaders sends a request with extra headers such as Authorization.
func (c *TwinClient) DoWithHeaders(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()
	return c.send(method, path, body, headers)
}

func (c *TwinClient) send(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()

	payload, err := encode(body)
	if err != nil {
		c.t.Fatalf("%s %s: encoding body: %v", method, path, err)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, payload)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("%s %s: reading body: %v", method, path, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header, t: c.t}
}

func encode(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// Response is a buffered twin response. Assertion methods report through the
// owning test and return the receiver for chaining.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          testing.TB
}

// JSON decodes the body into v, failing the test on malformed JSON.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("decoding body: %v\nbody: %s", err, r.Body)
	}
}

// JSONMap decodes the body as an object.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

// Get looks up a gjson path such as "savedEvents.#" or "profile.email".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// AssertStatus checks the status code.
func (r *Response) AssertStatus(want int) *Response {
	r.t.Helper()
	if r.StatusCode != want {
		r.t.Errorf("status: want %d, got %d\nbody: %s", want, r.StatusCode, r.Body)
	}
	return r
}

// AssertBodyContains checks for a substring of the raw body.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !bytes.Contains(r.Body, []byte(substr)) {
		r.t.Errorf("body does not contain %q: %s", substr, r.Body)
	}
	return r
}

// AssertMessage checks the "message" field every Motion reply carries.
func (r *Response) AssertMessage(want string) *Response {
	r.t.Helper()
	return r.AssertField("message", want)
}

// AssertField compares the string form of the value at a gjson path.
func (r *Response) AssertField(path, want string) *Response {
	r.t.Helper()
	got := r.Get(path)
	switch {
	case !got.Exists():
		r.t.Errorf("%s: missing from body: %s", path, r.Body)
	case got.String() != want:
		r.t.Errorf("%s: want %q, got %q", path, want, got.String())
	}
	return r
}

// AdminClient wraps the twin's /admin control plane.
type AdminClient struct {
	*TwinClient
}

// NewAdminClient shares tc's connection settings.
func NewAdminClient(tc *TwinClient) *AdminClient {
	return &AdminClient{tc}
}

// Reset restores the seeded state.
func (ac *AdminClient) Reset() *Response {
	ac.t.Helper()
	return ac.Post("/admin/reset", nil)
}

// GetState dumps users, events and AI events.
func (ac *AdminClient) GetState() *Response {
	ac.t.Helper()
	return ac.Get("/admin/state", nil)
}

// LoadState replaces the whole state.
func (ac *AdminClient) LoadState(state any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/state", state)
}

// InjectFault registers a fault for an API path like /users/saved-events.
func (ac *AdminClient) InjectFault(path string, fault any) *Response {
	ac.t.Helper()
	return ac.Post(faultURL(path), fault)
}

// RemoveFault clears the fault registered for path.
func (ac *AdminClient) RemoveFault(path string) *Response {
	ac.t.Helper()
	return ac.Delete(faultURL(path), nil)
}

// GetRequests returns the twin's request log.
func (ac *AdminClient) GetRequests() *Response {
	ac.t.Helper()
	return ac.Get("/admin/requests", nil)
}

// AdvanceTime moves the twin clock, e.g. past a token's expiry.
func (ac *AdminClient) AdvanceTime(duration string) *Response {
	ac.t.Helper()
	return ac.Post("/admin/time/advance", map[string]string{"duration": duration})
}

// Health pings the twin.
func (ac *AdminClient) Health() *Response {
	ac.t.Helper()
	return ac.Get("/admin/health", nil)
}

func faultURL(path string) string {
	return "/admin/fault/" + strings.TrimPrefix(path, "/")
}
