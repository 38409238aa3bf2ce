package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostJSON_SendsBody(t *testing.T) {
	var gotBody map[string]string
	var gotCT, gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"abc","userId":"u1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	resp, err := c.PostJSON(context.Background(), "/auth/signin", map[string]string{
		"email":    "smoke@example.com",
		"password": "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/auth/signin" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if gotBody["email"] != "smoke@example.com" {
		t.Errorf("body not sent: %v", gotBody)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"token":"abc","userId":"u1"}` {
		t.Errorf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
}

func TestDeleteJSON_SendsBody(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"message":"Event removed"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.DeleteJSON(context.Background(), "/users/saved-events", map[string]string{"eventId": "e1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s", gotMethod)
	}
	if gotBody != `{"eventId":"e1"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestGetJSON_QueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetJSON(context.Background(), "/users/profile", url.Values{"email": {"a+b@example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "email=a%2Bb%40example.com" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
}

func TestDo_NonJSONBodyIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`plain text`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).GetJSON(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"raw":"plain text"}` {
		t.Fatalf("Body = %s", resp.Body)
	}
}

func TestDo_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	var observed int
	c := New(srv.URL, WithObserver(func(r *Response) { observed = r.StatusCode }))
	resp, err := c.PostJSON(context.Background(), "/auth/signin", map[string]string{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Fatalf("expected status 401, got %d", apiErr.StatusCode)
	}
	if string(apiErr.Body) != `{"message":"Invalid credentials"}` {
		t.Fatalf("unexpected body: %s", apiErr.Body)
	}
	if !strings.Contains(apiErr.Error(), "401 Client Error: Unauthorized for POST") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Error("expected the response alongside the error")
	}
	if observed != 401 {
		t.Errorf("observer saw %d, want 401", observed)
	}
}

func TestDo_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(503)
		w.Write([]byte(`service unavailable`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetJSON(context.Background(), "/", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Error(), "Server Error") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.GetJSON(context.Background(), "/slow", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("timeout should not be an APIError: %v", err)
	}
}

func TestDo_BearerTokenAndUserAgent(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithUserAgent("motion-smoke/test"))
	if _, err := c.GetJSON(context.Background(), "/", nil); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("no token set, got Authorization %q", gotAuth)
	}

	c.SetToken("tok-123")
	if _, err := c.GetJSON(context.Background(), "/", nil); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != "motion-smoke/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestDo_RateLimitPacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(10))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.GetJSON(context.Background(), "/", nil); err != nil {
			t.Fatal(err)
		}
	}
	// burst of 1 at 10/s: the 2nd and 3rd calls wait ~100ms each
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected pacing, finished in %v", elapsed)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).GetJSON(ctx, "/", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
