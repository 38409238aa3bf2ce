package api_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/motion-backend/motion-smoke/internal/admin"
	"github.com/motion-backend/motion-smoke/internal/motion/api"
	"github.com/motion-backend/motion-smoke/internal/motion/store"
	"github.com/motion-backend/motion-smoke/internal/testutil"
	"github.com/motion-backend/motion-smoke/internal/twincore"
)

const (
	testEmail    = "smoke@example.com"
	testPassword = "s3cret!"
	testSecret   = "twin-secret"
	motionID     = "365a5596-a6cf-46ee-9675-63017035d7b6"
)

func setupMotion(t *testing.T, secret string) (*store.MemoryStore, *testutil.TwinClient) {
	t.Helper()
	memStore := store.New()
	twin := twincore.New(&twincore.Config{Name: "twin-motion-test"})

	handler := api.NewHandler(memStore, twin.Middleware(), api.NewTokenIssuer(secret, memStore.Clock))
	handler.Routes(twin.Router)
	admin.NewHandler(memStore, twin.Middleware(), memStore.Clock).Routes(twin.Router)

	srv := httptest.NewServer(twin.Router)
	t.Cleanup(srv.Close)
	return memStore, testutil.NewTwinClient(t, srv)
}

func setupWithUser(t *testing.T) (*store.MemoryStore, *testutil.TwinClient) {
	t.Helper()
	s, tc := setupMotion(t, testSecret)
	tc.Post("/auth/signup", map[string]string{"email": testEmail, "password": testPassword}).
		AssertStatus(http.StatusCreated)
	s.Events.Put(motionID, store.Event{"eventId": motionID, "title": "Jazz Night"})
	return s, tc
}

func emailQuery() url.Values {
	return url.Values{"email": {testEmail}}
}

func aiEvent() map[string]any {
	return map[string]any{
		"title":      "Downtown Art Walk",
		"start_date": "2025-10-02",
		"timezone":   "America/New_York",
		"source_url": "https://example.com/events/art-walk",
		"location":   map[string]string{"city": "Alpharetta"},
		"tags":       []string{"arts", "community"},
	}
}

// --- Auth ---

func TestSignup(t *testing.T) {
	_, tc := setupMotion(t, testSecret)

	resp := tc.Post("/auth/signup", map[string]string{"email": testEmail, "password": testPassword})
	resp.AssertStatus(http.StatusCreated).
		AssertMessage("User created").
		AssertField("email", testEmail)
	if resp.Get("userId").String() == "" {
		t.Error("expected userId")
	}

	tc.Post("/auth/signup", map[string]string{"email": testEmail, "password": "other"}).
		AssertStatus(http.StatusConflict).
		AssertMessage("User already exists")

	tc.Post("/auth/signup", map[string]string{"email": testEmail}).
		AssertStatus(http.StatusBadRequest).
		AssertMessage("email and password are required")
}

func TestSigninIssuesToken(t *testing.T) {
	_, tc := setupWithUser(t)

	resp := tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword})
	resp.AssertStatus(http.StatusOK).AssertField("email", testEmail)

	token := resp.Get("token").String()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims["sub"] != resp.Get("userId").String() {
		t.Errorf("sub = %v, want %s", claims["sub"], resp.Get("userId").String())
	}
	exp, _ := claims.GetExpirationTime()
	iat, _ := claims.GetIssuedAt()
	if exp.Sub(iat.Time) != api.TokenTTL {
		t.Errorf("expected %v lifetime, got %v", api.TokenTTL, exp.Sub(iat.Time))
	}
}

func TestSigninWithoutSecretOmitsToken(t *testing.T) {
	_, tc := setupMotion(t, "")
	tc.Post("/auth/signup", map[string]string{"email": testEmail, "password": testPassword})

	resp := tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword})
	resp.AssertStatus(http.StatusOK)
	if resp.Get("token").Exists() {
		t.Errorf("expected no token, got %s", resp.Body)
	}
	if resp.Get("userId").String() == "" {
		t.Error("expected userId")
	}
}

func TestSigninFailures(t *testing.T) {
	_, tc := setupWithUser(t)

	tests := []struct {
		name string
		body map[string]string
		want int
		msg  string
	}{
		{"wrong password", map[string]string{"email": testEmail, "password": "nope"}, 401, "Invalid credentials"},
		{"unknown user", map[string]string{"email": "ghost@example.com", "password": "x"}, 401, "Invalid credentials"},
		{"missing password", map[string]string{"email": testEmail}, 400, "email and password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.Post("/auth/signin", tt.body).AssertStatus(tt.want).AssertMessage(tt.msg)
		})
	}
}

func TestMalformedBodyIsServerError(t *testing.T) {
	_, tc := setupWithUser(t)
	tc.Post("/auth/signin", []byte(`{not json`)).
		AssertStatus(http.StatusInternalServerError).
		AssertMessage("Internal Server Error")
}

// --- Saved events ---

func TestSaveMotionEvent(t *testing.T) {
	_, tc := setupWithUser(t)

	resp := tc.Post("/users/saved-events", map[string]string{
		"email": "  SMOKE@example.com ", "source": "Motion", "eventId": motionID,
	})
	resp.AssertStatus(http.StatusOK).
		AssertMessage("Event saved").
		AssertField("savedEvents.0.eventId", motionID).
		AssertField("savedEvents.0.source", "motion")

	// duplicate save keeps one entry
	resp = tc.Post("/users/saved-events", map[string]string{"email": testEmail, "source": "motion", "eventId": motionID})
	if n := resp.Get("savedEvents.#").Int(); n != 1 {
		t.Errorf("expected 1 saved event after duplicate, got %d", n)
	}
}

func TestSaveAIEvent(t *testing.T) {
	_, tc := setupWithUser(t)

	resp := tc.Post("/users/saved-events", map[string]any{
		"email": testEmail, "source": "ai", "event": aiEvent(),
	})
	resp.AssertStatus(http.StatusOK)
	id := resp.Get(`savedEvents.#(source=="ai").eventId`).String()
	if id == "" {
		t.Fatalf("expected AI event id, body: %s", resp.Body)
	}

	ev := tc.Get("/ai-events/"+id, nil)
	ev.AssertStatus(http.StatusOK).
		AssertField("event.title", "Downtown Art Walk").
		AssertField("event.location.city", "Alpharetta")
	if ev.Get("event.end_date").Type.String() != "Null" {
		t.Errorf("expected null end_date, got %s", ev.Get("event.end_date").Raw)
	}
}

func TestSaveEventValidation(t *testing.T) {
	s, tc := setupWithUser(t)
	no := false
	tc.Post("/auth/signup", map[string]string{"email": "pending@example.com", "password": "x"})
	s.Users.Update("pending@example.com", func(u *store.User) { u.IsVerified = &no })

	tests := []struct {
		name string
		body map[string]any
		want int
		msg  string
	}{
		{"missing source", map[string]any{"email": testEmail}, 400, "email and source are required"},
		{"bad source", map[string]any{"email": testEmail, "source": "tv"}, 400, `source must be "motion" or "ai"`},
		{"unknown user", map[string]any{"email": "ghost@example.com", "source": "motion", "eventId": motionID}, 404, "User not found"},
		{"unverified", map[string]any{"email": "pending@example.com", "source": "motion", "eventId": motionID}, 403, "Account is not verified"},
		{"missing event id", map[string]any{"email": testEmail, "source": "motion"}, 400, "eventId is required for motion events"},
		{"unknown motion event", map[string]any{"email": testEmail, "source": "motion", "eventId": "nope"}, 404, "Motion event not found"},
		{"incomplete ai event", map[string]any{"email": testEmail, "source": "ai", "event": map[string]string{"title": "x"}}, 400,
			"event.title, event.start_date, event.timezone and event.source_url are required for AI events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.Post("/users/saved-events", tt.body).AssertStatus(tt.want).AssertMessage(tt.msg)
		})
	}
}

func TestListSavedEvents(t *testing.T) {
	s, tc := setupWithUser(t)

	resp := tc.Get("/users/saved-events", emailQuery())
	resp.AssertStatus(http.StatusOK).AssertField("count", "0")
	if resp.Get("items").Raw != "[]" {
		t.Errorf("expected empty items array, got %s", resp.Get("items").Raw)
	}

	tc.Post("/users/saved-events", map[string]string{"email": testEmail, "source": "motion", "eventId": motionID})
	s.Events.Delete(motionID)

	resp = tc.Get("/users/saved-events", emailQuery())
	resp.AssertField("count", "1").AssertField("items.0.eventId", motionID)
	if resp.Get("items.0.event").Type.String() != "Null" {
		t.Errorf("expected null event for deleted catalog entry, got %s", resp.Get("items.0.event").Raw)
	}

	tc.Get("/users/saved-events", nil).AssertStatus(400).AssertMessage("email is required")
	tc.Get("/users/saved-events", url.Values{"email": {"ghost@example.com"}}).AssertStatus(404)
}

func TestRemoveSavedEvent(t *testing.T) {
	_, tc := setupWithUser(t)
	tc.Post("/users/saved-events", map[string]string{"email": testEmail, "source": "motion", "eventId": motionID})

	tc.Delete("/users/saved-events", map[string]string{"email": testEmail, "eventId": motionID, "source": "ai"}).
		AssertStatus(http.StatusOK).
		AssertMessage("Event not found in saved list")

	resp := tc.Delete("/users/saved-events", map[string]string{"email": testEmail, "eventId": motionID, "source": "motion"})
	resp.AssertStatus(http.StatusOK).AssertMessage("Event removed")
	if resp.Get("savedEvents").Raw != "[]" {
		t.Errorf("expected empty list, got %s", resp.Get("savedEvents").Raw)
	}

	tc.Delete("/users/saved-events", map[string]string{"email": testEmail}).
		AssertStatus(400).AssertMessage("email and eventId are required")
	tc.Delete("/users/saved-events", map[string]string{"email": "ghost@example.com", "eventId": "x"}).
		AssertStatus(404).AssertMessage("User not found")
}

func TestGetProfile(t *testing.T) {
	_, tc := setupWithUser(t)

	resp := tc.Get("/users/profile", emailQuery())
	resp.AssertStatus(http.StatusOK).AssertField("profile.email", testEmail)
	if resp.Get("profile.passwordHash").Exists() || resp.Get("profile.passwordSalt").Exists() {
		t.Errorf("profile leaked password material: %s", resp.Body)
	}

	tc.Get("/users/profile", url.Values{"email": {"ghost@example.com"}}).AssertStatus(404)
}

func TestGetEvents(t *testing.T) {
	_, tc := setupWithUser(t)

	tc.Get("/events/"+motionID, nil).AssertStatus(200).AssertField("event.title", "Jazz Night")
	tc.Get("/events/missing", nil).AssertStatus(404).AssertMessage("Event not found")
	tc.Get("/ai-events/missing", nil).AssertStatus(404).AssertMessage("Event not found")
}

// --- Bearer tokens ---

func TestBearerToken(t *testing.T) {
	_, tc := setupWithUser(t)
	token := tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword}).Get("token").String()

	tc.DoWithHeaders("GET", "/users/profile?email="+url.QueryEscape(testEmail), nil,
		map[string]string{"Authorization": "Bearer " + token}).AssertStatus(200)

	tc.DoWithHeaders("GET", "/users/profile?email="+url.QueryEscape(testEmail), nil,
		map[string]string{"Authorization": "Bearer forged"}).AssertStatus(401).AssertMessage("Invalid token")
}

func TestBearerTokenExpires(t *testing.T) {
	_, tc := setupWithUser(t)
	ac := testutil.NewAdminClient(tc)
	token := tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword}).Get("token").String()

	ac.AdvanceTime("25h").AssertStatus(200)

	tc.DoWithHeaders("GET", "/users/profile?email="+url.QueryEscape(testEmail), nil,
		map[string]string{"Authorization": "Bearer " + token}).AssertStatus(401)
}

// --- Admin ---

func TestAdminFaultInjection(t *testing.T) {
	_, tc := setupWithUser(t)
	ac := testutil.NewAdminClient(tc)

	ac.InjectFault("/users/saved-events", map[string]any{"status_code": 503, "method": "DELETE"}).AssertStatus(200)

	tc.Get("/users/saved-events", emailQuery()).AssertStatus(200)
	tc.Delete("/users/saved-events", map[string]string{"email": testEmail, "eventId": motionID}).
		AssertStatus(503).AssertBodyContains("injected fault")

	ac.RemoveFault("/users/saved-events").AssertStatus(200)
	tc.Delete("/users/saved-events", map[string]string{"email": testEmail, "eventId": motionID}).AssertStatus(200)
}

func TestAdminResetAndState(t *testing.T) {
	_, tc := setupWithUser(t)
	ac := testutil.NewAdminClient(tc)

	ac.GetState().AssertStatus(200).AssertField("users.smoke@example\\.com.email", testEmail)
	ac.Reset().AssertStatus(200)
	tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword}).AssertStatus(401)

	ac.LoadState(map[string]any{
		"users": map[string]any{testEmail: map[string]any{"password": testPassword}},
	}).AssertStatus(200)
	tc.Post("/auth/signin", map[string]string{"email": testEmail, "password": testPassword}).AssertStatus(200)

	if n := ac.GetRequests().Get("#").Int(); n == 0 {
		t.Error("expected requests to be logged")
	}
}
