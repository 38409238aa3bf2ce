// Package api implements the Motion-compatible HTTP handlers served by the
// twin: auth, saved events, profile, and event lookups.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/motion-backend/motion-smoke/internal/motion/store"
	"github.com/motion-backend/motion-smoke/internal/twincore"
)

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	tokens *TokenIssuer
}

// NewHandler creates a new API handler. A nil issuer disables sign-in tokens.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, tokens *TokenIssuer) *Handler {
	return &Handler{store: s, mw: mw, tokens: tokens}
}

// Routes mounts the Motion API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Post("/auth/signup", h.Signup)
		r.Post("/auth/signin", h.Signin)

		r.Route("/users", func(r chi.Router) {
			r.Use(h.bearerCheck)
			r.Post("/saved-events", h.SaveEvent)
			r.Get("/saved-events", h.ListSavedEvents)
			r.Delete("/saved-events", h.RemoveSavedEvent)
			r.Get("/profile", h.GetProfile)
		})

		r.Get("/events/{eventId}", h.GetEvent)
		r.Get("/ai-events/{eventId}", h.GetAIEvent)
	})
}

// bearerCheck rejects a request whose Authorization header carries a token
// the twin did not issue. Requests without the header pass, as they do
// against the real backend.
func (h *Handler) bearerCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || h.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			twincore.Message(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if _, err := h.tokens.Verify(token); err != nil {
			h.mw.Logger().Debug("rejected bearer token", "error", err)
			twincore.Message(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON object body. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// internalError is the backend's catch-all failure response.
func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.mw.Logger().Error(op+" error", "error", err)
	twincore.Message(w, http.StatusInternalServerError, "Internal Server Error")
}

// str stringifies a loosely typed JSON scalar.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
