package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/motion-backend/motion-smoke/internal/motion/store"
	"github.com/motion-backend/motion-smoke/internal/twincore"
)

type saveRequest struct {
	Email   string          `json:"email"`
	Source  string          `json:"source"`
	EventID any             `json:"eventId"`
	Event   json.RawMessage `json:"event"`
}

type removeRequest struct {
	Email   string `json:"email"`
	Source  string `json:"source"`
	EventID any    `json:"eventId"`
}

const aiFieldsRequired = "event.title, event.start_date, event.timezone and event.source_url are required for AI events"

// SaveEvent handles POST /users/saved-events.
func (h *Handler) SaveEvent(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		h.internalError(w, "save event", err)
		return
	}
	email := store.NormalizeEmail(req.Email)
	source := strings.ToLower(strings.TrimSpace(req.Source))

	if email == "" || source == "" {
		twincore.Message(w, http.StatusBadRequest, "email and source are required")
		return
	}
	if source != store.SourceMotion && source != store.SourceAI {
		twincore.Message(w, http.StatusBadRequest, `source must be "motion" or "ai"`)
		return
	}
	if !h.canSave(w, email) {
		return
	}

	eventID := strings.TrimSpace(str(req.EventID))
	var payload *store.AIEventInput
	switch source {
	case store.SourceMotion:
		if eventID == "" {
			twincore.Message(w, http.StatusBadRequest, "eventId is required for motion events")
			return
		}
	case store.SourceAI:
		payload = &store.AIEventInput{}
		if len(req.Event) > 0 && json.Unmarshal(req.Event, payload) != nil {
			payload = &store.AIEventInput{}
		}
		if payload.Missing() {
			twincore.Message(w, http.StatusBadRequest, aiFieldsRequired)
			return
		}
	}

	saved, err := h.store.SaveEvent(email, source, eventID, payload)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMotionEventNotFound):
			twincore.Message(w, http.StatusNotFound, "Motion event not found")
		case h.saveRejected(w, err):
		default:
			h.internalError(w, "save event", err)
		}
		return
	}

	h.mw.Logger().Debug("event saved", "email", email, "source", source, "count", len(saved))
	twincore.JSON(w, http.StatusOK, map[string]any{
		"message":     "Event saved",
		"savedEvents": saved,
	})
}

// canSave writes the 404/403 response for an account that may not save.
func (h *Handler) canSave(w http.ResponseWriter, email string) bool {
	return !h.saveRejected(w, h.store.CanSave(email))
}

func (h *Handler) saveRejected(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		twincore.Message(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrNotVerified):
		twincore.Message(w, http.StatusForbidden, "Account is not verified")
	default:
		return false
	}
	return true
}

// ListSavedEvents handles GET /users/saved-events?email=.
func (h *Handler) ListSavedEvents(w http.ResponseWriter, r *http.Request) {
	email := store.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		twincore.Message(w, http.StatusBadRequest, "email is required")
		return
	}
	items, err := h.store.SavedEventDetails(email)
	if errors.Is(err, store.ErrUserNotFound) {
		twincore.Message(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, "get saved events", err)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

// RemoveSavedEvent handles DELETE /users/saved-events.
func (h *Handler) RemoveSavedEvent(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decodeBody(r, &req); err != nil {
		h.internalError(w, "remove saved event", err)
		return
	}
	email := store.NormalizeEmail(req.Email)
	eventID := strings.TrimSpace(str(req.EventID))
	source := strings.ToLower(strings.TrimSpace(req.Source))

	if email == "" || eventID == "" {
		twincore.Message(w, http.StatusBadRequest, "email and eventId are required")
		return
	}

	saved, removed, err := h.store.RemoveSavedEvent(email, eventID, source)
	if errors.Is(err, store.ErrUserNotFound) {
		twincore.Message(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, "remove saved event", err)
		return
	}
	if saved == nil {
		saved = []store.SavedEvent{}
	}

	msg := "Event removed"
	if !removed {
		msg = "Event not found in saved list"
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"message":     msg,
		"savedEvents": saved,
	})
}

// GetProfile handles GET /users/profile?email=.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	email := store.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		twincore.Message(w, http.StatusBadRequest, "email is required")
		return
	}
	p, err := h.store.Profile(email)
	if err != nil {
		twincore.Message(w, http.StatusNotFound, "User not found")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"profile": p})
}
