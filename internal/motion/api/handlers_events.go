package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motion-backend/motion-smoke/internal/twincore"
)

// GetEvent handles GET /events/{eventId}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.store.Events.Get(chi.URLParam(r, "eventId"))
	if !ok {
		twincore.Message(w, http.StatusNotFound, "Event not found")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"event": ev})
}

// GetAIEvent handles GET /ai-events/{eventId}.
func (h *Handler) GetAIEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.store.AIEvents.Get(chi.URLParam(r, "eventId"))
	if !ok {
		twincore.Message(w, http.StatusNotFound, "Event not found")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"event": ev})
}
