// Package admin serves a twin's /admin control plane: state dump, load and
// reset, per-path fault injection, the request log, the simulated clock, and
// Prometheus metrics.
package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/motion-backend/motion-smoke/internal/twincore"
)

// StateStore is the twin state the control plane manages.
type StateStore interface {
	Snapshot() any
	LoadState(data []byte) error
	Reset()
}

// Counter is implemented by stores that can report record counts for the
// health endpoint.
type Counter interface {
	Counts() map[string]int
}

// Clock is the simulated clock used for token expiry.
type Clock interface {
	Now() time.Time
	Advance(d time.Duration)
	Offset() time.Duration
	Reset()
}

// Handler serves /admin.
type Handler struct {
	state StateStore
	mw    *twincore.Middleware
	clock Clock
}

// NewHandler returns a Handler. A nil clock disables the time endpoints.
func NewHandler(state StateStore, mw *twincore.Middleware, clock Clock) *Handler {
	return &Handler{state: state, mw: mw, clock: clock}
}

// Routes mounts /admin on r. Fault paths are wildcards so that a fault can
// target a nested API path such as /admin/fault/users/saved-events.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/reset", h.reset)

		r.Get("/state", h.dumpState)
		r.Post("/state", h.loadState)

		r.Get("/faults", h.listFaults)
		r.Post("/fault/*", h.setFault)
		r.Delete("/fault/*", h.clearFault)

		r.Get("/requests", h.requests)

		r.Get("/time", h.now)
		r.Post("/time/advance", h.advance)

		r.Handle("/metrics", promhttp.HandlerFor(h.mw.Registry, promhttp.HandlerOpts{}))
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}
	if c, ok := h.state.(Counter); ok {
		for k, v := range c.Counts() {
			out[k] = v
		}
	}
	twincore.JSON(w, http.StatusOK, out)
}

// reset returns the twin to its seeded state with no faults, an empty
// request log, and the real time.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.mw.Faults.Reset()
	h.mw.ReqLog.Clear()
	if h.clock != nil {
		h.clock.Reset()
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) dumpState(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) loadState(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err == nil {
		err = h.state.LoadState(data)
	}
	if err != nil {
		twincore.Message(w, http.StatusBadRequest, "cannot load state: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) listFaults(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) setFault(w http.ResponseWriter, r *http.Request) {
	target := faultTarget(r)

	var fault twincore.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		twincore.Message(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	fault.Method = strings.ToUpper(fault.Method)
	h.mw.Faults.Set(target, fault)
	h.mw.Logger().Info("fault injected", "path", target, "status", fault.StatusCode, "method", fault.Method)

	twincore.JSON(w, http.StatusOK, map[string]any{"status": "injected", "endpoint": target, "fault": fault})
}

func (h *Handler) clearFault(w http.ResponseWriter, r *http.Request) {
	target := faultTarget(r)
	if !h.mw.Faults.Remove(target) {
		twincore.Message(w, http.StatusNotFound, "no fault registered for "+target)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": target})
}

// faultTarget maps /admin/fault/users/saved-events to /users/saved-events.
func faultTarget(r *http.Request) string {
	return "/" + strings.Trim(chi.URLParam(r, "*"), "/")
}

func (h *Handler) requests(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) now(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"real": time.Now().Format(time.RFC3339)}
	if h.clock != nil {
		out["simulated"] = h.clock.Now().Format(time.RFC3339)
		out["offset"] = h.clock.Offset().String()
	}
	twincore.JSON(w, http.StatusOK, out)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		twincore.Message(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}

	var req struct {
		Duration string `json:"duration"` // e.g. "25h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Message(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		twincore.Message(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}

	h.clock.Advance(d)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":    "advanced",
		"duration":  d.String(),
		"offset":    h.clock.Offset().String(),
		"simulated": h.clock.Now().Format(time.RFC3339),
	})
}
