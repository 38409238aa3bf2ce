package twincore

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestLogEntry captures details of an incoming request for admin inspection.
type RequestLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration_ms"`
	RequestID  string        `json:"request_id,omitempty"`
}

// RequestLog is a thread-safe ring buffer of recent requests.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log with the given max size.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, len(rl.entries))
	copy(out, rl.entries)
	return out
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// FaultConfig defines an injected failure for one request path.
type FaultConfig struct {
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body,omitempty"`
	Delay      time.Duration `json:"delay_ms,omitempty"`
	Rate       float64       `json:"rate"`             // 0.0-1.0, probability of fault triggering
	Method     string        `json:"method,omitempty"` // empty matches every method
}

// FaultRegistry manages injected faults keyed by request path.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

// NewFaultRegistry creates an empty fault registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{
		faults: make(map[string]FaultConfig),
	}
}

// Set injects a fault for path. A zero Rate means always.
func (fr *FaultRegistry) Set(path string, fault FaultConfig) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fault.Rate == 0 {
		fault.Rate = 1.0
	}
	fr.faults[path] = fault
}

// Remove deletes the fault for path and reports whether one existed.
func (fr *FaultRegistry) Remove(path string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[path]
	delete(fr.faults, path)
	return existed
}

// Check returns the fault that applies to method and path, or nil.
func (fr *FaultRegistry) Check(method, path string) *FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	f, ok := fr.faults[path]
	if !ok {
		return nil
	}
	if f.Method != "" && f.Method != method {
		return nil
	}
	if f.Rate >= 1.0 || rand.Float64() < f.Rate {
		return &f
	}
	return nil
}

// All returns a copy of all registered faults.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]FaultConfig, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]FaultConfig)
}

// Middleware provides the common middleware for a twin.
type Middleware struct {
	cfg      *Config
	logger   *slog.Logger
	ReqLog   *RequestLog
	Faults   *FaultRegistry
	Registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMiddleware creates a Middleware with its own metrics registry.
func NewMiddleware(cfg *Config, logger *slog.Logger) *Middleware {
	m := &Middleware{
		cfg:      cfg,
		logger:   logger,
		ReqLog:   NewRequestLog(1000),
		Faults:   NewFaultRegistry(),
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "http_requests_total",
			Help:      "Requests served by the twin",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twin",
			Name:      "http_request_duration_seconds",
			Help:      "Request latency as seen by the twin",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(m.requests, m.duration)
	return m
}

// Logger returns the twin's logger.
func (m *Middleware) Logger() *slog.Logger {
	return m.logger
}

// CORS adds the headers the backend returns on every response.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLog records every request into the ring buffer and the metrics.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.ReqLog.Add(RequestLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.RawQuery,
			StatusCode: rec.statusCode,
			Duration:   elapsed,
			RequestID:  chimw.GetReqID(r.Context()),
		})

		route := routePattern(r)
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.statusCode)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		m.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", elapsed,
		)
	})
}

// routePattern returns the matched chi pattern, or "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// LatencyInjection adds the configured latency (80-120% jitter) to every request.
func (m *Middleware) LatencyInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.Latency > 0 {
			jitter := 0.8 + rand.Float64()*0.4
			time.Sleep(time.Duration(float64(m.cfg.Latency) * jitter))
		}
		next.ServeHTTP(w, r)
	})
}

// RandomFailure returns 500 for a configured fraction of requests.
func (m *Middleware) RandomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.FailRate > 0 && rand.Float64() < m.cfg.FailRate {
			Message(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection applies any fault registered for the request path. Mount it
// inside API route groups only so /admin stays reachable.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fault := m.Faults.Check(r.Method, r.URL.Path); fault != nil {
			if fault.Delay > 0 {
				time.Sleep(fault.Delay)
			}
			if fault.StatusCode > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(fault.StatusCode)
				if fault.Body != "" {
					fmt.Fprint(w, fault.Body)
				} else {
					fmt.Fprintf(w, `{"message":"injected fault","code":%d}`, fault.StatusCode)
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
