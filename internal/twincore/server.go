// Package twincore is the HTTP scaffolding shared by local API twins: flag
// parsing, a chi router with request logging, latency and failure injection,
// and JSON response helpers shaped like the Motion backend's replies.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Config is parsed from a twin's command line.
type Config struct {
	Name      string // used in logs
	Port      int
	Latency   time.Duration
	FailRate  float64
	SeedFile  string
	Verbose   bool
	JWTSecret string
}

// ParseFlags parses args (without the program name). PORT and
// TWIN_JWT_SECRET fill in -port and -jwt-secret when they are not given;
// defaultPort applies when neither flag nor env sets a port.
func ParseFlags(name string, defaultPort int, args []string) (*Config, error) {
	cfg := &Config{Name: name}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 0, "HTTP listen port (env PORT)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Simulated latency added to every request")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0, "Fraction of requests answered with 500, 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "JSON state loaded at start and on /admin/reset")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Log every request")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("TWIN_JWT_SECRET"), "HS256 secret for sign-in tokens; empty disables tokens")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("PORT %q: %w", p, err)
			}
			cfg.Port = port
		}
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("-fail-rate must be within 0.0-1.0, got %v", cfg.FailRate)
	}
	return cfg, nil
}

// Twin owns the router and the middleware state exposed through /admin.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
}

// New builds a Twin. Logs go to stdout as JSON.
func New(cfg *Config) *Twin {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("twin", cfg.Name)
	mw := NewMiddleware(cfg, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, mw.CORS, mw.RequestLog, mw.LatencyInjection, mw.RandomFailure)

	return &Twin{Config: cfg, Router: r, Logger: logger, mw: mw}
}

// Middleware returns the request log, fault registry and metrics.
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// ServeHTTP lets tests mount a Twin on httptest.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// Serve listens on the configured port until ctx is done, then drains
// in-flight requests for up to ten seconds.
func (t *Twin) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", t.Config.Port),
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// JSON writes v with status. A nil v writes no body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Message writes the backend's error shape: {"message": "..."}.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}
