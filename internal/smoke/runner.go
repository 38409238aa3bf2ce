// Package smoke runs the Motion backend smoke test: a fixed, sequential
// workflow of API calls whose responses are printed, partially logged to a
// file, and mined for identifiers used by later calls.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/motion-backend/motion-smoke/internal/client"
	"github.com/motion-backend/motion-smoke/internal/config"
	"github.com/motion-backend/motion-smoke/internal/jsonfmt"
	"github.com/motion-backend/motion-smoke/internal/logfile"
)

// NotCaptured is recorded in the result when no AI event id was found.
const NotCaptured = "none"

// Outcome is the fate of one step.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped" // guard variable was empty
	OutcomeNotRun  Outcome = "not-run" // an earlier step failed
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Method   string
	Path     string
	Status   int // 0 when no response was received
	Outcome  Outcome
	Logged   bool
	Duration time.Duration
	Error    string // empty unless failed
}

// Result records the outcome of a run.
type Result struct {
	Passed    bool
	Steps     []StepResult
	Duration  time.Duration
	LogPath   string
	Records   int    // records appended to the log artifact
	AIEventID string // NotCaptured when absent
	UserID    string
	Subject   string // "sub" claim of the sign-in token, if any
}

// Count returns how many steps ended with outcome o.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Runner executes the workflow against one base URL.
type Runner struct {
	cfg     *config.Config
	client  *client.Client
	log     *logfile.Artifact
	out     io.Writer
	logger  *slog.Logger
	steps   []Step
	session Session

	vars   map[string]string
	bodies map[string][]byte
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	out        io.Writer
	logger     *slog.Logger
	httpClient *http.Client
	steps      []Step
}

// WithOutput sets where responses and progress messages are printed.
func WithOutput(w io.Writer) Option {
	return func(o *runnerOptions) { o.out = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runnerOptions) { o.logger = l }
}

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *runnerOptions) { o.httpClient = hc }
}

// WithSteps replaces the workflow. Intended for tests.
func WithSteps(steps []Step) Option {
	return func(o *runnerOptions) { o.steps = steps }
}

// New creates a Runner from cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	o := runnerOptions{out: os.Stdout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.steps == nil {
		o.steps = Plan()
	}

	r := &Runner{
		cfg:    cfg,
		log:    logfile.New(cfg.LogFile),
		out:    o.out,
		logger: o.logger,
		steps:  o.steps,
		session: Session{
			Email:    cfg.Email,
			Password: cfg.Password,
		},
	}

	copts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithRateLimit(cfg.RatePerSecond),
		client.WithUserAgent(cfg.UserAgent),
		client.WithObserver(r.printResponse),
	}
	if o.httpClient != nil {
		copts = append(copts, client.WithHTTPClient(o.httpClient))
	}
	r.client = client.New(cfg.BaseURL, copts...)
	return r
}

// Run executes the workflow once. On failure it returns the partial result
// together with the error that stopped the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		Passed:    true,
		LogPath:   r.log.AbsPath(),
		AIEventID: NotCaptured,
	}
	defer func() {
		res.Duration = time.Since(start)
		res.Records = r.log.Records()
	}()

	r.vars = map[string]string{
		VarEmail:         r.session.Email,
		VarPassword:      r.session.Password,
		VarMotionEventID: r.cfg.MotionEventID,
	}
	r.bodies = make(map[string][]byte)

	if err := r.log.Reset(); err != nil {
		res.Passed = false
		return res, err
	}

	for i := range r.steps {
		step := &r.steps[i]
		sr, err := r.runStep(ctx, step)
		res.Steps = append(res.Steps, sr)
		if err != nil {
			res.Passed = false
			r.fillResult(res)
			for _, rest := range r.steps[i+1:] {
				res.Steps = append(res.Steps, StepResult{
					Name:    rest.Name,
					Method:  rest.Method,
					Path:    rest.Path,
					Outcome: OutcomeNotRun,
				})
			}
			return res, fmt.Errorf("%s: %w", step.Name, err)
		}
		if step.Name == StepSaveAI {
			r.announceAIEventID()
		}
	}

	r.fillResult(res)
	fmt.Fprintf(r.out, "\nRaw responses logged to %s\n", res.LogPath)
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, step *Step) (StepResult, error) {
	sr := StepResult{Name: step.Name, Method: step.Method, Path: step.Path}

	if step.When != "" && r.vars[step.When] == "" {
		sr.Outcome = OutcomeSkipped
		r.logger.Debug("step skipped", "step", step.Name, "missing", step.When)
		return sr, nil
	}

	path, query, body, err := r.buildRequest(step)
	if err != nil {
		sr.Outcome = OutcomeFailed
		sr.Error = err.Error()
		return sr, err
	}
	sr.Path = path

	resp, err := r.client.Do(ctx, step.Method, path, query, body)
	if resp != nil {
		sr.Status = resp.StatusCode
		sr.Duration = resp.Duration
	}
	if err != nil {
		sr.Outcome = OutcomeFailed
		sr.Error = err.Error()
		return sr, err
	}
	r.bodies[step.Name] = resp.Body

	if step.Log {
		if err := r.log.Append(resp.Body); err != nil {
			sr.Outcome = OutcomeFailed
			sr.Error = err.Error()
			return sr, err
		}
		sr.Logged = true
	}

	if step.Capture != nil {
		for k, v := range step.Capture(r.bodies) {
			r.vars[k] = v
		}
	}

	r.logger.Debug("step passed", "step", step.Name, "status", sr.Status, "duration", sr.Duration)
	sr.Outcome = OutcomePassed
	return sr, nil
}

// buildRequest expands the step's templates.
func (r *Runner) buildRequest(step *Step) (string, url.Values, any, error) {
	path, err := ExpandTemplates(step.Path, r.vars)
	if err != nil {
		return "", nil, nil, fmt.Errorf("template expansion in path: %w", err)
	}

	var query url.Values
	if len(step.Query) > 0 {
		query = make(url.Values, len(step.Query))
		for k, v := range step.Query {
			expanded, err := ExpandTemplates(v, r.vars)
			if err != nil {
				return "", nil, nil, fmt.Errorf("template expansion in query %q: %w", k, err)
			}
			query.Set(k, expanded)
		}
	}

	var body any
	if step.Body != nil {
		body, err = expandValue(step.Body, r.vars)
		if err != nil {
			return "", nil, nil, fmt.Errorf("template expansion in body: %w", err)
		}
	}

	if r.cfg.AttachToken {
		r.client.SetToken(r.vars[VarToken])
	}
	return path, query, body, nil
}

// printResponse echoes every response, successful or not, before its status
// is checked.
func (r *Runner) printResponse(resp *client.Response) {
	fmt.Fprintf(r.out, "\n=== %s %s [%d] ===\n%s\n", resp.Method, resp.Path, resp.StatusCode, jsonfmt.Pretty(resp.Body))
}

func (r *Runner) announceAIEventID() {
	if id := r.vars[VarAIEventID]; id != "" {
		fmt.Fprintf(r.out, "Captured AI event ID: %s\n", id)
		return
	}
	fmt.Fprintln(r.out, "Warning: AI event ID not captured; subsequent lookups may skip.")
	r.logger.Warn("AI event id not captured", "step", StepSaveAI)
}

func (r *Runner) fillResult(res *Result) {
	if id := r.vars[VarAIEventID]; id != "" {
		res.AIEventID = id
	}
	r.session.Token = r.vars[VarToken]
	r.session.UserID = r.vars[VarUserID]
	res.UserID = r.session.UserID
	res.Subject = r.session.Subject()
}

// FailureBody returns the response body carried by an HTTP failure, or nil
// when err is not one.
func FailureBody(err error) []byte {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return nil
}
