// Package loadtest provides infrastructure for running load tests against
// HTTP services: executors, virtual users, metric collection and
// threshold evaluation.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/profile"
)

// ErrAlreadyRunning is returned when Run is called on a busy Runner.
var ErrAlreadyRunning = errors.New("load test already running")

// Tags label a sample, e.g. {"name": "GET /hello", "phase": "main"}.
type Tags map[string]string

// Key returns a stable string for the tag set.
func (t Tags) Key() string {
	if len(t) == 0 {
		return ""
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(t[k])
	}
	return b.String()
}

// Contains reports whether every filter pair is present in t.
func (t Tags) Contains(filter map[string]string) bool {
	for k, v := range filter {
		if t[k] != v {
			return false
		}
	}
	return true
}

// Check is one named assertion evaluated on a response.
type Check struct {
	Name string
	Pass bool
}

// Result captures metrics from a single request.
type Result struct {
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	BytesSent  int64
	BytesRecv  int64
	Error      error
	Tags       Tags
	Checks     []Check
	Body       []byte // nil when response bodies are discarded
}

// Failed reports whether the request counts towards http_req_failed:
// transport errors and statuses outside 200-399.
func (r *Result) Failed() bool {
	return r.Error != nil || r.StatusCode < 200 || r.StatusCode >= 400
}

// Check records a named assertion on the result.
func (r *Result) Check(name string, pass bool) {
	r.Checks = append(r.Checks, Check{Name: name, Pass: pass})
}

// Iteration is what a VU hands to test code on every call.
type Iteration struct {
	VU     int        // 1-based VU id
	Iter   int64      // per-VU iteration number, 0-based
	Global int64      // run-wide iteration number, 0-based
	Rand   *rand.Rand // private to the VU
	Data   interface{}
}

// IterationFunc performs one iteration and returns its request sample.
type IterationFunc func(ctx context.Context, it *Iteration) Result

// Recorder accepts request samples, e.g. from setup code.
type Recorder interface {
	Record(res Result)
}

// SetupFunc runs once before the main phase. Its return value is handed
// to every iteration as Iteration.Data. An error aborts the run.
type SetupFunc func(ctx context.Context, rec Recorder) (interface{}, error)

// Test is one runnable load test.
type Test struct {
	Name    string
	Options *profile.Options
	Setup   SetupFunc
	Exec    IterationFunc
}

// Runner orchestrates load test execution.
type Runner struct {
	logger    *zap.Logger
	observers []Observer

	mu        sync.RWMutex
	running   bool
	collector *Collector
}

// NewRunner creates a runner. Observers see every sample as it is recorded.
func NewRunner(logger *zap.Logger, observers ...Observer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:    logger,
		observers: observers,
	}
}

// Run executes setup, the scenario's executor, and threshold evaluation.
// Failing thresholds are reported in the Summary, not as an error.
func (r *Runner) Run(ctx context.Context, test *Test) (*Summary, error) {
	if test == nil || test.Exec == nil {
		return nil, errors.New("load test has no iteration function")
	}
	if test.Options == nil {
		return nil, fmt.Errorf("load test %q has no options", test.Name)
	}

	opts := test.Options.Clone()
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	thresholds, err := profile.ParseThresholds(opts.Thresholds)
	if err != nil {
		return nil, err
	}

	collector := NewCollector()

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	r.running = true
	r.collector = collector
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	runID := uuid.NewString()
	logger := r.logger.With(
		zap.String("test", test.Name),
		zap.String("run_id", runID),
		zap.String("executor", string(opts.Scenario.Executor)),
	)
	rec := &recorder{collector: collector, observers: r.observers}

	var data interface{}
	if test.Setup != nil {
		logger.Info("running setup", zap.Duration("timeout", opts.SetupTimeout.D()))
		setupCtx, cancel := context.WithTimeout(ctx, opts.SetupTimeout.D())
		data, err = test.Setup(setupCtx, rec)
		cancel()
		if err != nil {
			logger.Error("setup failed", zap.Error(err))
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	exec, err := newExecutor(opts.Scenario)
	if err != nil {
		return nil, err
	}

	env := &execEnv{
		exec:   test.Exec,
		data:   data,
		rec:    rec,
		logger: logger,
	}

	logger.Info("starting main phase",
		zap.Duration("duration", opts.Scenario.TotalDuration()),
		zap.Int("peak_vus", opts.Scenario.PeakVUs()))

	collector.markStart()
	exec.run(ctx, env)
	collector.markEnd()

	summary := collector.Summary(test.Name, opts)
	summary.RunID = runID
	summary.Interrupted = ctx.Err() != nil
	summary.Thresholds = collector.Evaluate(thresholds)

	logger.Info("load test finished",
		zap.Int64("requests", summary.TotalRequests),
		zap.Float64("rps", summary.RequestsPerSec),
		zap.Float64("error_rate", summary.ErrorRate),
		zap.Int64("dropped_iterations", summary.DroppedIterations),
		zap.Bool("thresholds_passed", summary.ThresholdsPassed()))

	return summary, nil
}

// IsRunning returns whether a test is currently executing.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// CurrentStats returns real-time metrics of the current or last run.
func (r *Runner) CurrentStats() Stats {
	r.mu.RLock()
	c := r.collector
	r.mu.RUnlock()
	if c == nil {
		return Stats{}
	}
	return c.Stats()
}

// Sleep pauses for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
