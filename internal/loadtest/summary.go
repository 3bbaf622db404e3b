package loadtest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/FairForge/otpload/internal/profile"
)

// Summary contains aggregated results of a load test.
type Summary struct {
	RunID     string           `json:"run_id" yaml:"run_id"`
	TestName  string           `json:"test_name" yaml:"test_name"`
	Executor  profile.Executor `json:"executor" yaml:"executor"`
	StartTime time.Time        `json:"start_time" yaml:"start_time"`
	EndTime   time.Time        `json:"end_time" yaml:"end_time"`
	Duration  time.Duration    `json:"duration_ns" yaml:"duration_ns"`

	TotalRequests  int64   `json:"total_requests" yaml:"total_requests"`
	SuccessCount   int64   `json:"success_count" yaml:"success_count"`
	FailureCount   int64   `json:"failure_count" yaml:"failure_count"`
	RequestsPerSec float64 `json:"requests_per_sec" yaml:"requests_per_sec"`
	ErrorRate      float64 `json:"error_rate" yaml:"error_rate"`
	BytesSent      int64   `json:"bytes_sent" yaml:"bytes_sent"`
	BytesRecv      int64   `json:"bytes_received" yaml:"bytes_received"`

	MinLatency time.Duration `json:"min_latency_ns" yaml:"min_latency_ns"`
	AvgLatency time.Duration `json:"avg_latency_ns" yaml:"avg_latency_ns"`
	MedLatency time.Duration `json:"med_latency_ns" yaml:"med_latency_ns"`
	P90Latency time.Duration `json:"p90_latency_ns" yaml:"p90_latency_ns"`
	P95Latency time.Duration `json:"p95_latency_ns" yaml:"p95_latency_ns"`
	P99Latency time.Duration `json:"p99_latency_ns" yaml:"p99_latency_ns"`
	MaxLatency time.Duration `json:"max_latency_ns" yaml:"max_latency_ns"`

	Iterations           int64         `json:"iterations" yaml:"iterations"`
	IterationsPerSec     float64       `json:"iterations_per_sec" yaml:"iterations_per_sec"`
	AvgIterationDuration time.Duration `json:"avg_iteration_duration_ns" yaml:"avg_iteration_duration_ns"`
	DroppedIterations    int64         `json:"dropped_iterations" yaml:"dropped_iterations"`

	ChecksPassed int64          `json:"checks_passed" yaml:"checks_passed"`
	ChecksFailed int64          `json:"checks_failed" yaml:"checks_failed"`
	Checks       []CheckSummary `json:"checks,omitempty" yaml:"checks,omitempty"`

	VUs    int `json:"vus" yaml:"vus"`
	VUsMax int `json:"vus_max" yaml:"vus_max"`

	Errors      map[string]int64  `json:"errors,omitempty" yaml:"errors,omitempty"`
	Thresholds  []ThresholdResult `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Interrupted bool              `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// CheckSummary counts the outcomes of one named check.
type CheckSummary struct {
	Name   string `json:"name" yaml:"name"`
	Passes int64  `json:"passes" yaml:"passes"`
	Fails  int64  `json:"fails" yaml:"fails"`
}

// ThresholdResult captures the result of a single threshold check.
type ThresholdResult struct {
	Selector   string  `json:"selector" yaml:"selector"`
	Expression string  `json:"expression" yaml:"expression"`
	Actual     float64 `json:"actual" yaml:"actual"`
	Passed     bool    `json:"passed" yaml:"passed"`
	Margin     float64 `json:"margin" yaml:"margin"` // negative when failed
	Message    string  `json:"message" yaml:"message"`
}

func newThresholdResult(th profile.Threshold, actual float64) ThresholdResult {
	res := ThresholdResult{
		Selector:   th.Selector,
		Expression: th.Expression,
		Actual:     actual,
		Passed:     th.Operator.Compare(actual, th.Bound),
	}

	switch th.Operator {
	case profile.OpLess, profile.OpLessEqual:
		res.Margin = th.Bound - actual
	case profile.OpGreater, profile.OpGreaterEqual:
		res.Margin = actual - th.Bound
	}

	if res.Passed {
		res.Message = fmt.Sprintf("%s: %s (actual %.4g) ✓", th.Selector, th.Expression, actual)
	} else {
		res.Message = fmt.Sprintf("%s: %s (actual %.4g) ✗ (margin: %.4g)",
			th.Selector, th.Expression, actual, res.Margin)
	}
	return res
}

// ThresholdsPassed reports whether every threshold held.
func (s *Summary) ThresholdsPassed() bool {
	for _, t := range s.Thresholds {
		if !t.Passed {
			return false
		}
	}
	return true
}

// FailedThresholds returns the thresholds that did not hold.
func (s *Summary) FailedThresholds() []ThresholdResult {
	failed := make([]ThresholdResult, 0)
	for _, t := range s.Thresholds {
		if !t.Passed {
			failed = append(failed, t)
		}
	}
	return failed
}

// CheckRate is the fraction of passed checks, or 1 when none ran.
func (s *Summary) CheckRate() float64 {
	total := s.ChecksPassed + s.ChecksFailed
	if total == 0 {
		return 1
	}
	return float64(s.ChecksPassed) / float64(total)
}

// GenerateReport creates a human-readable end-of-test report.
func (s *Summary) GenerateReport() string {
	var b strings.Builder

	b.WriteString("Load Test Report\n")
	b.WriteString("================\n\n")
	fmt.Fprintf(&b, "Test: %s (%s)\n", s.TestName, s.Executor)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "Duration: %v\n", s.Duration.Round(time.Millisecond))
	if s.Interrupted {
		b.WriteString("⚠️  RUN INTERRUPTED\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  http_reqs..........: %d  %.2f/s\n", s.TotalRequests, s.RequestsPerSec)
	fmt.Fprintf(&b, "  http_req_failed....: %.2f%%  %d of %d\n", s.ErrorRate*100, s.FailureCount, s.TotalRequests)
	fmt.Fprintf(&b, "  http_req_duration..: avg=%v min=%v med=%v max=%v p(90)=%v p(95)=%v p(99)=%v\n",
		ms(s.AvgLatency), ms(s.MinLatency), ms(s.MedLatency), ms(s.MaxLatency),
		ms(s.P90Latency), ms(s.P95Latency), ms(s.P99Latency))
	fmt.Fprintf(&b, "  iterations.........: %d  %.2f/s\n", s.Iterations, s.IterationsPerSec)
	fmt.Fprintf(&b, "  iteration_duration.: avg=%v\n", ms(s.AvgIterationDuration))
	if s.DroppedIterations > 0 {
		fmt.Fprintf(&b, "  dropped_iterations.: %d\n", s.DroppedIterations)
	}
	fmt.Fprintf(&b, "  data_sent..........: %d B\n", s.BytesSent)
	fmt.Fprintf(&b, "  data_received......: %d B\n", s.BytesRecv)
	fmt.Fprintf(&b, "  vus_max............: %d\n", s.VUsMax)

	if len(s.Checks) > 0 {
		fmt.Fprintf(&b, "\nChecks: %.2f%% (%d passed, %d failed)\n", s.CheckRate()*100, s.ChecksPassed, s.ChecksFailed)
		for _, c := range s.Checks {
			mark := "✓"
			if c.Fails > 0 {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %s (%d/%d)\n", mark, c.Name, c.Passes, c.Passes+c.Fails)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		keys := make([]string, 0, len(s.Errors))
		for k := range s.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %d× %s\n", s.Errors[k], k)
		}
	}

	if len(s.Thresholds) > 0 {
		status := "PASS"
		if !s.ThresholdsPassed() {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "\nThresholds: %s\n", status)
		for _, t := range s.Thresholds {
			fmt.Fprintf(&b, "  %s\n", t.Message)
		}
	}

	return b.String()
}

func ms(d time.Duration) time.Duration {
	return d.Round(10 * time.Microsecond)
}
