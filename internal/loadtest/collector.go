package loadtest

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FairForge/otpload/internal/profile"
)

// series holds the raw samples for one tag set.
type series struct {
	tags          Tags
	requests      int64
	failed        int64
	durations     []time.Duration
	bytesSent     int64
	bytesRecv     int64
	checksPassed  int64
	checksFailed  int64
	iterations    int64
	iterDurations []time.Duration
}

// Collector aggregates samples of one run. Request samples are kept per
// tag set so thresholds can select sub-metrics.
type Collector struct {
	mu      sync.Mutex
	series  map[string]*series
	checks  map[string]*CheckSummary
	order   []string // check names in first-seen order
	errors  map[string]int64
	dropped int64

	vus, vusMin, vusMax int
	vusSeen             bool

	start, end time.Time

	// live counters, read without the lock
	requests   atomic.Int64
	failures   atomic.Int64
	iterations atomic.Int64
	drops      atomic.Int64
	activeVUs  atomic.Int64
	allocVUs   atomic.Int64
	startNanos atomic.Int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		series: make(map[string]*series),
		checks: make(map[string]*CheckSummary),
		errors: make(map[string]int64),
	}
}

func (c *Collector) seriesFor(tags Tags) *series {
	key := tags.Key()
	s, ok := c.series[key]
	if !ok {
		cp := make(Tags, len(tags))
		for k, v := range tags {
			cp[k] = v
		}
		s = &series{tags: cp}
		c.series[key] = s
	}
	return s
}

// Record adds a request sample.
func (c *Collector) Record(res Result) {
	failed := res.Failed()
	c.requests.Add(1)
	if failed {
		c.failures.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.seriesFor(res.Tags)
	s.requests++
	s.durations = append(s.durations, res.Duration)
	s.bytesSent += res.BytesSent
	s.bytesRecv += res.BytesRecv
	if failed {
		s.failed++
		c.errors[errorKey(res)]++
	}

	for _, chk := range res.Checks {
		cs, ok := c.checks[chk.Name]
		if !ok {
			cs = &CheckSummary{Name: chk.Name}
			c.checks[chk.Name] = cs
			c.order = append(c.order, chk.Name)
		}
		if chk.Pass {
			cs.Passes++
			s.checksPassed++
		} else {
			cs.Fails++
			s.checksFailed++
		}
	}
}

func errorKey(res Result) string {
	if res.Error != nil {
		msg := res.Error.Error()
		if len(msg) > 100 {
			msg = msg[:100]
		}
		return msg
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}

func (c *Collector) recordIteration(d time.Duration, tags Tags) {
	c.iterations.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.seriesFor(tags)
	s.iterations++
	s.iterDurations = append(s.iterDurations, d)
}

func (c *Collector) recordDropped() {
	c.drops.Add(1)

	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
}

func (c *Collector) setVUs(active, allocated int) {
	c.activeVUs.Store(int64(active))
	c.allocVUs.Store(int64(allocated))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.vus = active
	if !c.vusSeen || active < c.vusMin {
		c.vusMin = active
	}
	if active > c.vusMax {
		c.vusMax = active
	}
	c.vusSeen = true
}

func (c *Collector) markStart() {
	now := time.Now()
	c.startNanos.Store(now.UnixNano())
	c.mu.Lock()
	c.start = now
	c.mu.Unlock()
}

func (c *Collector) markEnd() {
	c.mu.Lock()
	c.end = time.Now()
	c.mu.Unlock()
}

// Stats is a live snapshot of a running test.
type Stats struct {
	Requests       int64         `json:"requests"`
	Failures       int64         `json:"failures"`
	Iterations     int64         `json:"iterations"`
	Dropped        int64         `json:"dropped_iterations"`
	ActiveVUs      int64         `json:"vus"`
	AllocatedVUs   int64         `json:"vus_max"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	RequestsPerSec float64       `json:"rps"`
	ErrorRate      float64       `json:"error_rate"`
}

// Stats returns current counters without waiting for the sample lock.
func (c *Collector) Stats() Stats {
	st := Stats{
		Requests:     c.requests.Load(),
		Failures:     c.failures.Load(),
		Iterations:   c.iterations.Load(),
		Dropped:      c.drops.Load(),
		ActiveVUs:    c.activeVUs.Load(),
		AllocatedVUs: c.allocVUs.Load(),
	}
	if ns := c.startNanos.Load(); ns > 0 {
		st.Elapsed = time.Since(time.Unix(0, ns))
		if secs := st.Elapsed.Seconds(); secs > 0 {
			st.RequestsPerSec = float64(st.Requests) / secs
		}
	}
	if st.Requests > 0 {
		st.ErrorRate = float64(st.Failures) / float64(st.Requests)
	}
	return st
}

// aggregate merges every series whose tags contain a filter.
type aggregate struct {
	requests      int64
	failed        int64
	durations     []time.Duration
	bytesSent     int64
	bytesRecv     int64
	checksPassed  int64
	checksFailed  int64
	iterations    int64
	iterDurations []time.Duration
}

// view must be called with c.mu held.
func (c *Collector) view(filter map[string]string) *aggregate {
	a := &aggregate{}
	for _, s := range c.series {
		if !s.tags.Contains(filter) {
			continue
		}
		a.requests += s.requests
		a.failed += s.failed
		a.durations = append(a.durations, s.durations...)
		a.bytesSent += s.bytesSent
		a.bytesRecv += s.bytesRecv
		a.checksPassed += s.checksPassed
		a.checksFailed += s.checksFailed
		a.iterations += s.iterations
		a.iterDurations = append(a.iterDurations, s.iterDurations...)
	}
	sortDurations(a.durations)
	sortDurations(a.iterDurations)
	return a
}

func (c *Collector) elapsed() time.Duration {
	end := c.end
	if end.IsZero() {
		end = time.Now()
	}
	if c.start.IsZero() {
		return 0
	}
	return end.Sub(c.start)
}

// Summary builds the end-of-test summary. Thresholds are left empty;
// see Evaluate.
func (c *Collector) Summary(name string, opts *profile.Options) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.view(nil)
	elapsed := c.elapsed()

	s := &Summary{
		TestName:          name,
		Executor:          opts.Scenario.Executor,
		StartTime:         c.start,
		EndTime:           c.end,
		Duration:          elapsed,
		TotalRequests:     a.requests,
		FailureCount:      a.failed,
		SuccessCount:      a.requests - a.failed,
		BytesSent:         a.bytesSent,
		BytesRecv:         a.bytesRecv,
		Iterations:        a.iterations,
		DroppedIterations: c.dropped,
		ChecksPassed:      a.checksPassed,
		ChecksFailed:      a.checksFailed,
		VUs:               c.vus,
		VUsMax:            int(c.allocVUs.Load()),
		Errors:            make(map[string]int64, len(c.errors)),
	}

	if a.requests > 0 {
		s.ErrorRate = float64(a.failed) / float64(a.requests)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.RequestsPerSec = float64(a.requests) / secs
		s.IterationsPerSec = float64(a.iterations) / secs
	}

	s.MinLatency, s.MaxLatency, s.AvgLatency = minMaxAvg(a.durations)
	s.MedLatency = percentile(a.durations, 50)
	s.P90Latency = percentile(a.durations, 90)
	s.P95Latency = percentile(a.durations, 95)
	s.P99Latency = percentile(a.durations, 99)
	_, _, s.AvgIterationDuration = minMaxAvg(a.iterDurations)

	for _, n := range c.order {
		s.Checks = append(s.Checks, *c.checks[n])
	}
	for k, v := range c.errors {
		s.Errors[k] = v
	}
	return s
}

// Evaluate checks thresholds against the collected samples.
func (c *Collector) Evaluate(thresholds []profile.Threshold) []ThresholdResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.elapsed()
	views := make(map[string]*aggregate)
	results := make([]ThresholdResult, 0, len(thresholds))

	for _, th := range thresholds {
		key := Tags(th.Tags).Key()
		a, ok := views[key]
		if !ok {
			a = c.view(th.Tags)
			views[key] = a
		}
		actual := c.value(th, a, elapsed)
		results = append(results, newThresholdResult(th, actual))
	}
	return results
}

// value computes the threshold's aggregation. Durations are in
// milliseconds; empty metrics aggregate to zero.
func (c *Collector) value(th profile.Threshold, a *aggregate, elapsed time.Duration) float64 {
	switch th.Kind() {
	case profile.KindTrend:
		d := a.durations
		if th.Metric == profile.MetricIterationDuration {
			d = a.iterDurations
		}
		return trendValue(d, th.Aggregation, th.Percentile)

	case profile.KindRate:
		var hits, total int64
		if th.Metric == profile.MetricChecks {
			hits, total = a.checksPassed, a.checksPassed+a.checksFailed
		} else {
			hits, total = a.failed, a.requests
		}
		if total == 0 {
			return 0
		}
		return float64(hits) / float64(total)

	case profile.KindCounter:
		var n int64
		switch th.Metric {
		case profile.MetricHTTPReqs:
			n = a.requests
		case profile.MetricIterations:
			n = a.iterations
		case profile.MetricDroppedIterations:
			// dropped iterations carry no tags
			if len(th.Tags) == 0 {
				n = c.dropped
			}
		case profile.MetricDataSent:
			n = a.bytesSent
		case profile.MetricDataReceived:
			n = a.bytesRecv
		}
		if th.Aggregation == profile.AggRate {
			if secs := elapsed.Seconds(); secs > 0 {
				return float64(n) / secs
			}
			return 0
		}
		return float64(n)

	case profile.KindGauge:
		if th.Metric == profile.MetricVUsMax {
			return float64(c.allocVUs.Load())
		}
		switch th.Aggregation {
		case profile.AggMin:
			return float64(c.vusMin)
		case profile.AggMax:
			return float64(c.vusMax)
		default:
			return float64(c.vus)
		}
	}
	return 0
}

func trendValue(sorted []time.Duration, agg string, pct float64) float64 {
	var d time.Duration
	switch agg {
	case profile.AggMin:
		d, _, _ = minMaxAvg(sorted)
	case profile.AggMax:
		_, d, _ = minMaxAvg(sorted)
	case profile.AggAvg:
		_, _, d = minMaxAvg(sorted)
	case profile.AggMed:
		d = percentile(sorted, 50)
	case profile.AggPercentile:
		d = percentile(sorted, pct)
	}
	return float64(d) / float64(time.Millisecond)
}

func sortDurations(d []time.Duration) {
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
}

// minMaxAvg expects sorted input.
func minMaxAvg(sorted []time.Duration) (min, max, avg time.Duration) {
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return sorted[0], sorted[len(sorted)-1], total / time.Duration(len(sorted))
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + time.Duration(frac*float64(sorted[hi]-sorted[lo]))
}
