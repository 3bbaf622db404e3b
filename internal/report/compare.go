package report

import (
	"fmt"
	"strings"
	"time"
)

// Status indicates whether a metric moved within tolerance.
type Status string

const (
	StatusPass       Status = "pass"
	StatusRegression Status = "regression"
	StatusImproved   Status = "improved"
)

// Compared metrics.
const (
	MetricRequestsPerSec    = "requests_per_sec"
	MetricAvgLatencyMs      = "avg_latency_ms"
	MetricP95LatencyMs      = "p95_latency_ms"
	MetricP99LatencyMs      = "p99_latency_ms"
	MetricErrorRate         = "error_rate"
	MetricDroppedIterations = "dropped_iterations"
)

// DefaultTolerance is the percentage a metric may move in its bad
// direction before it counts as a regression.
const DefaultTolerance = 10.0

// Metrics are the key indicators extracted from a report.
type Metrics struct {
	RequestsPerSec    float64
	AvgLatencyMs      float64
	P95LatencyMs      float64
	P99LatencyMs      float64
	ErrorRate         float64
	DroppedIterations float64
}

// MetricsOf extracts the compared indicators.
func MetricsOf(r *Report) Metrics {
	s := r.Summary
	return Metrics{
		RequestsPerSec:    s.RequestsPerSec,
		AvgLatencyMs:      millis(s.AvgLatency),
		P95LatencyMs:      millis(s.P95Latency),
		P99LatencyMs:      millis(s.P99Latency),
		ErrorRate:         s.ErrorRate,
		DroppedIterations: float64(s.DroppedIterations),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Difference captures the delta between base and current values.
type Difference struct {
	Metric    string
	Base      float64
	Current   float64
	DeltaAbs  float64
	DeltaPct  float64
	Status    Status
	Tolerance float64
}

// Comparison is the outcome of comparing two reports.
type Comparison struct {
	Base          *Report
	Current       *Report
	Differences   []Difference
	OverallStatus Status
	Regressions   []string
	Improvements  []string
}

// Comparer compares reports with per-metric tolerances.
type Comparer struct {
	tolerances map[string]float64
}

// NewComparer creates a comparer using DefaultTolerance for every metric.
func NewComparer() *Comparer {
	return &Comparer{tolerances: make(map[string]float64)}
}

// SetTolerance overrides the tolerance, in percent, for one metric.
func (c *Comparer) SetTolerance(metric string, pct float64) {
	c.tolerances[metric] = pct
}

func (c *Comparer) tolerance(metric string) float64 {
	if t, ok := c.tolerances[metric]; ok {
		return t
	}
	return DefaultTolerance
}

// Compare reports how current moved relative to base.
func (c *Comparer) Compare(base, current *Report) *Comparison {
	b, cur := MetricsOf(base), MetricsOf(current)

	cmp := &Comparison{Base: base, Current: current}
	cmp.Differences = []Difference{
		// higher is better
		c.diff(MetricRequestsPerSec, b.RequestsPerSec, cur.RequestsPerSec, false),
		// lower is better
		c.diff(MetricAvgLatencyMs, b.AvgLatencyMs, cur.AvgLatencyMs, true),
		c.diff(MetricP95LatencyMs, b.P95LatencyMs, cur.P95LatencyMs, true),
		c.diff(MetricP99LatencyMs, b.P99LatencyMs, cur.P99LatencyMs, true),
		c.diff(MetricErrorRate, b.ErrorRate, cur.ErrorRate, true),
		c.diff(MetricDroppedIterations, b.DroppedIterations, cur.DroppedIterations, true),
	}

	cmp.OverallStatus = StatusPass
	for _, d := range cmp.Differences {
		switch d.Status {
		case StatusRegression:
			cmp.OverallStatus = StatusRegression
			cmp.Regressions = append(cmp.Regressions, d.Metric)
		case StatusImproved:
			cmp.Improvements = append(cmp.Improvements, d.Metric)
		}
	}
	return cmp
}

func (c *Comparer) diff(metric string, base, current float64, lowerIsBetter bool) Difference {
	d := Difference{
		Metric:    metric,
		Base:      base,
		Current:   current,
		DeltaAbs:  current - base,
		Tolerance: c.tolerance(metric),
		Status:    StatusPass,
	}

	// Handle zero base specially
	if base == 0 {
		if current != 0 {
			if lowerIsBetter {
				d.Status = StatusRegression
			} else {
				d.Status = StatusImproved
			}
		}
		return d
	}

	d.DeltaPct = (current - base) / base * 100
	worse, better := d.DeltaPct > d.Tolerance, d.DeltaPct < -d.Tolerance
	if !lowerIsBetter {
		worse, better = better, worse
	}
	switch {
	case worse:
		d.Status = StatusRegression
	case better:
		d.Status = StatusImproved
	}
	return d
}

// GenerateReport creates a human-readable comparison report.
func (c *Comparison) GenerateReport() string {
	var b strings.Builder

	b.WriteString("Performance Comparison Report\n")
	b.WriteString("=============================\n\n")
	fmt.Fprintf(&b, "Base: %s (%s)\n", describe(c.Base), c.Base.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Current: %s (%s)\n\n", describe(c.Current), c.Current.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Overall Status: %s\n\n", c.OverallStatus)

	b.WriteString("Metric Comparison:\n")
	b.WriteString("-----------------\n")
	for _, d := range c.Differences {
		icon := "✓"
		switch d.Status {
		case StatusRegression:
			icon = "✗"
		case StatusImproved:
			icon = "↑"
		}
		fmt.Fprintf(&b, "%s %s: %.2f → %.2f (%+.1f%%) [tolerance: %.1f%%]\n",
			icon, d.Metric, d.Base, d.Current, d.DeltaPct, d.Tolerance)
	}

	if len(c.Regressions) > 0 {
		fmt.Fprintf(&b, "\nRegressions: %s\n", strings.Join(c.Regressions, ", "))
	}
	if len(c.Improvements) > 0 {
		fmt.Fprintf(&b, "Improvements: %s\n", strings.Join(c.Improvements, ", "))
	}
	return b.String()
}

func describe(r *Report) string {
	name := r.Script
	if name == "" && r.Summary != nil {
		name = r.Summary.TestName
	}
	if r.Summary != nil && r.Summary.RunID != "" {
		return name + " " + r.Summary.RunID
	}
	return name
}
