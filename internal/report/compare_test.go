package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findDiff(t *testing.T, c *Comparison, metric string) Difference {
	t.Helper()
	for _, d := range c.Differences {
		if d.Metric == metric {
			return d
		}
	}
	require.Failf(t, "missing metric", "%s not compared", metric)
	return Difference{}
}

func TestCompare_WithinTolerance(t *testing.T) {
	base, cur := testReport(), testReport()
	cur.Summary.RequestsPerSec = base.Summary.RequestsPerSec * 0.95
	cur.Summary.P95Latency = 43 * time.Millisecond

	c := NewComparer().Compare(base, cur)

	assert.Equal(t, StatusPass, c.OverallStatus)
	assert.Empty(t, c.Regressions)
	assert.InDelta(t, -5, findDiff(t, c, MetricRequestsPerSec).DeltaPct, 1e-9)
	assert.InDelta(t, 7.5, findDiff(t, c, MetricP95LatencyMs).DeltaPct, 1e-9)
}

func TestCompare_Regressions(t *testing.T) {
	base, cur := testReport(), testReport()
	cur.Summary.RequestsPerSec = base.Summary.RequestsPerSec * 0.8
	cur.Summary.P99Latency = 120 * time.Millisecond
	cur.Summary.AvgLatency = 6 * time.Millisecond

	c := NewComparer().Compare(base, cur)

	assert.Equal(t, StatusRegression, c.OverallStatus)
	assert.ElementsMatch(t, []string{MetricRequestsPerSec, MetricP99LatencyMs}, c.Regressions)
	assert.Equal(t, []string{MetricAvgLatencyMs}, c.Improvements)
}

func TestCompare_ZeroBase(t *testing.T) {
	base, cur := testReport(), testReport()
	base.Summary.DroppedIterations = 0
	cur.Summary.DroppedIterations = 4

	c := NewComparer().Compare(base, cur)
	d := findDiff(t, c, MetricDroppedIterations)
	assert.Equal(t, StatusRegression, d.Status)
	assert.Equal(t, 4.0, d.DeltaAbs)
}

func TestComparer_SetTolerance(t *testing.T) {
	base, cur := testReport(), testReport()
	cur.Summary.ErrorRate = base.Summary.ErrorRate * 1.4

	assert.Equal(t, StatusRegression, NewComparer().Compare(base, cur).OverallStatus)

	cmp := NewComparer()
	cmp.SetTolerance(MetricErrorRate, 50)
	assert.Equal(t, StatusPass, cmp.Compare(base, cur).OverallStatus)
}

func TestComparison_GenerateReport(t *testing.T) {
	base, cur := testReport(), testReport()
	cur.Summary.P95Latency = 80 * time.Millisecond

	out := NewComparer().Compare(base, cur).GenerateReport()

	assert.Contains(t, out, "Overall Status: regression")
	assert.Contains(t, out, "✗ p95_latency_ms: 40.00 → 80.00 (+100.0%)")
	assert.Contains(t, out, "Regressions: p95_latency_ms")
	assert.Contains(t, out, "redis-get-capacity 3f0c9e43")
}
