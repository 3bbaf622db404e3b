package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/FairForge/otpload/internal/loadtest"
)

func sample(status int, d time.Duration) loadtest.Result {
	return loadtest.Result{
		Duration:   d,
		StatusCode: status,
		BytesSent:  10,
		BytesRecv:  20,
		Tags: loadtest.Tags{
			"name":   "GET /v1/redis/get",
			"method": "GET",
			"status": "200",
			"phase":  "main",
		},
	}
}

func TestMetrics_ObserveResult(t *testing.T) {
	m := New()

	ok := sample(200, 20*time.Millisecond)
	ok.Check("status is 200", true)
	m.ObserveResult(ok)

	bad := sample(500, 40*time.Millisecond)
	bad.Check("status is 200", false)
	m.ObserveResult(bad)

	refused := sample(0, time.Millisecond)
	refused.Error = errors.New("connection refused")
	m.ObserveResult(refused)

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET /v1/redis/get", "GET", "200", "main")); got != 1 {
		t.Errorf("Expected 1 request with status 200, got %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET /v1/redis/get", "GET", "0", "main")); got != 1 {
		t.Errorf("Expected 1 request with status 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("GET /v1/redis/get", "main")); got != 2 {
		t.Errorf("Expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.Checks.WithLabelValues("status is 200", "pass")); got != 1 {
		t.Errorf("Expected 1 passing check, got %v", got)
	}
	if got := testutil.ToFloat64(m.Checks.WithLabelValues("status is 200", "fail")); got != 1 {
		t.Errorf("Expected 1 failing check, got %v", got)
	}
	if got := testutil.ToFloat64(m.DataSent); got != 30 {
		t.Errorf("Expected 30 bytes sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.DataReceived); got != 60 {
		t.Errorf("Expected 60 bytes received, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Duration); n != 1 {
		t.Errorf("Expected one duration series, got %d", n)
	}
}

func TestMetrics_IterationsDroppedAndVUs(t *testing.T) {
	m := New()

	m.ObserveIteration(10 * time.Millisecond)
	m.ObserveIteration(30 * time.Millisecond)
	m.ObserveDropped()
	m.ObserveVUs(12, 40)
	m.ObserveVUs(8, 40)

	if got := testutil.ToFloat64(m.Iterations); got != 2 {
		t.Errorf("Expected 2 iterations, got %v", got)
	}
	if got := testutil.ToFloat64(m.Dropped); got != 1 {
		t.Errorf("Expected 1 dropped iteration, got %v", got)
	}
	if got := testutil.ToFloat64(m.VUs); got != 8 {
		t.Errorf("Expected 8 active VUs, got %v", got)
	}
	if got := testutil.ToFloat64(m.VUsMax); got != 40 {
		t.Errorf("Expected 40 allocated VUs, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveResult(sample(200, 5*time.Millisecond))
	m.ObserveIteration(5 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"otpload_http_reqs_total",
		"otpload_http_req_duration_seconds",
		"otpload_iterations_total",
		"otpload_vus_max",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("Response should contain %s", name)
		}
	}
}

func TestMetrics_Independent(t *testing.T) {
	// separate registries must not panic on duplicate registration
	a, b := New(), New()
	a.ObserveDropped()

	if got := testutil.ToFloat64(b.Dropped); got != 0 {
		t.Errorf("Expected instances to be independent, got %v", got)
	}
	if a.Registry() == b.Registry() {
		t.Error("Expected distinct registries")
	}
}
