// Package metrics exposes a running load test to Prometheus and serves
// live status over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FairForge/otpload/internal/loadtest"
)

const namespace = "otpload"

// Metrics holds the Prometheus series fed by a run. It implements
// loadtest.Observer.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	DataSent      prometheus.Counter
	DataReceived  prometheus.Counter
	Iterations    prometheus.Counter
	IterationTime prometheus.Histogram
	Dropped       prometheus.Counter
	VUs           prometheus.Gauge
	VUsMax        prometheus.Gauge
	Checks        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the metrics on a private registry, so several instances
// can coexist in one process.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_reqs_total",
				Help:      "Total number of HTTP requests issued",
			},
			[]string{"name", "method", "status", "phase"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_req_failed_total",
				Help:      "HTTP requests that errored or answered outside 200-399",
			},
			[]string{"name", "phase"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_req_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"name", "phase"},
		),
		DataSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_sent_bytes_total",
			Help:      "Request body bytes sent",
		}),
		DataReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_received_bytes_total",
			Help:      "Response body bytes received",
		}),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed VU iterations",
		}),
		IterationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Time to complete one iteration",
			Buckets:   prometheus.DefBuckets,
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_iterations_total",
			Help:      "Iterations an arrival-rate executor could not start for lack of VUs",
		}),
		VUs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vus",
			Help:      "Active virtual users",
		}),
		VUsMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vus_max",
			Help:      "Allocated virtual users",
		}),
		Checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Check evaluations by outcome",
			},
			[]string{"check", "result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.Requests,
		m.Failures,
		m.Duration,
		m.DataSent,
		m.DataReceived,
		m.Iterations,
		m.IterationTime,
		m.Dropped,
		m.VUs,
		m.VUsMax,
		m.Checks,
	)
	return m
}

// ObserveResult records one request sample.
func (m *Metrics) ObserveResult(res loadtest.Result) {
	name, phase := res.Tags["name"], res.Tags["phase"]

	m.Requests.WithLabelValues(name, res.Tags["method"], strconv.Itoa(res.StatusCode), phase).Inc()
	m.Duration.WithLabelValues(name, phase).Observe(res.Duration.Seconds())
	if res.Failed() {
		m.Failures.WithLabelValues(name, phase).Inc()
	}
	m.DataSent.Add(float64(res.BytesSent))
	m.DataReceived.Add(float64(res.BytesRecv))

	for _, c := range res.Checks {
		result := "fail"
		if c.Pass {
			result = "pass"
		}
		m.Checks.WithLabelValues(c.Name, result).Inc()
	}
}

// ObserveIteration records a completed iteration.
func (m *Metrics) ObserveIteration(d time.Duration) {
	m.Iterations.Inc()
	m.IterationTime.Observe(d.Seconds())
}

// ObserveDropped records an iteration that could not start.
func (m *Metrics) ObserveDropped() {
	m.Dropped.Inc()
}

// ObserveVUs records the current VU counts.
func (m *Metrics) ObserveVUs(active, allocated int) {
	m.VUs.Set(float64(active))
	m.VUsMax.Set(float64(allocated))
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ loadtest.Observer = (*Metrics)(nil)
