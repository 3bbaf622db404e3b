package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/loadtest"
)

type fixedSource struct {
	running bool
	stats   loadtest.Stats
}

func (f fixedSource) IsRunning() bool { return f.running }
func (f fixedSource) CurrentStats() loadtest.Stats { return f.stats }

func TestServer_Status(t *testing.T) {
	src := fixedSource{running: true, stats: loadtest.Stats{Requests: 120, Failures: 3, ActiveVUs: 7, RequestsPerSec: 60}}
	s := NewServer(":0", "redis-get-capacity", New(), src, zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if got.Test != "redis-get-capacity" || !got.Running {
		t.Errorf("Unexpected status header fields: %+v", got)
	}
	if got.Stats.Requests != 120 || got.Stats.Failures != 3 || got.Stats.ActiveVUs != 7 {
		t.Errorf("Unexpected stats: %+v", got.Stats)
	}
}

func TestServer_MetricsAndHealth(t *testing.T) {
	m := New()
	m.ObserveDropped()
	s := NewServer(":0", "hello-smoke", m, fixedSource{}, nil)

	for _, path := range []string{"/metrics", "/health"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST /status, got %d", rec.Code)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestServer_RunAndShutdown(t *testing.T) {
	addr := freeAddr(t)
	s := NewServer(addr, "hello-smoke", New(), fixedSource{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(fmt.Sprintf("http://%s/health", addr))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_RunBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:bad", "hello-smoke", New(), fixedSource{}, nil)
	if err := s.Run(context.Background()); err == nil {
		t.Error("Expected listen error")
	}
}
