package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FairForge/otpload/internal/profile"
)

func TestArrivalRate_StartsAtRate(t *testing.T) {
	opts := quickOptions(profile.ConstantArrivalRate(100, time.Second, 5, 20))

	test := &Test{
		Name:    "car",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			Sleep(ctx, 2*time.Millisecond)
			return okResult(nil)
		},
	}

	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100/s for 1s, with generous slack for slow CI machines
	if summary.Iterations < 60 || summary.Iterations > 130 {
		t.Errorf("expected about 100 iterations, got %d", summary.Iterations)
	}
	if summary.DroppedIterations != 0 {
		t.Errorf("expected no dropped iterations, got %d", summary.DroppedIterations)
	}
	if summary.VUsMax > 20 {
		t.Errorf("allocated %d VUs, limit is 20", summary.VUsMax)
	}

	t.Logf("Iterations: %d, VUs allocated: %d", summary.Iterations, summary.VUsMax)
}

func TestArrivalRate_DropsWhenVUsExhausted(t *testing.T) {
	opts := quickOptions(profile.ConstantArrivalRate(50, time.Second, 2, 2))
	opts.Thresholds = map[string][]string{"dropped_iterations": {"count==0"}}

	var inFlight, peak atomic.Int64
	test := &Test{
		Name:    "exhausted",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer inFlight.Add(-1)
			Sleep(ctx, 200*time.Millisecond)
			return okResult(nil)
		},
	}

	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.DroppedIterations == 0 {
		t.Error("expected dropped iterations when all VUs are busy")
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent iterations, got %d", peak.Load())
	}
	if summary.VUsMax != 2 {
		t.Errorf("expected 2 VUs, got %d", summary.VUsMax)
	}
	if summary.ThresholdsPassed() {
		t.Error("expected dropped_iterations threshold to fail")
	}
}

func TestArrivalRate_AllocatesBeyondPreallocated(t *testing.T) {
	opts := quickOptions(profile.ConstantArrivalRate(50, 500*time.Millisecond, 1, 10))

	test := &Test{
		Name:    "grow",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			Sleep(ctx, 50*time.Millisecond)
			return okResult(nil)
		},
	}

	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.VUsMax <= 1 {
		t.Errorf("expected extra VUs to be allocated, got %d", summary.VUsMax)
	}
	if summary.VUsMax > 10 {
		t.Errorf("allocated %d VUs, limit is 10", summary.VUsMax)
	}
}

func TestRampingArrivalRate_FollowsStages(t *testing.T) {
	s := profile.RampingArrivalRate(0, 5, 20,
		profile.S(500*time.Millisecond, 0),
		profile.S(0, 100),
		profile.S(500*time.Millisecond, 100),
	)
	opts := quickOptions(s)

	var mu sync.Mutex
	var starts []time.Duration
	begin := time.Now()

	test := &Test{
		Name:    "rar",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			mu.Lock()
			starts = append(starts, time.Since(begin))
			mu.Unlock()
			return okResult(nil)
		},
	}

	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, at := range starts {
		if at < 400*time.Millisecond {
			t.Errorf("iteration started at %v during the zero-rate stage", at)
		}
	}
	if summary.Iterations < 25 || summary.Iterations > 70 {
		t.Errorf("expected about 50 iterations, got %d", summary.Iterations)
	}
}

func TestRampingVUs_FollowsStages(t *testing.T) {
	s := profile.RampingVUs(
		profile.S(200*time.Millisecond, 4),
		profile.S(200*time.Millisecond, 4),
		profile.S(200*time.Millisecond, 0),
	)
	s.GracefulRampDown = profile.Duration(100 * time.Millisecond)
	opts := quickOptions(s)

	var inFlight, peak atomic.Int64
	test := &Test{
		Name:    "rv",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer inFlight.Add(-1)
			Sleep(ctx, 10*time.Millisecond)
			return okResult(nil)
		},
	}

	start := time.Now()
	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalRequests == 0 {
		t.Fatal("expected requests")
	}
	if peak.Load() > 4 {
		t.Errorf("expected at most 4 concurrent VUs, got %d", peak.Load())
	}
	if peak.Load() < 2 {
		t.Errorf("expected ramp to reach several VUs, peak %d", peak.Load())
	}
	if summary.VUsMax > 4 {
		t.Errorf("VUs are reused after ramp-down, expected at most 4 allocated, got %d", summary.VUsMax)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v", elapsed)
	}
}

func TestRampingVUs_ReusesVUs(t *testing.T) {
	// down to zero and back up: the same VUs come back
	s := profile.Scenario{
		Executor: profile.ExecutorRampingVUs,
		StartVUs: 3,
		Stages: []profile.Stage{
			profile.S(100*time.Millisecond, 3),
			profile.S(0, 0),
			profile.S(150*time.Millisecond, 0),
			profile.S(0, 3),
			profile.S(100*time.Millisecond, 3),
		},
	}
	opts := quickOptions(s)

	seen := sync.Map{}
	test := &Test{
		Name:    "reuse",
		Options: opts,
		Exec: func(ctx context.Context, it *Iteration) Result {
			seen.Store(it.VU, true)
			Sleep(ctx, 5*time.Millisecond)
			return okResult(nil)
		},
	}

	summary, err := NewRunner(nil).Run(context.Background(), test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := 0
	seen.Range(func(_, _ interface{}) bool {
		ids++
		return true
	})
	if ids > 3 || summary.VUsMax > 3 {
		t.Errorf("expected VUs to be reused, saw %d ids and %d allocated", ids, summary.VUsMax)
	}
}

func TestWaitGraceful(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer wg.Done()
		<-ctx.Done()
	}()

	if !waitGraceful(&wg, 20*time.Millisecond, cancel) {
		t.Error("expected graceful wait to time out and interrupt")
	}

	var idle sync.WaitGroup
	if waitGraceful(&idle, time.Second, func() {}) {
		t.Error("expected immediate completion")
	}
}

func TestBurstFor(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{0.5, 1},
		{50, 1},
		{100, 1},
		{150, 2},
		{20500, 205},
	}
	for _, tt := range tests {
		if got := burstFor(tt.rate); got != tt.want {
			t.Errorf("burstFor(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}
