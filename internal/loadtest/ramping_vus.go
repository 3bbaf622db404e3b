package loadtest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/profile"
)

// rampingVUs follows the stage targets by starting and stopping VUs.
// A VU asked to stop finishes its current iteration, or is interrupted
// once gracefulRampDown has passed.
type rampingVUs struct {
	scenario profile.Scenario
}

type vuHandle struct {
	v      *vu
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	timer  *time.Timer
}

func (e *rampingVUs) run(ctx context.Context, env *execEnv) {
	s := e.scenario
	hardCtx, hardStop := context.WithCancel(ctx)
	defer hardStop()

	var (
		wg       sync.WaitGroup
		active   []*vuHandle
		stopping []*vuHandle
		idle     []*vu
	)

	reclaim := func() {
		kept := stopping[:0]
		for _, h := range stopping {
			select {
			case <-h.done:
				if h.timer != nil {
					h.timer.Stop()
				}
				idle = append(idle, h.v)
			default:
				kept = append(kept, h)
			}
		}
		stopping = kept
	}

	activate := func() {
		var v *vu
		if len(idle) > 0 {
			v = idle[len(idle)-1]
			idle = idle[:len(idle)-1]
		} else {
			v = env.newVU()
		}

		vctx, vcancel := context.WithCancel(hardCtx)
		h := &vuHandle{v: v, stop: make(chan struct{}), done: make(chan struct{}), cancel: vcancel}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(h.done)
			defer vcancel()
			for {
				select {
				case <-h.stop:
					return
				case <-vctx.Done():
					return
				default:
				}
				env.runIteration(vctx, h.v)
			}
		}()
		active = append(active, h)
	}

	deactivate := func() {
		h := active[len(active)-1]
		active = active[:len(active)-1]
		close(h.stop)
		h.timer = time.AfterFunc(s.GracefulRampDown.D(), h.cancel)
		stopping = append(stopping, h)
	}

	scale := func(target int) {
		if target < 0 {
			target = 0
		}
		if target == len(active) {
			return
		}
		reclaim()
		for len(active) < target {
			activate()
		}
		for len(active) > target {
			deactivate()
		}
		env.rec.vus(len(active), env.allocated())
	}

	total := s.TotalDuration()
	start := time.Now()
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	scale(s.VUsAt(0))

loop:
	for {
		select {
		case <-hardCtx.Done():
			break loop
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed >= total {
				break loop
			}
			scale(s.VUsAt(elapsed))
		}
	}

	for _, h := range active {
		close(h.stop)
	}
	active = nil

	if waitGraceful(&wg, s.GracefulStop.D(), hardStop) {
		env.logger.Warn("graceful stop expired, interrupted running iterations",
			zap.Int("allocated_vus", env.allocated()))
	}
	for _, h := range stopping {
		if h.timer != nil {
			h.timer.Stop()
		}
	}
	env.rec.vus(0, env.allocated())
}
