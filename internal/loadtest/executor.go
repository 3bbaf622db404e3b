package loadtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FairForge/otpload/internal/profile"
)

// schedulerTick is how often ramping executors re-read their targets.
const schedulerTick = 50 * time.Millisecond

type executor interface {
	run(ctx context.Context, env *execEnv)
}

func newExecutor(s profile.Scenario) (executor, error) {
	switch s.Executor {
	case profile.ExecutorConstantVUs:
		return &constantVUs{scenario: s}, nil
	case profile.ExecutorRampingVUs:
		return &rampingVUs{scenario: s}, nil
	case profile.ExecutorConstantArrivalRate, profile.ExecutorRampingArrivalRate:
		return &arrivalRate{scenario: s}, nil
	default:
		return nil, fmt.Errorf("unknown executor %q", s.Executor)
	}
}

// waitGraceful waits for in-flight iterations. When grace runs out it
// cancels them through hardStop and waits for the VUs to return.
func waitGraceful(wg *sync.WaitGroup, grace time.Duration, hardStop context.CancelFunc) (interrupted bool) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return false
	case <-timer.C:
		hardStop()
		<-done
		return true
	}
}

// constantVUs keeps a fixed number of VUs looping for the duration.
type constantVUs struct {
	scenario profile.Scenario
}

func (e *constantVUs) run(ctx context.Context, env *execEnv) {
	s := e.scenario
	hardCtx, hardStop := context.WithCancel(ctx)
	defer hardStop()
	schedCtx, cancel := context.WithTimeout(hardCtx, s.Duration.D())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.VUs; i++ {
		v := env.newVU()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for schedCtx.Err() == nil {
				env.runIteration(hardCtx, v)
			}
		}()
	}
	env.rec.vus(s.VUs, s.VUs)

	<-schedCtx.Done()
	if waitGraceful(&wg, s.GracefulStop.D(), hardStop) {
		env.logger.Warn("graceful stop expired, interrupted running iterations")
	}
	env.rec.vus(0, env.allocated())
}
