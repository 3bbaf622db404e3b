package loadtest

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/otpload/internal/profile"
)

// arrivalRate starts iterations at the scenario's rate, independent of
// how long they take. Each start goes to an idle VU, or to a newly
// allocated one while maxVUs allows, and is counted as dropped otherwise.
type arrivalRate struct {
	scenario profile.Scenario
}

// burstFor allows about 10ms worth of catch-up after a late wakeup.
func burstFor(perSecond float64) int {
	return int(math.Max(1, math.Ceil(perSecond/100)))
}

func (e *arrivalRate) run(ctx context.Context, env *execEnv) {
	s := e.scenario
	hardCtx, hardStop := context.WithCancel(ctx)
	defer hardStop()
	schedCtx, cancel := context.WithTimeout(hardCtx, s.TotalDuration())
	defer cancel()

	idle := make(chan *vu, s.MaxVUs)
	var wg sync.WaitGroup

	startVU := func() {
		v := env.newVU()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-v.jobs:
					env.runIteration(hardCtx, v)
					idle <- v
				case <-schedCtx.Done():
					return
				}
			}
		}()
		idle <- v
	}

	for i := 0; i < s.PreAllocatedVUs; i++ {
		startVU()
	}
	env.rec.vus(0, env.allocated())

	dispatch := func() {
		select {
		case v := <-idle:
			v.jobs <- struct{}{}
		default:
			if env.allocated() >= s.MaxVUs {
				env.rec.dropped()
				return
			}
			startVU()
			v := <-idle
			v.jobs <- struct{}{}
		}
		allocated := env.allocated()
		env.rec.vus(allocated-len(idle), allocated)
	}

	start := time.Now()
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	current := -1.0

	for schedCtx.Err() == nil {
		elapsed := time.Since(start)
		r := s.RateAt(elapsed)
		if r <= 0 {
			current = 0
			Sleep(schedCtx, schedulerTick)
			continue
		}
		if r != current {
			now := time.Now()
			limiter.SetLimitAt(now, rate.Limit(r))
			limiter.SetBurstAt(now, burstFor(r))
			if current <= 0 {
				// Start from an empty bucket so the first tick is not a burst.
				limiter.ReserveN(now, burstFor(r))
			}
			current = r
		}

		res := limiter.Reserve()
		if !res.OK() {
			Sleep(schedCtx, schedulerTick)
			continue
		}
		if d := res.Delay(); d > schedulerTick {
			// Re-read the target rate before committing to a long wait.
			res.Cancel()
			Sleep(schedCtx, schedulerTick)
			continue
		} else if d > 0 && !Sleep(schedCtx, d) {
			break
		}
		dispatch()
	}

	if waitGraceful(&wg, s.GracefulStop.D(), hardStop) {
		env.logger.Warn("graceful stop expired, interrupted running iterations",
			zap.Int("allocated_vus", env.allocated()))
	}
	env.rec.vus(0, env.allocated())
}
