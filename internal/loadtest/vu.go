package loadtest

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Observer receives samples as they are recorded. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveResult(res Result)
	ObserveIteration(d time.Duration)
	ObserveDropped()
	ObserveVUs(active, allocated int)
}

// recorder fans samples out to the run's collector and observers.
type recorder struct {
	collector *Collector
	observers []Observer
}

func (r *recorder) Record(res Result) {
	r.collector.Record(res)
	for _, o := range r.observers {
		o.ObserveResult(res)
	}
}

func (r *recorder) iteration(d time.Duration, tags Tags) {
	r.collector.recordIteration(d, tags)
	for _, o := range r.observers {
		o.ObserveIteration(d)
	}
}

func (r *recorder) dropped() {
	r.collector.recordDropped()
	for _, o := range r.observers {
		o.ObserveDropped()
	}
}

func (r *recorder) vus(active, allocated int) {
	r.collector.setVUs(active, allocated)
	for _, o := range r.observers {
		o.ObserveVUs(active, allocated)
	}
}

// vu is one virtual user. Its fields are only touched by the goroutine
// currently driving it.
type vu struct {
	id   int
	iter int64
	rand *rand.Rand
	jobs chan struct{} // arrival-rate executors only
}

// execEnv is the per-run state shared by all VUs.
type execEnv struct {
	exec   IterationFunc
	data   interface{}
	rec    *recorder
	logger *zap.Logger

	vuSeq      atomic.Int64
	iterations atomic.Int64
}

func (e *execEnv) newVU() *vu {
	id := e.vuSeq.Add(1)
	return &vu{
		id:   int(id),
		rand: rand.New(rand.NewSource(time.Now().UnixNano() + id)),
		jobs: make(chan struct{}, 1),
	}
}

func (e *execEnv) allocated() int {
	return int(e.vuSeq.Load())
}

// runIteration executes one iteration on v. Iterations cut short by ctx
// are not recorded.
func (e *execEnv) runIteration(ctx context.Context, v *vu) {
	it := &Iteration{
		VU:     v.id,
		Iter:   v.iter,
		Global: e.iterations.Add(1) - 1,
		Rand:   v.rand,
		Data:   e.data,
	}
	v.iter++

	start := time.Now()
	res := e.exec(ctx, it)
	if ctx.Err() != nil {
		e.logger.Debug("iteration interrupted", zap.Int("vu", v.id), zap.Int64("iter", it.Iter))
		return
	}
	e.rec.Record(res)
	e.rec.iteration(time.Since(start), res.Tags)
}
