// Package seed pre-populates a backend before the main phase of a run.
package seed

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
)

// Error reports the first seed write that did not answer 200. Status is
// 0 when the request itself failed.
type Error struct {
	Index  int
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("seed failed at i=%d, status=%d", e.Index, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Doer sends one request. *httpx.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpx.Request) loadtest.Result
}

// RequestFunc builds the i-th seed write.
type RequestFunc func(i int) httpx.Request

// Seeder issues seed writes one after another and stops at the first
// failure.
type Seeder struct {
	client Doer
	rec    loadtest.Recorder
	logger *zap.Logger
}

// New creates a seeder. Samples go to rec, which may be nil.
func New(client Doer, rec loadtest.Recorder, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{client: client, rec: rec, logger: logger}
}

// Seed issues exactly n writes, sequentially, tagged phase=setup.
func (s *Seeder) Seed(ctx context.Context, n int, build RequestFunc) error {
	if n <= 0 {
		return nil
	}

	step := n / 10
	s.logger.Info("seeding", zap.Int("keys", n))

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("seed interrupted at i=%d: %w", i, err)
		}

		req := build(i)
		tags := make(loadtest.Tags, len(req.Tags)+1)
		for k, v := range req.Tags {
			tags[k] = v
		}
		tags["phase"] = "setup"
		req.Tags = tags

		res := s.client.Do(ctx, req)
		if s.rec != nil {
			s.rec.Record(res)
		}

		if res.Error != nil || res.StatusCode != http.StatusOK {
			serr := &Error{Index: i, Status: res.StatusCode, Err: res.Error}
			s.logger.Error("seeding failed", zap.Int("index", i), zap.Int("status", res.StatusCode), zap.Error(res.Error))
			return serr
		}

		if step > 0 && (i+1)%step == 0 {
			s.logger.Info("seed progress",
				zap.Int("done", i+1),
				zap.Int("total", n),
				zap.Int("percent", (i+1)*100/n))
		}
	}

	s.logger.Info("seeding complete", zap.Int("keys", n))
	return nil
}
