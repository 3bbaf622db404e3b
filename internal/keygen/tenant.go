package keygen

import (
	"fmt"
	"math/rand"
)

// TenantPicker chooses the tenant id for a request. A positive Fixed id
// wins; otherwise ids are drawn uniformly from [Min, Max].
type TenantPicker struct {
	Fixed int
	Min   int
	Max   int
}

// Validate checks the range. The range is ignored when Fixed is set.
func (t TenantPicker) Validate() error {
	if t.Fixed < 0 {
		return fmt.Errorf("keygen: tenant id must be positive, got %d", t.Fixed)
	}
	if t.Fixed > 0 {
		return nil
	}
	if t.Min < 1 {
		return fmt.Errorf("keygen: min tenant id must be >= 1, got %d", t.Min)
	}
	if t.Min > t.Max {
		return fmt.Errorf("keygen: min tenant id %d exceeds max %d", t.Min, t.Max)
	}
	return nil
}

// Pick returns a tenant id.
func (t TenantPicker) Pick(r *rand.Rand) int {
	if t.Fixed > 0 {
		return t.Fixed
	}
	return t.Min + r.Intn(t.Max-t.Min+1)
}

// Sampler decides whether an iteration evaluates its checks. Sampling keeps
// client overhead low at very high request rates.
type Sampler struct {
	Rate float64
}

// Validate checks the rate is a probability.
func (s Sampler) Validate() error {
	if s.Rate < 0 || s.Rate > 1 {
		return fmt.Errorf("keygen: check sample rate must be in [0, 1], got %g", s.Rate)
	}
	return nil
}

// Sample reports whether this iteration is sampled.
func (s Sampler) Sample(r *rand.Rand) bool {
	switch {
	case s.Rate >= 1:
		return true
	case s.Rate <= 0:
		return false
	default:
		return r.Float64() < s.Rate
	}
}
