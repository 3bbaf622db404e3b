// Package profile describes the shape of a load test run: which executor
// drives it, its stages or arrival rate, and the thresholds the run must
// meet. Profiles are plain data; internal/loadtest executes them.
package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

// Executor names a load shaping strategy.
type Executor string

const (
	ExecutorConstantVUs         Executor = "constant-vus"
	ExecutorRampingVUs          Executor = "ramping-vus"
	ExecutorConstantArrivalRate Executor = "constant-arrival-rate"
	ExecutorRampingArrivalRate  Executor = "ramping-arrival-rate"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultSetupTimeout     = 60 * time.Second
	DefaultGracefulStop     = 30 * time.Second
	DefaultGracefulRampDown = 30 * time.Second
	DefaultTimeUnit         = time.Second
)

// Duration is a time.Duration that reads and writes as "10s", "2m".
type Duration time.Duration

// D converts to time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string {
	td := time.Duration(d)
	switch {
	case td == 0:
		return "0s"
	case td%time.Hour == 0:
		return fmt.Sprintf("%dh", td/time.Hour)
	case td%time.Minute == 0:
		return fmt.Sprintf("%dm", td/time.Minute)
	case td%time.Second == 0:
		return fmt.Sprintf("%ds", td/time.Second)
	case td%time.Millisecond == 0:
		return fmt.Sprintf("%dms", td/time.Millisecond)
	default:
		return td.String()
	}
}

// ParseDuration accepts Go duration syntax.
func ParseDuration(s string) (Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("profile: invalid duration %q: %w", s, err)
	}
	return Duration(d), nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Stage is one leg of a ramp: move linearly to Target over Duration.
type Stage struct {
	Duration Duration `yaml:"duration" json:"duration"`
	Target   int      `yaml:"target" json:"target"`
}

// Scenario configures one executor. Only the fields of the chosen
// executor are meaningful.
type Scenario struct {
	Executor Executor `yaml:"executor" json:"executor"`

	// constant-vus
	VUs      int      `yaml:"vus,omitempty" json:"vus,omitempty"`
	Duration Duration `yaml:"duration,omitempty" json:"duration,omitempty"`

	// ramping-vus
	StartVUs         int      `yaml:"startVUs,omitempty" json:"startVUs,omitempty"`
	GracefulRampDown Duration `yaml:"gracefulRampDown,omitempty" json:"gracefulRampDown,omitempty"`

	// arrival-rate executors
	Rate            int      `yaml:"rate,omitempty" json:"rate,omitempty"`
	StartRate       int      `yaml:"startRate,omitempty" json:"startRate,omitempty"`
	TimeUnit        Duration `yaml:"timeUnit,omitempty" json:"timeUnit,omitempty"`
	PreAllocatedVUs int      `yaml:"preAllocatedVUs,omitempty" json:"preAllocatedVUs,omitempty"`
	MaxVUs          int      `yaml:"maxVUs,omitempty" json:"maxVUs,omitempty"`

	// ramping executors
	Stages []Stage `yaml:"stages,omitempty" json:"stages,omitempty"`

	GracefulStop Duration `yaml:"gracefulStop,omitempty" json:"gracefulStop,omitempty"`
}

// Options is a complete load profile.
type Options struct {
	Name                  string              `yaml:"name,omitempty" json:"name,omitempty"`
	Scenario              Scenario            `yaml:"scenario" json:"scenario"`
	Thresholds            map[string][]string `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	SetupTimeout          Duration            `yaml:"setupTimeout,omitempty" json:"setupTimeout,omitempty"`
	DiscardResponseBodies bool                `yaml:"discardResponseBodies,omitempty" json:"discardResponseBodies,omitempty"`
}

// ApplyDefaults fills in unset timeouts and VU limits.
func (o *Options) ApplyDefaults() {
	if o.SetupTimeout == 0 {
		o.SetupTimeout = Duration(DefaultSetupTimeout)
	}
	s := &o.Scenario
	if s.GracefulStop == 0 {
		s.GracefulStop = Duration(DefaultGracefulStop)
	}
	switch s.Executor {
	case ExecutorRampingVUs:
		if s.GracefulRampDown == 0 {
			s.GracefulRampDown = Duration(DefaultGracefulRampDown)
		}
	case ExecutorConstantArrivalRate, ExecutorRampingArrivalRate:
		if s.TimeUnit == 0 {
			s.TimeUnit = Duration(DefaultTimeUnit)
		}
		if s.MaxVUs == 0 {
			s.MaxVUs = s.PreAllocatedVUs
		}
	}
}

// IsArrivalRate reports whether the executor paces iteration starts
// rather than VU count.
func (s Scenario) IsArrivalRate() bool {
	return s.Executor == ExecutorConstantArrivalRate || s.Executor == ExecutorRampingArrivalRate
}

// TotalDuration is how long the executor schedules new iterations.
func (s Scenario) TotalDuration() time.Duration {
	switch s.Executor {
	case ExecutorConstantVUs, ExecutorConstantArrivalRate:
		return s.Duration.D()
	default:
		var total time.Duration
		for _, st := range s.Stages {
			total += st.Duration.D()
		}
		return total
	}
}

// VUsAt returns the number of active VUs a VU-based executor wants at
// elapsed time since start.
func (s Scenario) VUsAt(elapsed time.Duration) int {
	switch s.Executor {
	case ExecutorConstantVUs:
		return s.VUs
	case ExecutorRampingVUs:
		return int(math.Round(interpolate(float64(s.StartVUs), s.Stages, elapsed)))
	default:
		return 0
	}
}

// PeakVUs returns the largest number of VUs the scenario can use.
func (s Scenario) PeakVUs() int {
	switch s.Executor {
	case ExecutorConstantVUs:
		return s.VUs
	case ExecutorRampingVUs:
		peak := s.StartVUs
		for _, st := range s.Stages {
			if st.Target > peak {
				peak = st.Target
			}
		}
		return peak
	default:
		return s.MaxVUs
	}
}

// RateAt returns the iteration start rate, per second, an arrival-rate
// executor wants at elapsed time since start.
func (s Scenario) RateAt(elapsed time.Duration) float64 {
	unit := s.TimeUnit.D()
	if unit <= 0 {
		unit = DefaultTimeUnit
	}
	perUnit := 0.0
	switch s.Executor {
	case ExecutorConstantArrivalRate:
		perUnit = float64(s.Rate)
	case ExecutorRampingArrivalRate:
		perUnit = interpolate(float64(s.StartRate), s.Stages, elapsed)
	}
	return perUnit / unit.Seconds()
}

// interpolate walks the stages and returns the linearly interpolated
// target at elapsed. Zero-length stages jump straight to their target.
func interpolate(start float64, stages []Stage, elapsed time.Duration) float64 {
	from := start
	for _, st := range stages {
		d := st.Duration.D()
		if elapsed < d {
			frac := float64(elapsed) / float64(d)
			return from + (float64(st.Target)-from)*frac
		}
		elapsed -= d
		from = float64(st.Target)
	}
	return from
}

// ConstantVUs builds a fixed-size VU profile.
func ConstantVUs(vus int, duration time.Duration) Scenario {
	return Scenario{Executor: ExecutorConstantVUs, VUs: vus, Duration: Duration(duration)}
}

// RampingVUs builds a staged VU profile starting from one VU.
func RampingVUs(stages ...Stage) Scenario {
	return Scenario{Executor: ExecutorRampingVUs, StartVUs: 1, Stages: stages}
}

// ConstantArrivalRate builds a fixed-rate profile with a one second time unit.
func ConstantArrivalRate(rate int, duration time.Duration, preAllocatedVUs, maxVUs int) Scenario {
	return Scenario{
		Executor:        ExecutorConstantArrivalRate,
		Rate:            rate,
		TimeUnit:        Duration(time.Second),
		Duration:        Duration(duration),
		PreAllocatedVUs: preAllocatedVUs,
		MaxVUs:          maxVUs,
	}
}

// RampingArrivalRate builds a staged rate profile with a one second time unit.
func RampingArrivalRate(startRate, preAllocatedVUs, maxVUs int, stages ...Stage) Scenario {
	return Scenario{
		Executor:        ExecutorRampingArrivalRate,
		StartRate:       startRate,
		TimeUnit:        Duration(time.Second),
		PreAllocatedVUs: preAllocatedVUs,
		MaxVUs:          maxVUs,
		Stages:          stages,
	}
}

// S is shorthand for a Stage.
func S(d time.Duration, target int) Stage {
	return Stage{Duration: Duration(d), Target: target}
}
