package profile

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_VUsAt(t *testing.T) {
	s := RampingVUs(S(10*time.Second, 100), S(20*time.Second, 0))

	assert.Equal(t, 1, s.VUsAt(0))
	assert.Equal(t, 51, s.VUsAt(5*time.Second))
	assert.Equal(t, 100, s.VUsAt(10*time.Second))
	assert.Equal(t, 50, s.VUsAt(20*time.Second))
	assert.Equal(t, 0, s.VUsAt(30*time.Second))
	assert.Equal(t, 0, s.VUsAt(time.Hour))
	assert.Equal(t, 30*time.Second, s.TotalDuration())
	assert.Equal(t, 100, s.PeakVUs())
}

func TestScenario_VUsAt_ZeroLengthStage(t *testing.T) {
	s := Scenario{
		Executor: ExecutorRampingVUs,
		StartVUs: 0,
		Stages:   []Stage{S(0, 20), S(10*time.Second, 20)},
	}
	assert.Equal(t, 20, s.VUsAt(0))
	assert.Equal(t, 20, s.VUsAt(5*time.Second))
}

func TestScenario_ConstantVUs(t *testing.T) {
	s := ConstantVUs(20, 30*time.Second)
	assert.Equal(t, 20, s.VUsAt(0))
	assert.Equal(t, 20, s.VUsAt(29*time.Second))
	assert.Equal(t, 30*time.Second, s.TotalDuration())
	assert.False(t, s.IsArrivalRate())
}

func TestScenario_RateAt(t *testing.T) {
	t.Run("ramping", func(t *testing.T) {
		s := RampingArrivalRate(100, 50, 1000,
			S(30*time.Second, 300),
			S(30*time.Second, 600),
			S(20*time.Second, 0),
		)
		assert.InDelta(t, 100, s.RateAt(0), 1e-9)
		assert.InDelta(t, 200, s.RateAt(15*time.Second), 1e-9)
		assert.InDelta(t, 300, s.RateAt(30*time.Second), 1e-9)
		assert.InDelta(t, 300, s.RateAt(70*time.Second), 1e-9)
		assert.InDelta(t, 0, s.RateAt(80*time.Second), 1e-9)
		assert.True(t, s.IsArrivalRate())
		assert.Equal(t, 1000, s.PeakVUs())
	})

	t.Run("time unit", func(t *testing.T) {
		s := ConstantArrivalRate(60, time.Minute, 1, 2)
		s.TimeUnit = Duration(time.Minute)
		assert.InDelta(t, 1, s.RateAt(10*time.Second), 1e-9)
	})
}

func TestOptions_ApplyDefaults(t *testing.T) {
	o := &Options{Scenario: Scenario{
		Executor:        ExecutorConstantArrivalRate,
		Rate:            10,
		Duration:        Duration(time.Second),
		PreAllocatedVUs: 5,
	}}
	o.ApplyDefaults()

	assert.Equal(t, Duration(DefaultSetupTimeout), o.SetupTimeout)
	assert.Equal(t, Duration(DefaultGracefulStop), o.Scenario.GracefulStop)
	assert.Equal(t, Duration(time.Second), o.Scenario.TimeUnit)
	assert.Equal(t, 5, o.Scenario.MaxVUs)
}

func TestOptions_Validate(t *testing.T) {
	valid := func() *Options {
		o := &Options{
			Scenario: ConstantArrivalRate(500, time.Minute, 10, 20),
			Thresholds: map[string][]string{
				"http_req_failed":    {"rate<0.01"},
				"dropped_iterations": {"count==0"},
			},
		}
		o.ApplyDefaults()
		return o
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(o *Options)
		want   string
	}{
		{"preallocated above max", func(o *Options) { o.Scenario.PreAllocatedVUs = 30 }, "must not exceed maxVUs"},
		{"negative rate", func(o *Options) { o.Scenario.Rate = -1 }, "rate must be non-negative"},
		{"zero duration", func(o *Options) { o.Scenario.Duration = 0 }, "positive duration"},
		{"unknown executor", func(o *Options) { o.Scenario.Executor = "per-vu-iterations" }, "unknown executor"},
		{"bad threshold", func(o *Options) { o.Thresholds["http_req_failed"] = []string{"p(95)<1"} }, "not valid for rate metric"},
		{"zero time unit", func(o *Options) { o.Scenario.TimeUnit = 0 }, "timeUnit must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(o)
			err := o.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOptions_Validate_Stages(t *testing.T) {
	o := &Options{Scenario: RampingVUs(S(10*time.Second, 100), S(-time.Second, 0))}
	o.ApplyDefaults()
	assert.ErrorContains(t, o.Validate(), "stage 1: duration must be non-negative")

	o = &Options{Scenario: RampingVUs(S(10*time.Second, -5))}
	o.ApplyDefaults()
	assert.ErrorContains(t, o.Validate(), "target must be non-negative")

	o = &Options{Scenario: RampingVUs()}
	o.ApplyDefaults()
	assert.ErrorContains(t, o.Validate(), "at least one stage")

	o = &Options{Scenario: RampingVUs(S(0, 10))}
	o.ApplyDefaults()
	assert.ErrorContains(t, o.Validate(), "positive duration")
}

func TestParse(t *testing.T) {
	doc := `
name: tenant-settings
scenario:
  executor: constant-arrival-rate
  rate: 10000
  duration: 2m
  preAllocatedVUs: 1000
  maxVUs: 5000
thresholds:
  http_req_failed: ["rate<0.01"]
  http_req_duration: ["p(95)<50", "p(99)<150"]
  dropped_iterations: ["count==0"]
discardResponseBodies: true
`
	opts, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "tenant-settings", opts.Name)
	assert.Equal(t, ExecutorConstantArrivalRate, opts.Scenario.Executor)
	assert.Equal(t, 10000, opts.Scenario.Rate)
	assert.Equal(t, 2*time.Minute, opts.Scenario.Duration.D())
	assert.Equal(t, time.Second, opts.Scenario.TimeUnit.D())
	assert.True(t, opts.DiscardResponseBodies)
	assert.Len(t, opts.Thresholds["http_req_duration"], 2)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative target", `
scenario:
  executor: ramping-vus
  stages:
    - {duration: 10s, target: -1}
`},
		{"malformed duration", `
scenario:
  executor: constant-vus
  vus: 2
  duration: 10 seconds
`},
		{"arrival field on vu executor", `
scenario:
  executor: ramping-vus
  rate: 500
  stages:
    - {duration: 10s, target: 100}
`},
		{"unknown executor", `
scenario:
  executor: shared-iterations
  vus: 1
  duration: 1s
`},
		{"missing scenario", `name: nothing`},
		{"fractional vus", `
scenario:
  executor: constant-vus
  vus: 1.5
  duration: 1s
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
		})
	}
}

func TestParse_RuleErrorsAfterSchema(t *testing.T) {
	doc := `
scenario:
  executor: constant-arrival-rate
  rate: 500
  duration: 1m
  preAllocatedVUs: 100
  maxVUs: 10
`
	_, err := Parse([]byte(doc))
	assert.ErrorContains(t, err, "preAllocatedVUs (100) must not exceed maxVUs (10)")
}

// A VU-based profile and an arrival-rate profile are different shapes:
// each validates on its own and neither accepts the other's fields.
func TestProfileShapesAreDistinct(t *testing.T) {
	vus := &Options{Scenario: RampingVUs(S(10*time.Second, 100), S(20*time.Second, 0))}
	rate := &Options{Scenario: ConstantArrivalRate(500, time.Minute, 50, 100)}

	for _, o := range []*Options{vus, rate} {
		var buf bytes.Buffer
		require.NoError(t, o.Write(&buf))
		parsed, err := Parse(buf.Bytes())
		require.NoError(t, err, buf.String())
		assert.Equal(t, o.Scenario.Executor, parsed.Scenario.Executor)
	}

	mixed := `
scenario:
  executor: constant-arrival-rate
  rate: 500
  duration: 1m
  preAllocatedVUs: 50
  maxVUs: 100
  stages:
    - {duration: 10s, target: 100}
`
	_, err := Parse([]byte(mixed))
	assert.Error(t, err)
}

func TestWriteParseRoundTrip(t *testing.T) {
	o := &Options{
		Name:     "redis-get",
		Scenario: RampingVUs(S(15*time.Second, 100), S(30*time.Second, 500), S(20*time.Second, 0)),
		Thresholds: map[string][]string{
			"http_req_failed{phase:main}":   {"rate<0.01"},
			"http_req_duration{phase:main}": {"p(95)<500", "p(99)<1000"},
		},
		SetupTimeout:          Duration(15 * time.Minute),
		DiscardResponseBodies: true,
	}
	o.ApplyDefaults()

	var buf bytes.Buffer
	require.NoError(t, o.Write(&buf))
	assert.Contains(t, buf.String(), "setupTimeout: 15m")

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, o, parsed)
}

func TestClone(t *testing.T) {
	o := &Options{
		Scenario:   RampingVUs(S(time.Second, 1)),
		Thresholds: map[string][]string{"checks": {"rate>0.9"}},
	}
	c := o.Clone()
	c.Scenario.Stages[0].Target = 99
	c.Thresholds["checks"][0] = "rate>0.1"

	assert.Equal(t, 1, o.Scenario.Stages[0].Target)
	assert.Equal(t, "rate>0.9", o.Thresholds["checks"][0])
}

func TestDuration_String(t *testing.T) {
	assert.Equal(t, "2m", Duration(2*time.Minute).String())
	assert.Equal(t, "90s", Duration(90*time.Second).String())
	assert.Equal(t, "1h", Duration(time.Hour).String())
	assert.Equal(t, "250ms", Duration(250*time.Millisecond).String())
	assert.Equal(t, "0s", Duration(0).String())
}
