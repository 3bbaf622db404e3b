package profile

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every problem found in a profile.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "profile: invalid: " + strings.Join(e.Problems, "; ")
}

type problems []string

func (p *problems) addf(format string, args ...interface{}) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

// Validate checks the rules a JSON schema cannot express and the rules
// profiles built in code must also obey. Call ApplyDefaults first.
func (o *Options) Validate() error {
	var errs problems
	s := o.Scenario

	if s.GracefulStop < 0 {
		errs.addf("gracefulStop must be non-negative")
	}
	if o.SetupTimeout < 0 {
		errs.addf("setupTimeout must be non-negative")
	}

	switch s.Executor {
	case ExecutorConstantVUs:
		if s.VUs < 1 {
			errs.addf("constant-vus needs vus >= 1, got %d", s.VUs)
		}
		if s.Duration <= 0 {
			errs.addf("constant-vus needs a positive duration")
		}
	case ExecutorRampingVUs:
		if s.StartVUs < 0 {
			errs.addf("startVUs must be non-negative, got %d", s.StartVUs)
		}
		if s.GracefulRampDown < 0 {
			errs.addf("gracefulRampDown must be non-negative")
		}
		validateStages(&errs, s.Stages)
	case ExecutorConstantArrivalRate:
		if s.Rate < 0 {
			errs.addf("rate must be non-negative, got %d", s.Rate)
		}
		if s.Duration <= 0 {
			errs.addf("constant-arrival-rate needs a positive duration")
		}
		validateArrival(&errs, s)
	case ExecutorRampingArrivalRate:
		if s.StartRate < 0 {
			errs.addf("startRate must be non-negative, got %d", s.StartRate)
		}
		validateStages(&errs, s.Stages)
		validateArrival(&errs, s)
	default:
		errs.addf("unknown executor %q", s.Executor)
	}

	if _, err := ParseThresholds(o.Thresholds); err != nil {
		errs.addf("thresholds: %v", err)
	}

	return errs.err()
}

func validateStages(errs *problems, stages []Stage) {
	if len(stages) == 0 {
		errs.addf("at least one stage is required")
		return
	}
	var total Duration
	for i, st := range stages {
		if st.Duration < 0 {
			errs.addf("stage %d: duration must be non-negative", i)
		}
		if st.Target < 0 {
			errs.addf("stage %d: target must be non-negative, got %d", i, st.Target)
		}
		total += st.Duration
	}
	if total <= 0 {
		errs.addf("stages must add up to a positive duration")
	}
}

func validateArrival(errs *problems, s Scenario) {
	if s.TimeUnit <= 0 {
		errs.addf("timeUnit must be positive")
	}
	if s.PreAllocatedVUs < 0 {
		errs.addf("preAllocatedVUs must be non-negative, got %d", s.PreAllocatedVUs)
	}
	if s.MaxVUs < 1 {
		errs.addf("maxVUs must be >= 1, got %d", s.MaxVUs)
	}
	if s.PreAllocatedVUs > s.MaxVUs {
		errs.addf("preAllocatedVUs (%d) must not exceed maxVUs (%d)", s.PreAllocatedVUs, s.MaxVUs)
	}
}

// ValidateDocument checks a decoded profile document (YAML or JSON
// decoded into interface{}) against the profile schema.
func ValidateDocument(doc interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(Schema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("profile: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs problems
	for _, e := range result.Errors() {
		errs.addf("%s", e.String())
	}
	return errs.err()
}
