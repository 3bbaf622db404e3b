package scripts

import (
	"time"

	"github.com/FairForge/otpload/internal/profile"
)

const sec = time.Second

// capacityStages is the warm-up, push, recovery and cool-down ramp shared
// by the tenant-settings, redis and mongo capacity scripts.
func capacityStages() []profile.Stage {
	return []profile.Stage{
		profile.S(15*sec, 100),
		profile.S(30*sec, 500),
		profile.S(30*sec, 1000),
		profile.S(30*sec, 2000),
		profile.S(30*sec, 3000),
		profile.S(30*sec, 4000),
		profile.S(30*sec, 1500),
		profile.S(20*sec, 0),
	}
}

// mainPhaseThresholds ignore seed traffic tagged phase=setup.
func mainPhaseThresholds() map[string][]string {
	return map[string][]string{
		"http_req_failed{phase:main}":   {"rate<0.01"},
		"http_req_duration{phase:main}": {"p(95)<500", "p(99)<1000"},
	}
}

func rampingVUs(name string, thresholds map[string][]string, stages ...profile.Stage) *profile.Options {
	return &profile.Options{
		Name:       name,
		Scenario:   profile.RampingVUs(stages...),
		Thresholds: thresholds,
	}
}
