package scripts

import (
	"context"
	"net/http"
	"time"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

const otpCodePath = "/v1/otp/code"

// ArrivalEnv sizes a constant-arrival-rate run.
type ArrivalEnv struct {
	Rate     int           `env:"RATE"`
	Duration time.Duration `env:"DURATION" envDefault:"2m"`
	PreVUs   int           `env:"PRE_VUS" envDefault:"1000"`
	MaxVUs   int           `env:"MAX_VUS"`
}

func (a ArrivalEnv) options(name string, thresholds map[string][]string) *profile.Options {
	return &profile.Options{
		Name:       name,
		Scenario:   profile.ConstantArrivalRate(a.Rate, a.Duration, a.PreVUs, a.MaxVUs),
		Thresholds: thresholds,
	}
}

// OTPCodeEnv configures the /v1/otp/code scripts.
type OTPCodeEnv struct {
	Target
	ArrivalEnv
}

func otpCodeExec(client *httpx.Client, check string) loadtest.IterationFunc {
	return func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
		res := client.Do(ctx, httpx.Request{
			Method:  http.MethodPost,
			Path:    otpCodePath,
			Header:  httpx.JSONHeader(),
			Name:    "POST " + otpCodePath,
			Timeout: 2 * time.Second,
		})
		res.Check(check, res.StatusCode == http.StatusOK)
		return res
	}
}

func otpScripts() []Script {
	return []Script{
		{
			Name:        "otp-code-capacity",
			Description: "ramp POST /v1/otp/code up to 5000 VUs to find the ceiling",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg Target
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				opts := d.options(rampingVUs("otp-code-capacity",
					map[string][]string{
						"http_req_failed":   {"rate<0.05"},
						"http_req_duration": {"p(95)<500", "p(99)<1000"},
					},
					profile.S(15*sec, 100),
					profile.S(30*sec, 500),
					profile.S(30*sec, 1000),
					profile.S(30*sec, 2000),
					profile.S(30*sec, 3000),
					profile.S(30*sec, 5000),
					profile.S(30*sec, 1500),
					profile.S(20*sec, 0),
				))
				client, err := newClient(cfg, opts)
				if err != nil {
					return nil, err
				}
				return &loadtest.Test{
					Name:    "otp-code-capacity",
					Options: opts,
					Exec:    otpCodeExec(client, "status is 200"),
				}, nil
			},
		},
		{
			Name:        "otp-constant-arrival-rate",
			Description: "sustain RATE req/s (default 16000) against POST /v1/otp/code",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				cfg := OTPCodeEnv{ArrivalEnv: ArrivalEnv{Rate: 16000, MaxVUs: 3000}}
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				opts := d.options(cfg.options("otp-constant-arrival-rate", map[string][]string{
					"http_req_failed":    {"rate<0.01"},
					"http_req_duration":  {"p(95)<120", "p(99)<300"},
					"dropped_iterations": {"count==0"},
				}))
				client, err := newClient(cfg.Target, opts)
				if err != nil {
					return nil, err
				}
				return &loadtest.Test{
					Name:    "otp-constant-arrival-rate",
					Options: opts,
					Exec:    otpCodeExec(client, "status 200"),
				}, nil
			},
		},
	}
}
