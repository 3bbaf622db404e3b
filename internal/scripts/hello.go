package scripts

import (
	"context"
	"net/http"
	"time"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

// helloScript builds a GET /hello test. think is slept after each request.
func helloScript(name, description, check string, think time.Duration, opts func() *profile.Options) Script {
	return Script{
		Name:        name,
		Description: description,
		build: func(e Env, d Deps) (*loadtest.Test, error) {
			var cfg Target
			if err := parseEnv(e, &cfg); err != nil {
				return nil, err
			}
			o := d.options(opts())
			client, err := newClient(cfg, o)
			if err != nil {
				return nil, err
			}
			return &loadtest.Test{
				Name:    name,
				Options: o,
				Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
					res := client.Do(ctx, httpx.Request{Method: http.MethodGet, Path: "/hello"})
					res.Check(check, res.StatusCode == http.StatusOK)
					if think > 0 {
						loadtest.Sleep(ctx, think)
					}
					return res
				},
			}, nil
		},
	}
}

func helloScripts() []Script {
	return []Script{
		helloScript("hello-smoke",
			"1 VU for 10s against GET /hello with 1s think time",
			"status is 200", time.Second,
			func() *profile.Options {
				return &profile.Options{
					Name:     "hello-smoke",
					Scenario: profile.ConstantVUs(1, 10*sec),
				}
			}),

		helloScript("hello-stages",
			"ramp to 300 VUs and back against GET /hello",
			"200", 0,
			func() *profile.Options {
				return rampingVUs("hello-stages",
					map[string][]string{
						"http_req_failed":   {"rate<0.01"},
						"http_req_duration": {"p(95)<200"},
					},
					profile.S(10*sec, 100),
					profile.S(20*sec, 300),
					profile.S(20*sec, 0),
				)
			}),

		helloScript("hello-concurrency",
			"step concurrency up to 600 VUs against GET /hello without think time",
			"status 200", 0,
			func() *profile.Options {
				return rampingVUs("hello-concurrency",
					map[string][]string{
						"http_req_failed":   {"rate<0.01"},
						"http_req_duration": {"p(95)<50", "p(99)<150"},
					},
					profile.S(10*sec, 100),
					profile.S(20*sec, 200),
					profile.S(20*sec, 400),
					profile.S(20*sec, 600),
					profile.S(10*sec, 0),
				)
			}),

		helloScript("hello-constant-arrival-rate",
			"sustain 20500 req/s against GET /hello for 2m",
			"status 200", 0,
			func() *profile.Options {
				return &profile.Options{
					Name:     "hello-constant-arrival-rate",
					Scenario: profile.ConstantArrivalRate(20500, 2*time.Minute, 1000, 3000),
					Thresholds: map[string][]string{
						"http_req_failed":   {"rate<0.01"},
						"http_req_duration": {"p(95)<100", "p(99)<250"},
					},
				}
			}),

		helloScript("hello-spike",
			"jump from 20 to 200 VUs and back against GET /hello",
			"status 200", 0,
			func() *profile.Options {
				return rampingVUs("hello-spike",
					map[string][]string{
						"http_req_failed":   {"rate<0.02"},
						"http_req_duration": {"p(95)<200", "p(99)<500"},
					},
					profile.S(10*sec, 20),
					profile.S(5*sec, 200),
					profile.S(20*sec, 200),
					profile.S(10*sec, 20),
					profile.S(10*sec, 0),
				)
			}),

		helloScript("hello-ramp-rps",
			"ramp GET /hello from 100 to 1200 req/s",
			"status 200", 0,
			func() *profile.Options {
				return &profile.Options{
					Name: "hello-ramp-rps",
					Scenario: profile.RampingArrivalRate(100, 50, 1000,
						profile.S(30*sec, 300),
						profile.S(30*sec, 600),
						profile.S(30*sec, 900),
						profile.S(30*sec, 1200),
						profile.S(20*sec, 0),
					),
					Thresholds: map[string][]string{
						"http_req_failed":   {"rate<0.02"},
						"http_req_duration": {"p(95)<150", "p(99)<400"},
					},
				}
			}),
	}
}
