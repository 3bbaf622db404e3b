// Package loadtest runs load tests against HTTP services.
//
// # Overview
//
// A Test pairs a profile.Options (executor, stages or rate, thresholds)
// with an IterationFunc. The Runner executes an optional setup phase,
// drives iterations with the profile's executor and evaluates thresholds
// against the collected samples:
//
//   - constant-vus: a fixed number of VUs loop for a duration
//   - ramping-vus: the number of looping VUs follows linear stages
//   - constant-arrival-rate: iterations start at a fixed rate
//   - ramping-arrival-rate: the start rate follows linear stages
//
// Arrival-rate executors never queue. When no VU is free and maxVUs are
// already allocated the iteration is counted in dropped_iterations.
//
// # Quick Start
//
//	test := &loadtest.Test{
//	    Name: "hello",
//	    Options: &profile.Options{
//	        Scenario:   profile.ConstantVUs(20, 30*time.Second),
//	        Thresholds: map[string][]string{"http_req_duration": {"p(95)<200"}},
//	    },
//	    Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
//	        return client.Do(ctx, httpx.Request{Method: http.MethodGet, Path: "/hello"})
//	    },
//	}
//
//	summary, err := loadtest.NewRunner(logger).Run(ctx, test)
//	if err == nil && !summary.ThresholdsPassed() {
//	    os.Exit(99)
//	}
//
// # Metrics
//
// Request samples are stored per tag set, so thresholds may select a
// sub-metric such as http_req_duration{phase:main}. A request fails when
// it errors or its status is outside 200-399.
package loadtest
