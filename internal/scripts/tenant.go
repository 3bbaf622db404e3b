package scripts

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/keygen"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

const (
	tenantSettingsPath  = "/v1/otp/tenant-settings/"
	tenantSettingsName  = "GET /v1/otp/tenant-settings/:id"
	tenantInsertPath    = "/v1/otp/tenant-settings-insert-benchmark"
	tenantSettingsCheck = "status is 200"
)

// TenantEnv selects the tenant ids a lookup script reads. TENANT_ID pins
// one id; otherwise ids are drawn from MIN_ID..MAX_ID.
type TenantEnv struct {
	TenantID int `env:"TENANT_ID"`
	MinID    int `env:"MIN_ID" envDefault:"1"`
	MaxID    int `env:"MAX_ID" envDefault:"20000"`
}

func (t TenantEnv) picker() keygen.TenantPicker {
	return keygen.TenantPicker{Fixed: t.TenantID, Min: t.MinID, Max: t.MaxID}
}

// TenantSettingsEnv configures the tenant-settings lookup scripts.
type TenantSettingsEnv struct {
	Target
	TenantEnv
	ArrivalEnv
}

func tenantSettingsExec(client *httpx.Client, tenants keygen.TenantPicker, check string) loadtest.IterationFunc {
	return func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
		id := tenants.Pick(it.Rand)
		res := client.Do(ctx, httpx.Request{
			Method:  http.MethodGet,
			Path:    tenantSettingsPath + strconv.Itoa(id),
			Name:    tenantSettingsName,
			Timeout: 2 * time.Second,
		})
		res.Check(check, res.StatusCode == http.StatusOK)
		return res
	}
}

func buildTenantSettings(name string, e Env, d Deps, cfg TenantSettingsEnv, def func(TenantSettingsEnv) *profile.Options, check string) (*loadtest.Test, error) {
	if err := parseEnv(e, &cfg); err != nil {
		return nil, err
	}
	tenants := cfg.picker()
	if err := tenants.Validate(); err != nil {
		return nil, err
	}
	opts := d.options(def(cfg))
	client, err := newClient(cfg.Target, opts)
	if err != nil {
		return nil, err
	}
	return &loadtest.Test{
		Name:    name,
		Options: opts,
		Exec:    tenantSettingsExec(client, tenants, check),
	}, nil
}

func tenantScripts() []Script {
	return []Script{
		{
			Name:        "tenant-settings-capacity",
			Description: "ramp GET /v1/otp/tenant-settings/{id} up to 4000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				return buildTenantSettings("tenant-settings-capacity", e, d, TenantSettingsEnv{},
					func(TenantSettingsEnv) *profile.Options {
						return rampingVUs("tenant-settings-capacity",
							map[string][]string{
								"http_req_failed":   {"rate<0.01"},
								"http_req_duration": {"p(95)<500", "p(99)<1000"},
							},
							capacityStages()...)
					}, tenantSettingsCheck)
			},
		},
		{
			Name:        "tenant-settings-constant-arrival-rate",
			Description: "sustain RATE req/s (default 10000) against GET /v1/otp/tenant-settings/{id}",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				cfg := TenantSettingsEnv{ArrivalEnv: ArrivalEnv{Rate: 10000, MaxVUs: 5000}}
				return buildTenantSettings("tenant-settings-constant-arrival-rate", e, d, cfg,
					func(cfg TenantSettingsEnv) *profile.Options {
						return cfg.options("tenant-settings-constant-arrival-rate", map[string][]string{
							"http_req_failed":    {"rate<0.01"},
							"http_req_duration":  {"p(95)<50", "p(99)<150"},
							"dropped_iterations": {"count==0"},
						})
					}, "status 200")
			},
		},
		{
			Name:        "tenant-settings-insert-capacity",
			Description: "ramp POST /v1/otp/tenant-settings-insert-benchmark up to 5000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg Target
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				opts := d.options(rampingVUs("tenant-settings-insert-capacity",
					map[string][]string{
						"http_req_failed":   {"rate<0.01"},
						"http_req_duration": {"p(95)<500", "p(99)<1000"},
					},
					profile.S(15*sec, 100),
					profile.S(30*sec, 500),
					profile.S(30*sec, 2000),
					profile.S(30*sec, 3000),
					profile.S(30*sec, 4000),
					profile.S(30*sec, 5000),
					profile.S(30*sec, 3000),
					profile.S(20*sec, 0),
				))
				client, err := newClient(cfg, opts)
				if err != nil {
					return nil, err
				}
				return &loadtest.Test{
					Name:    "tenant-settings-insert-capacity",
					Options: opts,
					Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
						res := client.Do(ctx, httpx.Request{
							Method:  http.MethodPost,
							Path:    tenantInsertPath,
							Name:    "POST " + tenantInsertPath,
							Timeout: 3 * time.Second,
						})
						res.Check("status is 200", res.StatusCode == http.StatusOK)
						return res
					},
				}, nil
			},
		},
	}
}
