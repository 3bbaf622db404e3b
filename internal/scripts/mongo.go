package scripts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/keygen"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
	"github.com/FairForge/otpload/internal/seed"
)

const (
	mongoSetPath = "/v1/mongo/set"
	mongoGetPath = "/v1/mongo/get"
)

// MongoSetEnv configures mongo-set-capacity.
type MongoSetEnv struct {
	Target
	Tenant      string `env:"TENANT" envDefault:"t1"`
	TTL         string `env:"TTL" envDefault:"120s"`
	PhonePrefix string `env:"PHONE_PREFIX" envDefault:"98912"`
	Value       string `env:"VALUE" envDefault:"123456"`
}

// MongoGetEnv configures mongo-get-capacity.
type MongoGetEnv struct {
	Target
	TenantID        string        `env:"TENANT_ID" envDefault:"1"`
	PhonePrefix     string        `env:"PHONE_PREFIX" envDefault:"0912"`
	OTPCode         string        `env:"OTP_CODE" envDefault:"123456"`
	SeedKeys        int           `env:"SEED_KEYS" envDefault:"100000"`
	CheckSampleRate float64       `env:"CHECK_SAMPLE_RATE" envDefault:"0.01"`
	TTL             string        `env:"TTL" envDefault:"30m"`
	ReqTimeout      time.Duration `env:"REQ_TIMEOUT" envDefault:"2s"`
}

func mongoSet(tenant, phone, value, ttl string) httpx.Request {
	return httpx.Request{
		Method: http.MethodPost,
		Path:   mongoSetPath,
		Query: url.Values{
			"tenant": {tenant},
			"phone":  {phone},
			"value":  {value},
			"ttl":    {ttl},
		},
	}
}

func mongoScripts() []Script {
	return []Script{
		{
			Name:        "mongo-set-capacity",
			Description: "ramp POST /v1/mongo/set with per-VU phones up to 4000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg MongoSetEnv
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				phones := keygen.PhoneSpace{Prefix: cfg.PhonePrefix, Digits: 7}
				if err := phones.Validate(); err != nil {
					return nil, err
				}
				def := rampingVUs("mongo-set-capacity", mainPhaseThresholds(), capacityStages()...)
				def.DiscardResponseBodies = true
				opts := d.options(def)
				client, err := newClient(cfg.Target, opts)
				if err != nil {
					return nil, err
				}

				return &loadtest.Test{
					Name:    "mongo-set-capacity",
					Options: opts,
					Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
						phone := phones.FromIndex(keygen.IterationIndex(it.VU, it.Iter))
						req := mongoSet(cfg.Tenant, phone, cfg.Value, cfg.TTL)
						req.Name = "POST " + mongoSetPath
						req.Tags = loadtest.Tags{"phase": "main"}
						res := client.Do(ctx, req)
						res.Check("status is 200", res.StatusCode == http.StatusOK)
						return res
					},
				}, nil
			},
		},
		{
			Name:        "mongo-get-capacity",
			Description: "seed SEED_KEYS phones, then ramp GET /v1/mongo/get up to 4000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg MongoGetEnv
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				phones := keygen.PhoneSpace{Prefix: cfg.PhonePrefix, Digits: 7}
				if err := phones.Validate(); err != nil {
					return nil, err
				}
				if cfg.SeedKeys < 1 || int64(cfg.SeedKeys) > phones.Size() {
					return nil, fmt.Errorf("SEED_KEYS must be in [1, %d], got %d", phones.Size(), cfg.SeedKeys)
				}
				sampler := keygen.Sampler{Rate: cfg.CheckSampleRate}
				if err := sampler.Validate(); err != nil {
					return nil, err
				}

				def := rampingVUs("mongo-get-capacity", mainPhaseThresholds(), capacityStages()...)
				def.DiscardResponseBodies = true
				def.SetupTimeout = profile.Duration(15 * time.Minute)
				opts := d.options(def)
				client, err := newClient(cfg.Target, opts)
				if err != nil {
					return nil, err
				}

				value := keygen.OTPValue(cfg.TenantID, phones.First(), cfg.OTPCode)
				logger := d.logger()
				return &loadtest.Test{
					Name:    "mongo-get-capacity",
					Options: opts,
					Setup: func(ctx context.Context, rec loadtest.Recorder) (interface{}, error) {
						err := seed.New(client, rec, logger).Seed(ctx, cfg.SeedKeys, func(i int) httpx.Request {
							req := mongoSet(cfg.TenantID, phones.FromIndex(int64(i)), value, cfg.TTL)
							req.Timeout = cfg.ReqTimeout
							req.Name = "POST " + mongoSetPath + " (seed)"
							req.Tags = loadtest.Tags{"op": "mongo_seed"}
							return req
						})
						if err != nil {
							return nil, err
						}
						return seeded{Keys: cfg.SeedKeys}, nil
					},
					Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
						n := cfg.SeedKeys
						if s, ok := it.Data.(seeded); ok {
							n = s.Keys
						}
						phone := phones.FromIndex(int64(keygen.SeedIndex(it.Rand, n)))
						res := client.Do(ctx, httpx.Request{
							Method:  http.MethodGet,
							Path:    mongoGetPath,
							Query:   url.Values{"tenant": {cfg.TenantID}, "phone": {phone}},
							Timeout: cfg.ReqTimeout,
							Name:    "GET " + mongoGetPath,
							Tags:    loadtest.Tags{"phase": "main", "op": "mongo_get"},
						})
						if sampler.Sample(it.Rand) {
							res.Check("status is 200", res.StatusCode == http.StatusOK)
						}
						return res
					},
				}, nil
			},
		},
	}
}
