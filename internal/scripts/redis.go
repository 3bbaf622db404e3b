package scripts

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/keygen"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/seed"
)

const (
	redisSetPath = "/v1/redis/set"
	redisGetPath = "/v1/redis/get"
	redisTimeout = 2 * time.Second
)

// RedisEnv configures the redis scripts.
type RedisEnv struct {
	Target
	TenantID    string `env:"TENANT_ID" envDefault:"1"`
	PhoneNumber string `env:"PHONE_NUMBER" envDefault:"09120000000"`
	OTPCode     string `env:"OTP_CODE" envDefault:"123456"`
	SeedKeys    int    `env:"SEED_KEYS" envDefault:"5000"`
}

// seeded is the setup data handed to main-phase iterations.
type seeded struct {
	Keys int
}

func redisSet(key, value string) httpx.Request {
	return httpx.Request{
		Method:  http.MethodPost,
		Path:    redisSetPath,
		Query:   url.Values{"key": {key}, "value": {value}},
		Timeout: redisTimeout,
	}
}

func redisScripts() []Script {
	return []Script{
		{
			Name:        "redis-set-capacity",
			Description: "ramp POST /v1/redis/set with random 0912 phones up to 4000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg RedisEnv
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				def := rampingVUs("redis-set-capacity",
					map[string][]string{
						"http_req_failed":   {"rate<0.01"},
						"http_req_duration": {"p(95)<500", "p(99)<1000"},
					},
					capacityStages()...)
				def.DiscardResponseBodies = true
				opts := d.options(def)
				client, err := newClient(cfg.Target, opts)
				if err != nil {
					return nil, err
				}

				phones := keygen.DefaultPhoneSpace()
				return &loadtest.Test{
					Name:    "redis-set-capacity",
					Options: opts,
					Exec: func(ctx context.Context, it *loadtest.Iteration) loadtest.Result {
						phone := phones.Random(it.Rand)
						res := client.Do(ctx, redisSet(
							keygen.OTPKey(cfg.TenantID, phone),
							keygen.OTPValue(cfg.TenantID, phone, cfg.OTPCode),
						))
						res.Check("status is 200", res.StatusCode == http.StatusOK)
						return res
					},
				}, nil
			},
		},
		{
			Name:        "redis-get-capacity",
			Description: "seed SEED_KEYS keys, then ramp GET /v1/redis/get up to 4000 VUs",
			build: func(e Env, d Deps) (*loadtest.Test, error) {
				var cfg RedisEnv
				if err := parseEnv(e, &cfg); err != nil {
					return nil, err
				}
				if cfg.SeedKeys < 1 {
					return nil, errors.New("SEED_KEYS must be at least 1")
				}
				def := rampingVUs("redis-get-capacity", mainPhaseThresholds(), capacityStages()...)
				def.DiscardResponseBodies = true
				opts := d.options(def)
				client, err := newClient(cfg.Target, opts)
				if err != nil {
					return nil, err
				}

				value := keygen.OTPValue(cfg.TenantID, cfg.PhoneNumber, cfg.OTPCode)
				logger := d.logger()
				return &loadtest.Test{
					Name:    "redis-get-capacity",
					Options: opts,
					Setup: func(ctx context.Context, rec loadtest.Recorder) (interface{}, error) {
						err := seed.New(client, rec, logger).Seed(ctx, cfg.SeedKeys, func(i int) httpx.Request {
							req := redisSet(keygen.SeedKey(cfg.TenantID, cfg.PhoneNumber, i), value)
							req.Tags = loadtest.Tags{"op": "redis_seed"}
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
						key := keygen.SeedKey(cfg.TenantID, cfg.PhoneNumber, keygen.SeedIndex(it.Rand, n))
						res := client.Do(ctx, httpx.Request{
							Method:  http.MethodGet,
							Path:    redisGetPath,
							Query:   url.Values{"key": {key}},
							Timeout: redisTimeout,
							Tags:    loadtest.Tags{"phase": "main", "op": "redis_get"},
						})
						res.Check("status is 200", res.StatusCode == http.StatusOK)
						return res
					},
				}, nil
			},
		},
	}
}
