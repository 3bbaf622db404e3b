// Package scripts holds the built-in load tests run by otpload. Each
// script reads its parameters from an environment map, the way a k6
// script reads __ENV, and builds a loadtest.Test.
package scripts

import (
	"errors"
	"fmt"
	"sort"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/profile"
)

// ErrUnknownScript is returned by Lookup for names not in the registry.
var ErrUnknownScript = errors.New("unknown script")

// Env is the resolved KEY=VALUE environment handed to a script.
type Env map[string]string

// Deps carries what a script needs besides its environment.
type Deps struct {
	Logger *zap.Logger
	// Profile replaces the script's own traffic shape and thresholds.
	Profile *profile.Options
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// options returns the profile a script runs with: the override when one
// was given, else the script's default.
func (d Deps) options(def *profile.Options) *profile.Options {
	if d.Profile == nil {
		return def
	}
	opts := d.Profile.Clone()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	return opts
}

// Script is a named, buildable load test.
type Script struct {
	Name        string
	Description string
	build       func(e Env, d Deps) (*loadtest.Test, error)
}

// Build parses e and returns the runnable test.
func (s Script) Build(e Env, d Deps) (*loadtest.Test, error) {
	test, err := s.build(e, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	return test, nil
}

var registry = map[string]Script{}

func register(scripts ...Script) {
	for _, s := range scripts {
		if _, dup := registry[s.Name]; dup {
			panic("scripts: duplicate script " + s.Name)
		}
		registry[s.Name] = s
	}
}

func init() {
	register(helloScripts()...)
	register(otpScripts()...)
	register(tenantScripts()...)
	register(redisScripts()...)
	register(mongoScripts()...)
}

// All returns every built-in script sorted by name.
func All() []Script {
	out := make([]Script, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a script by name.
func Lookup(name string) (Script, error) {
	s, ok := registry[name]
	if !ok {
		return Script{}, fmt.Errorf("%w: %q", ErrUnknownScript, name)
	}
	return s, nil
}

// Target is the backend every script talks to.
type Target struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

// BaseURL returns the backend URL scripts built from e will target.
func BaseURL(e Env) (string, error) {
	var t Target
	if err := parseEnv(e, &t); err != nil {
		return "", err
	}
	return t.BaseURL, nil
}

// parseEnv fills cfg from e only. A nil Environment would make the env
// package read the process environment instead.
func parseEnv(e Env, cfg interface{}) error {
	if e == nil {
		e = Env{}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: e}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func newClient(t Target, opts *profile.Options) (*httpx.Client, error) {
	return httpx.New(httpx.Config{
		BaseURL:       t.BaseURL,
		DiscardBodies: opts.DiscardResponseBodies,
	})
}
