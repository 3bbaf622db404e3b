// Package config loads otpload's own settings and resolves the
// environment handed to load test scripts.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/FairForge/otpload/internal/logging"
)

// Config is the tool configuration. Flags override it.
type Config struct {
	LogLevel      string   `env:"OTPLOAD_LOG_LEVEL" envDefault:"info"`
	LogFormat     string   `env:"OTPLOAD_LOG_FORMAT" envDefault:"console"`
	MetricsAddr   string   `env:"OTPLOAD_METRICS_ADDR"`
	SummaryExport string   `env:"OTPLOAD_SUMMARY_EXPORT"`
	EnvFiles      []string `env:"OTPLOAD_ENV_FILES" envDefault:".env,.env.local" envSeparator:","`
}

// Load reads the configuration from environ, typically Environ().
func Load(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Logging().Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() *logging.LoggerConfig {
	return &logging.LoggerConfig{Level: c.LogLevel, Format: c.LogFormat}
}
