package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/otpload/internal/config"
	"github.com/FairForge/otpload/internal/logging"
)

// app is the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "otpload",
		Short:         "Load tests for the OTP service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error (env OTPLOAD_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: console|json (env OTPLOAD_LOG_FORMAT)")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newKeysCmd())
	cmd.AddCommand(newCompareCmd())
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(config.Environ())
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// scriptEnv resolves the environment for a script run.
func (a *app) scriptEnv(overrides []string) (map[string]string, error) {
	extra, err := config.ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	return config.ResolveEnv(config.Environ(), a.cfg.EnvFiles, extra)
}
