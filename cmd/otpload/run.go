package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FairForge/otpload/internal/httpx"
	"github.com/FairForge/otpload/internal/loadtest"
	"github.com/FairForge/otpload/internal/metrics"
	"github.com/FairForge/otpload/internal/profile"
	"github.com/FairForge/otpload/internal/report"
	"github.com/FairForge/otpload/internal/scripts"
)

type runOptions struct {
	env           []string
	profilePath   string
	vus           int
	duration      time.Duration
	preflight     bool
	summaryExport string
	metricsAddr   string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a built-in load test",
		Long: "Run a built-in load test and print its summary. The process exits with\n" +
			"code 99 when any threshold fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.summaryExport == "" {
				opts.summaryExport = a.cfg.SummaryExport
			}
			if opts.metricsAddr == "" {
				opts.metricsAddr = a.cfg.MetricsAddr
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.env, "env", "e", nil, "script environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&opts.profilePath, "profile", "", "YAML profile replacing the script's traffic shape and thresholds")
	cmd.Flags().IntVar(&opts.vus, "vus", 0, "run with this many constant VUs instead of the script's profile")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "duration for --vus")
	cmd.Flags().BoolVar(&opts.preflight, "preflight", false, "check GET /health on BASE_URL before starting")
	cmd.Flags().StringVar(&opts.summaryExport, "summary-export", "", "write the summary to a .json/.yaml file, optionally .gz or .zst")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /status on this address during the run")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, name string, opts runOptions) error {
	script, err := scripts.Lookup(name)
	if err != nil {
		return err
	}
	env, err := a.scriptEnv(opts.env)
	if err != nil {
		return err
	}

	override, err := opts.override(script, env, a.logger)
	if err != nil {
		return err
	}
	test, err := script.Build(env, scripts.Deps{Logger: a.logger, Profile: override})
	if err != nil {
		return err
	}

	if opts.preflight {
		if err := preflight(ctx, env); err != nil {
			return err
		}
		a.logger.Info("preflight passed")
	}

	m := metrics.New()
	runner := loadtest.NewRunner(a.logger, m)

	summary, err := runWithStatus(ctx, runner, test, m, opts.metricsAddr, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprint(out, summary.GenerateReport())

	if opts.summaryExport != "" {
		if err := report.Export(opts.summaryExport, report.New(script.Name, test.Options, summary)); err != nil {
			return err
		}
		a.logger.Info("summary exported", zap.String("path", opts.summaryExport))
	}

	if !summary.ThresholdsPassed() {
		failed := make([]string, 0, len(summary.FailedThresholds()))
		for _, t := range summary.FailedThresholds() {
			failed = append(failed, t.Selector+" "+t.Expression)
		}
		return &exitCodeError{
			code: exitThresholdsFailed,
			err:  fmt.Errorf("thresholds failed: %s", strings.Join(failed, ", ")),
		}
	}
	return nil
}

// runWithStatus runs the test, serving live metrics alongside it when
// addr is set. The status server stops once the run returns.
func runWithStatus(ctx context.Context, runner *loadtest.Runner, test *loadtest.Test, m *metrics.Metrics, addr string, logger *zap.Logger) (*loadtest.Summary, error) {
	if addr == "" {
		return runner.Run(ctx, test)
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	srv := metrics.NewServer(addr, test.Name, m, runner, logger)
	g.Go(func() error {
		return srv.Run(serverCtx)
	})

	var summary *loadtest.Summary
	g.Go(func() error {
		defer stopServer()
		var err error
		summary, err = runner.Run(gctx, test)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// override works out the profile replacing the script's own, if any.
func (o runOptions) override(s scripts.Script, env scripts.Env, logger *zap.Logger) (*profile.Options, error) {
	var opts *profile.Options
	if o.profilePath != "" {
		loaded, err := profile.Load(o.profilePath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}
	if o.vus == 0 && o.duration == 0 {
		return opts, nil
	}
	if o.vus < 0 {
		return nil, errors.New("--vus must be positive")
	}
	if o.duration <= 0 {
		return nil, errors.New("--vus needs a positive --duration")
	}

	if opts == nil {
		test, err := s.Build(env, scripts.Deps{Logger: logger})
		if err != nil {
			return nil, err
		}
		opts = test.Options
	}
	vus := o.vus
	if vus == 0 {
		vus = 1
	}
	opts = opts.Clone()
	opts.Scenario = profile.ConstantVUs(vus, o.duration)
	return opts, nil
}

func preflight(ctx context.Context, env scripts.Env) error {
	base, err := scripts.BaseURL(env)
	if err != nil {
		return err
	}
	client, err := httpx.New(httpx.Config{BaseURL: base})
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	return nil
}
