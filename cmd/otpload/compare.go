package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FairForge/otpload/internal/report"
)

func newCompareCmd() *cobra.Command {
	var tolerances []string

	cmd := &cobra.Command{
		Use:   "compare <base> <current>",
		Short: "Compare two exported summaries and flag regressions",
		Long: "Compare two files written by `run --summary-export`. Throughput, latency,\n" +
			"error rate and dropped iterations regress when they move the wrong way by\n" +
			"more than the tolerance (default 10%). Exits 1 on regression.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp := report.NewComparer()
			for _, t := range tolerances {
				metric, pct, err := parseTolerance(t)
				if err != nil {
					return err
				}
				cmp.SetTolerance(metric, pct)
			}

			base, err := report.Load(args[0])
			if err != nil {
				return err
			}
			current, err := report.Load(args[1])
			if err != nil {
				return err
			}

			result := cmp.Compare(base, current)
			fmt.Fprint(cmd.OutOrStdout(), result.GenerateReport())
			if result.OverallStatus == report.StatusRegression {
				return fmt.Errorf("regression in %s", strings.Join(result.Regressions, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&tolerances, "tolerance", nil, "per-metric tolerance METRIC=PERCENT, e.g. p95_latency_ms=20")
	return cmd
}

func parseTolerance(s string) (string, float64, error) {
	metric, val, ok := strings.Cut(s, "=")
	if !ok || metric == "" {
		return "", 0, fmt.Errorf("invalid tolerance %q, want METRIC=PERCENT", s)
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(val, "%"), 64)
	if err != nil || pct < 0 {
		return "", 0, fmt.Errorf("invalid tolerance %q: percent must be a non-negative number", s)
	}
	return metric, pct, nil
}
