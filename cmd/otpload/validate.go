package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FairForge/otpload/internal/profile"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile.yaml>...",
		Short: "Check load profile files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				opts, err := profile.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
					continue
				}
				if _, err := profile.ParseThresholds(opts.Thresholds); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s, %s)\n", path, opts.Scenario.Executor, opts.Scenario.TotalDuration())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profiles invalid", failed, len(args))
			}
			return nil
		},
	}
}
