package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FairForge/otpload/internal/scripts"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in load tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tEXECUTOR\tDESCRIPTION")
			for _, s := range scripts.All() {
				executor := "-"
				if test, err := s.Build(nil, scripts.Deps{}); err == nil {
					executor = string(test.Options.Scenario.Executor)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, executor, s.Description)
			}
			return tw.Flush()
		},
	}
}
