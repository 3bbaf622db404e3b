package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/FairForge/otpload/internal/scripts"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		env    []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <script>",
		Short: "Write a script's load profile as YAML",
		Long: "Write a script's load profile as YAML. Edit it and pass it back with\n" +
			"`otpload run <script> --profile file.yaml`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := scripts.Lookup(args[0])
			if err != nil {
				return err
			}
			vals, err := a.scriptEnv(env)
			if err != nil {
				return err
			}
			test, err := script.Build(vals, scripts.Deps{Logger: a.logger})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				defer f.Close()
				w = f
			}
			return test.Options.Write(w)
		},
	}

	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "script environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
