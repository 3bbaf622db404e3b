package main

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/FairForge/otpload/internal/keygen"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the identifiers the scripts generate",
	}
	cmd.AddCommand(newKeysSeedCmd())
	cmd.AddCommand(newKeysPhonesCmd())
	return cmd
}

func newKeysSeedCmd() *cobra.Command {
	var (
		tenant, phone, code string
		count, from         int
		values              bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the redis seed keys redis-get-capacity writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 0 || from < 0 {
				return errors.New("--count and --from must not be negative")
			}
			value := keygen.OTPValue(tenant, phone, code)
			for i := from; i < from+count; i++ {
				key := keygen.SeedKey(tenant, phone, i)
				if values {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, value)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "1", "tenant id")
	cmd.Flags().StringVar(&phone, "phone", "09120000000", "phone number")
	cmd.Flags().StringVar(&code, "code", "123456", "OTP code stored in values")
	cmd.Flags().IntVar(&count, "count", 10, "number of keys")
	cmd.Flags().IntVar(&from, "from", 0, "first seed index")
	cmd.Flags().BoolVar(&values, "values", false, "print the stored JSON value too")
	return cmd
}

func newKeysPhonesCmd() *cobra.Command {
	var (
		prefix      string
		digits      int
		count       int
		from        int64
		random      bool
		randSeed    int64
		vu          int
		perIterStep bool
	)

	cmd := &cobra.Command{
		Use:   "phones",
		Short: "Print phone numbers from a phone space",
		Long: "Print phone numbers from a phone space: sequential from --from, random\n" +
			"with --random, or per VU iteration with --vu as mongo-set-capacity does.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			space := keygen.PhoneSpace{Prefix: prefix, Digits: digits}
			if err := space.Validate(); err != nil {
				return err
			}
			r := rand.New(rand.NewSource(randSeed))
			for i := 0; i < count; i++ {
				var p string
				switch {
				case random:
					p = space.Random(r)
				case perIterStep:
					p = space.FromIndex(keygen.IterationIndex(vu, int64(i)))
				default:
					p = space.FromIndex(from + int64(i))
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "0912", "phone prefix")
	cmd.Flags().IntVar(&digits, "digits", 7, "suffix width")
	cmd.Flags().IntVar(&count, "count", 10, "number of phones")
	cmd.Flags().Int64Var(&from, "from", 0, "first index for sequential output")
	cmd.Flags().BoolVar(&random, "random", false, "draw phones uniformly")
	cmd.Flags().Int64Var(&randSeed, "seed", 1, "random seed for --random")
	cmd.Flags().IntVar(&vu, "vu", 1, "VU id for --per-vu")
	cmd.Flags().BoolVar(&perIterStep, "per-vu", false, "derive phones from VU and iteration")
	return cmd
}
