// Package cmd provides the command-line interface for Sequence.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// envDefaults maps environment variables to the flags they provide defaults
// for. Values may come from a .env file in the working directory.
var envDefaults = map[string]string{
	"SEQUENCE_STOP_TIME":    "stop-time",
	"SEQUENCE_SEED":         "seed",
	"SEQUENCE_MONITOR_PORT": "monitor-port",
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sequence",
		Short: "Sequence runs discrete event simulations.",
		Long: `Sequence runs discrete event simulations. Currently, it ` +
			`simulates a pair of nodes pinging each other over a link with ` +
			`a random delay.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is fine.
			_ = godotenv.Load()

			return applyEnvDefaults(cmd.Flags())
		},
	}

	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

// applyEnvDefaults sets the flags that are not given on the command line from
// the environment.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	for env, name := range envDefaults {
		value, ok := os.LookupEnv(env)
		if !ok || value == "" {
			continue
		}

		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}

		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", env, value, err)
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
