package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "mini-api",
		Short:        "Read-only JSON API over database tables and models",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./mini-api.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateKeyCmd(),
		newConfigFromDatabaseCmd(opts),
	)
	return cmd
}
