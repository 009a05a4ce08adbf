package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mini-api/internal/auth"
	"mini-api/internal/config"
	"mini-api/internal/configfile"
)

type generateKeyOptions struct {
	show    bool
	force   bool
	length  int
	envFile string
}

func newGenerateKeyCmd() *cobra.Command {
	opts := &generateKeyOptions{}
	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate an API key and store it in .env",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateKey(cmd, opts)
		},
	}
	addGenerateKeyFlags(cmd.Flags(), opts)
	return cmd
}

func addGenerateKeyFlags(fs *pflag.FlagSet, opts *generateKeyOptions) {
	fs.BoolVar(&opts.show, "show", false, "print the key instead of writing it")
	fs.BoolVar(&opts.force, "force", false, "overwrite an existing key")
	fs.IntVar(&opts.length, "length", auth.DefaultKeyLength,
		fmt.Sprintf("key length, clamped to %d..%d", auth.MinKeyLength, auth.MaxKeyLength))
	fs.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file to write")
}

func runGenerateKey(cmd *cobra.Command, opts *generateKeyOptions) error {
	key, err := auth.GenerateKey(opts.length)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if opts.show {
		fmt.Fprintln(out, key)
		return nil
	}

	if err := configfile.WriteAPIKey(opts.envFile, key, opts.force); err != nil {
		if errors.Is(err, configfile.ErrEnvMissing) {
			return fmt.Errorf("%s not found", opts.envFile)
		}
		return err
	}
	fmt.Fprintf(out, "API key written to %s.\n", opts.envFile)
	fmt.Fprintf(out, "Key: %s\n", key)
	return nil
}
