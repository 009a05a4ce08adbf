package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mini-api/internal/config"
	"mini-api/internal/configfile"
	"mini-api/internal/store"
)

const (
	columnsList = "list"
	columnsAll  = "all"
)

type configFromDatabaseOptions struct {
	exclude []string
	columns string
}

func newConfigFromDatabaseCmd(root *rootOptions) *cobra.Command {
	opts := &configFromDatabaseOptions{}
	cmd := &cobra.Command{
		Use:   "config-from-database",
		Short: "Replace the configured endpoints with one endpoint per database table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigFromDatabase(cmd, root, opts)
		},
	}
	addConfigFromDatabaseFlags(cmd.Flags(), opts)
	return cmd
}

func addConfigFromDatabaseFlags(fs *pflag.FlagSet, opts *configFromDatabaseOptions) {
	fs.StringSliceVar(&opts.exclude, "exclude", nil, "tables to skip, comma separated (e.g. migrations,sessions)")
	fs.StringVar(&opts.columns, "columns", columnsList, `columns per table: "list" writes every column, "all" writes ['*']`)
}

func runConfigFromDatabase(cmd *cobra.Command, root *rootOptions, opts *configFromDatabaseOptions) error {
	cfg, err := config.Load(root.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.File == "" {
		return fmt.Errorf("%s.yaml not found, create it first", config.DefaultConfigName)
	}

	s, err := store.New(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer s.Close()

	endpoints, err := tableEndpoints(cmd.Context(), s, opts.exclude, opts.columns == columnsAll)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(endpoints) == 0 {
		fmt.Fprintln(out, "No tables found (or all excluded).")
		return nil
	}

	if err := configfile.ReplaceEndpoints(cfg.File, endpoints); err != nil {
		return err
	}

	tables := make([]string, len(endpoints))
	for i, ne := range endpoints {
		tables[i] = ne.Endpoint.Table
	}
	fmt.Fprintf(out, "%d endpoint(s) written to %s.\n", len(endpoints), cfg.File)
	fmt.Fprintf(out, "Tables: %s\n", strings.Join(tables, ", "))
	return nil
}

// tableEndpoints builds one endpoint per table. With wildcard set every
// endpoint selects ['*'] instead of listing the table's columns.
func tableEndpoints(ctx context.Context, s *store.Store, exclude []string, wildcard bool) ([]configfile.NamedEndpoint, error) {
	tables, err := s.Dialect.ListTables(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		if t = strings.TrimSpace(t); t != "" {
			skip[t] = true
		}
	}

	var out []configfile.NamedEndpoint
	for _, table := range tables {
		key := configfile.KeySlug(table)
		if skip[table] || key == "" {
			continue
		}
		columns := []string{"*"}
		if !wildcard {
			columns, err = s.Dialect.GetColumns(ctx, s.DB, table)
			if err != nil {
				return nil, fmt.Errorf("list columns of %s: %w", table, err)
			}
			columns = uniqueStrings(columns)
		}
		out = append(out, configfile.NamedEndpoint{
			Key: key,
			Endpoint: config.EndpointConfig{
				Route:   configfile.RouteSlug(table),
				Table:   table,
				Columns: columns,
			},
		})
	}
	return out, nil
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
