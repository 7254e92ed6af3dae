package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/source"
	"github.com/wbrown/janus-federation/federation/source/sqlsource"
	"github.com/wbrown/janus-federation/federation/storage"
)

// LoadOptions holds flags for the load command
type LoadOptions struct {
	*RootOptions
	Badger string
	Driver string
	DSN    string
	Table  string
	Create bool
}

// NewLoadCommand creates the load command
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <triples-file>...",
		Short: "Load triple files into a badger directory or a SQL triple table",
		Long: `Load triple files into a badger directory or a SQL triple table.

Triple files hold one triple per line in term notation:
  <alice> <knows> <bob> .
  <alice> <name> "Alice"@en .

Example:
  fedquery load --badger ./data/people people.nt
  fedquery load --driver sqlite --dsn ./ages.db --create ages.nt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.Badger == "") == (opts.DSN == "") {
				return fmt.Errorf("exactly one of --badger or --dsn is required")
			}
			var triples []federation.Triple
			for _, path := range args {
				ts, err := readTriplesFile(path)
				if err != nil {
					return err
				}
				triples = append(triples, ts...)
			}

			var err error
			if opts.Badger != "" {
				err = loadBadger(opts.Badger, triples)
			} else {
				err = loadSQL(cmd.Context(), opts, triples)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d triples\n", len(triples))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Badger, "badger", "", "badger database directory")
	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite", "SQL driver (sqlite, mysql, postgres)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "SQL data source name")
	cmd.Flags().StringVar(&opts.Table, "table", "triples", "SQL triple table")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the SQL triple table first")
	return cmd
}

func readTriplesFile(path string) ([]federation.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	triples, err := source.ReadTriples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return triples, nil
}

func loadBadger(dir string, triples []federation.Triple) error {
	store, err := storage.NewBadgerStore(dir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	return store.Assert(triples)
}

func loadSQL(ctx context.Context, opts *LoadOptions, triples []federation.Triple) error {
	src, err := sqlsource.Open(ctx, sqlsource.Config{
		Name:   "load",
		Driver: opts.Driver,
		DSN:    opts.DSN,
		Table:  opts.Table,
	})
	if err != nil {
		return err
	}
	defer src.Close()
	if opts.Create {
		if err := src.CreateTable(ctx); err != nil {
			return err
		}
	}
	return src.Load(ctx, triples)
}
