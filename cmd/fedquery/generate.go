package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation/storage"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		size   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a badger database of synthetic OHLC price triples",
		Long: `Build a badger database of synthetic OHLC price triples for profiling.

Sizes:
  default  10 symbols, 30 days, hourly bars
  medium   50 symbols, 30 days, hourly bars
  large    500 symbols, 365 days, minute bars`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg storage.TestDataConfig
			switch size {
			case "default":
				cfg = storage.DefaultOHLCConfig()
			case "medium":
				cfg = storage.MediumOHLCConfig()
			case "large":
				cfg = storage.LargeOHLCConfig()
			default:
				return fmt.Errorf("unknown size %q (use default, medium or large)", size)
			}
			if output != "" {
				cfg.OutputPath = output
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Building test database: %s\n", cfg.OutputPath)
			fmt.Fprintf(out, "  Symbols: %d\n", cfg.NumSymbols)
			fmt.Fprintf(out, "  Days: %d\n", cfg.NumDays)
			fmt.Fprintf(out, "  Bars/day: %d\n", cfg.BarsPerDay)
			fmt.Fprintf(out, "  Total bars: %d\n\n", cfg.NumSymbols*cfg.NumDays*cfg.BarsPerDay)

			store, err := storage.BuildTestDatabase(cfg, out)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(out, "\nDone. Add it to a configuration as:\n")
			fmt.Fprintf(out, "  - name: prices\n    type: badger\n    path: %s\n", cfg.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "default", "dataset size: default, medium or large")
	cmd.Flags().StringVarP(&output, "output", "o", "", "database directory (default depends on size)")
	return cmd
}
