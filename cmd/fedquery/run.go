package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation/executor"
)

// NewRunCommand creates the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		showPlan bool
		timeout  time.Duration
		maxWidth int
	)

	cmd := &cobra.Command{
		Use:   "run <query.yaml>",
		Short: "Plan a query file, execute it and print the solutions",
		Long: `Plan a query file, execute it against the configured sources and print
the solutions as a markdown table.

Example:
  fedquery run --config fedquery.yaml friends.yaml
  fedquery run -v --plan friends.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			env, err := openEnvironment(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			_, planned, err := planQueryFile(env, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showPlan {
				printPlan(out, planned)
				fmt.Fprintln(out)
			}

			exec := executor.NewExecutor(env.config.ExecutorOptions())
			exec.SetCollector(env.collector)

			start := time.Now()
			results, err := exec.Execute(ctx, planned)
			if err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}
			tf := executor.NewTableFormatter()
			if maxWidth > 0 {
				tf.MaxWidth = maxWidth
			}
			table, err := tf.FormatResults(results)
			if err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}
			fmt.Fprint(out, withTiming(table, time.Since(start)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPlan, "plan", false, "print the planned tree before the results")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the query after this long (0 = no limit)")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "truncate cell values to this many characters")
	return cmd
}

// withTiming appends the elapsed time to the row count line of a table
func withTiming(table string, elapsed time.Duration) string {
	lines := strings.Split(table, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "_") && strings.HasSuffix(lines[i], "rows_") {
			lines[i] = strings.TrimSuffix(lines[i], "_") +
				fmt.Sprintf(" (%.3fms)_", float64(elapsed.Microseconds())/1000.0)
			break
		}
	}
	return strings.Join(lines, "\n")
}
