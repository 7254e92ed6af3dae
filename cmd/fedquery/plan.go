package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation/config"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/planner"
)

// NewPlanCommand creates the plan command
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var showInput bool

	cmd := &cobra.Command{
		Use:   "plan <query.yaml>",
		Short: "Print the planned operator tree of a query file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			input, planned, err := planQueryFile(env, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showInput {
				fmt.Fprintf(out, "Input:\n%s\n\n", input)
			}
			printPlan(out, planned)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showInput, "input", false, "also print the tree before planning")
	return cmd
}

// planQueryFile builds the tree of a query file and plans it
func planQueryFile(env *environment, path string) (*plan.Tree, *plan.Tree, error) {
	qf, err := config.LoadQuery(path)
	if err != nil {
		return nil, nil, err
	}
	input, err := qf.Build(env.sources)
	if err != nil {
		return nil, nil, err
	}
	p := planner.NewPlanner(env.config.PlannerOptions())
	p.SetCollector(env.collector)
	planned, err := p.Plan(input)
	if err != nil {
		return nil, nil, fmt.Errorf("planning failed: %w", err)
	}
	return input, planned, nil
}

func printPlan(w io.Writer, t *plan.Tree) {
	fmt.Fprintf(w, "Plan:\n%s\n", t)
}
