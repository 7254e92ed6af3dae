package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/config"
	"github.com/wbrown/janus-federation/federation/executor"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCommand creates the fedquery command tree
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fedquery",
		Short: "Plan and run federated triple-pattern queries",
		Long: `fedquery plans operator trees written as YAML query files and runs
them against the memory, badger, SQL and HTTP sources of a configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print planner and executor annotations to stderr")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "fedquery.yaml", "configuration file")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))

	return cmd
}

// environment is the configuration with its sources opened
type environment struct {
	config    *config.Config
	sources   *config.Sources
	collector *annotations.Collector
}

func openEnvironment(ctx context.Context, opts *RootOptions) (*environment, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	srcs, err := config.OpenSources(ctx, cfg.Sources)
	if err != nil {
		return nil, err
	}

	var handler annotations.Handler
	if opts.Verbose {
		handler = annotations.StderrHandler()
	}
	collector := annotations.NewCollector(handler)
	srcs.SetCollector(collector)
	return &environment{config: cfg, sources: srcs, collector: collector}, nil
}

func (env *environment) Close() error {
	return env.sources.Close()
}

func (env *environment) source(name string) (executor.Source, error) {
	src, ok := env.sources.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q (configured: %v)", name, env.sources.Names())
	}
	return src, nil
}
