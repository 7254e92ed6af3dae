// Package config loads federation settings from YAML: planner and
// executor options and the sources queries are sent to.
//
// Example:
//
//	planner:
//	  join_ordering: true
//	  cache_size: 256
//	executor:
//	  hash_join_threshold: 5000
//	  close_timeout: 1s
//	sources:
//	  - name: people
//	    type: badger
//	    path: ./data/people
//	  - name: remote
//	    type: http
//	    url: http://localhost:8080
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/planner"
	"github.com/wbrown/janus-federation/federation/query"
)

// Config is the root of a configuration file
type Config struct {
	Planner  PlannerConfig  `yaml:"planner"`
	Executor ExecutorConfig `yaml:"executor"`
	Sources  []SourceConfig `yaml:"sources"`
}

// PlannerConfig overrides planner defaults. Unset steps stay enabled.
type PlannerConfig struct {
	CartesianDetection    *bool `yaml:"cartesian_detection,omitempty"`
	CartesianDistribution *bool `yaml:"cartesian_distribution,omitempty"`
	UnionDistribution     *bool `yaml:"union_distribution,omitempty"`
	FilterPushdown        *bool `yaml:"filter_pushdown,omitempty"`
	JoinOrdering          *bool `yaml:"join_ordering,omitempty"`
	FilterJoinInteraction *bool `yaml:"filter_join_interaction,omitempty"`
	FinalPushdown         *bool `yaml:"final_pushdown,omitempty"`
	CheckInvariants       bool  `yaml:"check_invariants,omitempty"`

	CacheSize int           `yaml:"cache_size,omitempty"` // 0 disables the plan cache
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`
}

// ExecutorConfig overrides executor defaults
type ExecutorConfig struct {
	HashJoinThreshold *int64        `yaml:"hash_join_threshold,omitempty"`
	AskDegenerateRows *int64        `yaml:"ask_degenerate_rows,omitempty"`
	BufferSize        int           `yaml:"buffer_size,omitempty"`
	CloseTimeout      time.Duration `yaml:"close_timeout,omitempty"`
	MaxUnionWorkers   int           `yaml:"max_union_workers,omitempty"`
}

// Source types
const (
	SourceMemory = "memory"
	SourceBadger = "badger"
	SourceSQL    = "sql"
	SourceHTTP   = "http"
)

// SourceConfig describes one source. Which fields apply depends on Type.
type SourceConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Capabilities restricts what the source declares (memory, badger, http)
	Capabilities []string `yaml:"capabilities,omitempty"`

	// memory: triples file to load; badger: database directory ("" = in memory)
	Path    string `yaml:"path,omitempty"`
	Triples string `yaml:"triples,omitempty"`

	// sql
	Driver      string `yaml:"driver,omitempty"`
	DSN         string `yaml:"dsn,omitempty"`
	Table       string `yaml:"table,omitempty"`
	ExactCounts bool   `yaml:"exact_counts,omitempty"`

	// http
	URL        string        `yaml:"url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RetryCount int           `yaml:"retry_count,omitempty"`

	PageSize     int           `yaml:"page_size,omitempty"`
	CloseTimeout time.Duration `yaml:"close_timeout,omitempty"`
}

// Load reads a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration, rejecting unknown fields
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that sources are named uniquely and typed correctly
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true

		switch s.Type {
		case SourceMemory, SourceBadger:
		case SourceSQL:
			if s.Driver == "" || s.DSN == "" {
				return fmt.Errorf("source %s: driver and dsn are required", s.Name)
			}
		case SourceHTTP:
			if s.URL == "" {
				return fmt.Errorf("source %s: url is required", s.Name)
			}
		default:
			return fmt.Errorf("source %s: unknown type %q", s.Name, s.Type)
		}
		if _, err := s.capabilities(); err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
	}
	if c.Planner.CacheSize < 0 {
		return fmt.Errorf("planner.cache_size must not be negative")
	}
	return nil
}

// capabilities parses the capability list; zero means not configured
func (s SourceConfig) capabilities() (query.Capabilities, error) {
	var caps query.Capabilities
	for _, name := range s.Capabilities {
		c, ok := query.ParseCapability(name)
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", name)
		}
		caps = caps.With(c)
	}
	return caps, nil
}

// PlannerOptions applies the overrides to the defaults
func (c *Config) PlannerOptions() planner.PlannerOptions {
	opts := planner.DefaultPlannerOptions()
	p := c.Planner
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&opts.EnableCartesianDetection, p.CartesianDetection)
	set(&opts.EnableCartesianDistribution, p.CartesianDistribution)
	set(&opts.EnableUnionDistribution, p.UnionDistribution)
	set(&opts.EnableFilterPushdown, p.FilterPushdown)
	set(&opts.EnableJoinOrdering, p.JoinOrdering)
	set(&opts.EnableFilterJoinInteraction, p.FilterJoinInteraction)
	set(&opts.EnableFinalPushdown, p.FinalPushdown)
	opts.CheckInvariants = p.CheckInvariants
	if p.CacheSize > 0 {
		opts.Cache = planner.NewPlanCache(p.CacheSize, p.CacheTTL)
	}
	return opts
}

// ExecutorOptions applies the overrides to the defaults
func (c *Config) ExecutorOptions() executor.ExecutorOptions {
	opts := executor.DefaultExecutorOptions()
	e := c.Executor
	if e.HashJoinThreshold != nil {
		opts.HashJoinThreshold = *e.HashJoinThreshold
	}
	if e.AskDegenerateRows != nil {
		opts.AskDegenerateRows = *e.AskDegenerateRows
	}
	if e.BufferSize > 0 {
		opts.BufferSize = e.BufferSize
	}
	if e.CloseTimeout > 0 {
		opts.CloseTimeout = e.CloseTimeout
	}
	if e.MaxUnionWorkers > 0 {
		opts.MaxUnionWorkers = e.MaxUnionWorkers
	}
	return opts
}
