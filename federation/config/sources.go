package config

import (
	"context"
	"fmt"
	"os"

	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/source"
	"github.com/wbrown/janus-federation/federation/source/httpsource"
	"github.com/wbrown/janus-federation/federation/source/memory"
	"github.com/wbrown/janus-federation/federation/source/sqlsource"
	"github.com/wbrown/janus-federation/federation/storage"
)

// Sources holds the opened sources by name
type Sources struct {
	byName  map[string]executor.Source
	order   []string
	closers []func() error
}

// collectorSetter is implemented by sources that report paging events
type collectorSetter interface {
	SetCollector(c *annotations.Collector)
}

// OpenSources opens every configured source. On error the sources opened
// so far are closed.
func OpenSources(ctx context.Context, configs []SourceConfig) (*Sources, error) {
	s := &Sources{byName: make(map[string]executor.Source)}
	for _, cfg := range configs {
		src, closer, err := openSource(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}
		s.Add(src)
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}
	return s, nil
}

// NewSources creates a registry over already opened sources
func NewSources(srcs ...executor.Source) *Sources {
	s := &Sources{byName: make(map[string]executor.Source)}
	for _, src := range srcs {
		s.Add(src)
	}
	return s
}

// Add registers src under its name, replacing an earlier one
func (s *Sources) Add(src executor.Source) {
	if _, ok := s.byName[src.Name()]; !ok {
		s.order = append(s.order, src.Name())
	}
	s.byName[src.Name()] = src
}

// Get returns the source with the given name
func (s *Sources) Get(name string) (executor.Source, bool) {
	src, ok := s.byName[name]
	return src, ok
}

// Names returns the source names in configuration order
func (s *Sources) Names() []string {
	return append([]string(nil), s.order...)
}

// SetCollector installs c on every source that reports events
func (s *Sources) SetCollector(c *annotations.Collector) {
	for _, src := range s.byName {
		if cs, ok := src.(collectorSetter); ok {
			cs.SetCollector(c)
		}
	}
}

// Close releases every source; the first error is returned
func (s *Sources) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func openSource(ctx context.Context, cfg SourceConfig) (executor.Source, func() error, error) {
	caps, err := cfg.capabilities()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Type {
	case SourceMemory:
		src := memory.New(cfg.Name)
		if cfg.Triples != "" {
			f, err := os.Open(cfg.Triples)
			if err != nil {
				return nil, nil, err
			}
			defer f.Close()
			triples, err := source.ReadTriples(f)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", cfg.Triples, err)
			}
			src.Add(triples...)
		}
		if caps != 0 {
			src.WithCapabilities(caps)
		}
		return src, nil, nil

	case SourceBadger:
		store, err := openStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		opts := storage.DefaultSourceOptions()
		if cfg.PageSize > 0 {
			opts.PageSize = cfg.PageSize
		}
		if cfg.CloseTimeout > 0 {
			opts.CloseTimeout = cfg.CloseTimeout
		}
		if caps != 0 {
			opts.Capabilities = caps
		}
		return storage.NewSource(cfg.Name, store, opts), store.Close, nil

	case SourceSQL:
		src, err := sqlsource.Open(ctx, sqlsource.Config{
			Name:         cfg.Name,
			Driver:       cfg.Driver,
			DSN:          cfg.DSN,
			Table:        cfg.Table,
			PageSize:     cfg.PageSize,
			CloseTimeout: cfg.CloseTimeout,
			ExactCounts:  cfg.ExactCounts,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case SourceHTTP:
		src, err := httpsource.Open(ctx, httpsource.Config{
			Name:         cfg.Name,
			URL:          cfg.URL,
			Capabilities: caps,
			Timeout:      cfg.Timeout,
			RetryCount:   cfg.RetryCount,
			PageSize:     cfg.PageSize,
			CloseTimeout: cfg.CloseTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown type %q", cfg.Type)
}

func openStore(path string) (*storage.BadgerStore, error) {
	if path == "" {
		return storage.NewInMemoryStore()
	}
	return storage.NewBadgerStore(path)
}
