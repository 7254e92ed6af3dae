package storage

import (
	"context"
	"time"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
	"github.com/wbrown/janus-federation/federation/source"
)

// SourceOptions configures a store-backed source
type SourceOptions struct {
	PageSize     int // Solutions per page handed to the consumer
	BufferSize   int           // 0 = the executor's default
	CloseTimeout time.Duration // 0 = the executor's default
	Capabilities query.Capabilities
}

// DefaultSourceOptions returns options declaring every modifier
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		PageSize:     256,
		Capabilities: query.CapAsk | query.CapProjection | query.CapDistinct | query.CapFilter | query.CapLimit | query.CapValues,
	}
}

// Source answers queries from a BadgerStore. Results are produced
// asynchronously, one page at a time.
type Source struct {
	name      string
	store     *BadgerStore
	options   SourceOptions
	collector *annotations.Collector
}

// NewSource serves store under name
func NewSource(name string, store *BadgerStore, options SourceOptions) *Source {
	if options.PageSize <= 0 {
		options.PageSize = DefaultSourceOptions().PageSize
	}
	return &Source{name: name, store: store, options: options}
}

// SetCollector reports page fetches and close timeouts to c
func (s *Source) SetCollector(c *annotations.Collector) {
	s.collector = c
}

func (s *Source) Name() string                     { return s.name }
func (s *Source) Capabilities() query.Capabilities { return s.options.Capabilities }

// Execute matches the pattern on the producer goroutine and pages the
// solutions out
func (s *Source) Execute(ctx context.Context, q *query.CQuery) (executor.Results, error) {
	var sols []federation.Solution
	fetch := func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		if page == 0 {
			var err error
			sols, err = source.MatchBGP(ctx, s.store, q.Triples)
			if err != nil {
				return nil, false, err
			}
		}
		start := page * s.options.PageSize
		if start >= len(sols) {
			return nil, true, nil
		}
		end := start + s.options.PageSize
		if end >= len(sols) {
			return sols[start:], true, nil
		}
		return sols[start:end], false, nil
	}
	r := executor.NewAsyncResults(ctx, q.PatternVars().Sorted(), fetch, executor.AsyncOptions{
		Name:         s.name,
		BufferSize:   s.options.BufferSize,
		CloseTimeout: s.options.CloseTimeout,
		Collector:    s.collector,
	})
	return executor.ApplyModifiers(r, q.Modifiers), nil
}

// EstimateCardinality counts single-pattern queries from the indices.
// The count is exact unless a modifier or a repeated variable can drop
// matches, in which case it is an upper bound.
func (s *Source) EstimateCardinality(q *query.CQuery) cardinality.Cardinality {
	if len(q.Triples) != 1 || len(q.RequiredInputVars()) > 0 {
		return cardinality.Unknown
	}
	pattern := q.Triples[0]
	n, err := s.store.Count(pattern)
	if err != nil {
		return cardinality.Unknown
	}

	exact := len(pattern.Vars()) == 3-groundPositions(pattern)
	mods := q.Modifiers
	if len(mods.Filters()) > 0 || len(mods.Values()) > 0 || mods.Has(query.KindDistinct) {
		exact = false
	}
	if l, ok := mods.Limit(); ok && int64(l.N) < n {
		n = int64(l.N)
	}
	if mods.Has(query.KindAsk) && n > 1 {
		n = 1
	}
	if exact {
		return cardinality.NewExact(n)
	}
	return cardinality.NewUpperBound(n)
}
