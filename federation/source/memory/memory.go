// Package memory is an in-memory triple source. It evaluates every
// modifier itself and reports exact cardinalities, which makes it the
// reference source in tests and examples.
package memory

import (
	"context"
	"sync"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
	"github.com/wbrown/janus-federation/federation/source"
)

// Source holds triples in memory, indexed by predicate
type Source struct {
	name string
	caps query.Capabilities

	mu      sync.RWMutex
	triples []federation.Triple
	byPred  map[federation.Term][]int
}

// New creates a source with all capabilities
func New(name string, triples ...federation.Triple) *Source {
	s := &Source{
		name:   name,
		caps:   query.AllCapabilities,
		byPred: make(map[federation.Term][]int),
	}
	s.Add(triples...)
	return s
}

// WithCapabilities restricts what the source declares; modifiers it no
// longer declares are applied by the executor
func (s *Source) WithCapabilities(caps query.Capabilities) *Source {
	s.caps = caps
	return s
}

func (s *Source) Name() string                     { return s.name }
func (s *Source) Capabilities() query.Capabilities { return s.caps }

// Add stores ground triples; triples with variables are ignored
func (s *Source) Add(triples ...federation.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range triples {
		if !t.IsGround() {
			continue
		}
		s.byPred[t.P] = append(s.byPred[t.P], len(s.triples))
		s.triples = append(s.triples, t)
	}
}

// Len returns the number of stored triples
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// Scan implements source.Scanner
func (s *Source) Scan(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visit := func(t federation.Triple) error {
		if !source.MatchesPattern(pattern, t) {
			return nil
		}
		return fn(t)
	}
	if !pattern.P.IsVariable() {
		for _, i := range s.byPred[pattern.P] {
			if err := visit(s.triples[i]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range s.triples {
		if err := visit(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) evaluate(ctx context.Context, q *query.CQuery) (executor.Results, error) {
	sols, err := source.MatchBGP(ctx, s, q.Triples)
	if err != nil {
		return nil, err
	}
	return executor.ApplyModifiers(executor.NewSliceResults(q.PatternVars().Sorted(), sols), q.Modifiers), nil
}

// Execute evaluates the query with all of its modifiers
func (s *Source) Execute(ctx context.Context, q *query.CQuery) (executor.Results, error) {
	return s.evaluate(ctx, q)
}

// EstimateCardinality counts the answers of q. Queries still waiting for
// inputs cannot be counted.
func (s *Source) EstimateCardinality(q *query.CQuery) cardinality.Cardinality {
	if len(q.RequiredInputVars()) > 0 {
		return cardinality.Unknown
	}
	r, err := s.evaluate(context.Background(), q)
	if err != nil {
		return cardinality.Unknown
	}
	sols, err := executor.Collect(r)
	if err != nil {
		return cardinality.Unknown
	}
	return cardinality.NewExact(int64(len(sols)))
}
