// Package source holds what the concrete sources share: evaluation of a
// basic graph pattern over a triple scanner and a line-based triple
// reader for loading data.
package source

import (
	"context"

	"github.com/wbrown/janus-federation/federation"
)

// Scanner enumerates the stored triples matching a pattern. Variables in
// the pattern match anything; fn may stop the scan by returning an error.
type Scanner interface {
	Scan(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error
}

// ScanFunc adapts a function to Scanner
type ScanFunc func(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error

func (f ScanFunc) Scan(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error {
	return f(ctx, pattern, fn)
}

// MatchBGP evaluates triples as an index nested loop join: patterns are
// taken most-bound first, each partial solution binds the next pattern
// before it is scanned.
func MatchBGP(ctx context.Context, s Scanner, triples []federation.Triple) ([]federation.Solution, error) {
	sols := []federation.Solution{{}}
	remaining := append([]federation.Triple(nil), triples...)
	bound := federation.NewVarSet()

	for len(remaining) > 0 {
		i := mostBound(remaining, bound)
		pattern := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)

		var next []federation.Solution
		for _, sol := range sols {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			err := s.Scan(ctx, pattern.Bind(sol), func(t federation.Triple) error {
				if m := pattern.Match(t, sol); m != nil {
					next = append(next, m)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		if len(next) == 0 {
			return nil, nil
		}
		sols = next
		bound.AddAll(pattern.Vars())
	}
	return sols, nil
}

// mostBound picks the pattern with the most positions that are constants
// or already bound, preferring earlier patterns on ties
func mostBound(patterns []federation.Triple, bound federation.VarSet) int {
	best, bestScore := 0, -1
	for i, p := range patterns {
		score := 0
		for _, term := range p.Terms() {
			if !term.IsVariable() || bound.Has(term.Value) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// MatchesPattern reports whether a ground triple matches pattern
func MatchesPattern(pattern, t federation.Triple) bool {
	return pattern.Match(t, federation.Solution{}) != nil
}
