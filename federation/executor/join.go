package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/plan"
)

func (e *Executor) executeJoin(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	left, right := t.Child(id, 0), t.Child(id, 1)
	la, ra := t.Attrs(left), t.Attrs(right)
	lc, rc := e.estimator.Compute(t, left), e.estimator.Compute(t, right)

	strategy, err := DecideJoinStrategy(
		JoinSide{Card: lc, NeedsInputs: len(la.Required) > 0},
		JoinSide{Card: rc, NeedsInputs: len(ra.Required) > 0},
		e.options.HashJoinThreshold, e.options.AskDegenerateRows,
	)
	if err != nil {
		return nil, err
	}

	// An optional right side keeps every left solution: the left side
	// drives the join
	optional := isOptional(t, right)
	if optional {
		switch {
		case strategy.Algorithm == BindJoin && strategy.First == Right:
			if len(la.Required) > 0 {
				return nil, fmt.Errorf("%w: left side of optional join needs inputs", ErrUnboundInputs)
			}
			strategy.First = Left
			strategy.Reason += ", optional right"
		case strategy.Algorithm == HashJoin && strategy.First == Left:
			strategy.First = Right
			strategy.Reason += ", optional right"
		}
	}

	e.collector.AddTiming(annotations.JoinStrategy, time.Now(), map[string]interface{}{
		"strategy":          fmt.Sprintf("%s (%s first)", strategy.Algorithm, strategy.First),
		"reason":            strategy.Reason,
		"left.cardinality":  lc.String(),
		"right.cardinality": rc.String(),
	})

	sides := [2]plan.NodeID{left, right}
	first, second := sides[strategy.First], sides[strategy.First.Other()]
	vars := la.Result.Union(ra.Result).Sorted()
	if strategy.Algorithm == HashJoin {
		return e.hashJoin(ctx, t, first, second, vars, optional)
	}
	return e.bindJoin(ctx, t, first, second, vars, optional)
}

// hashJoin materializes build and streams probe against it. With
// leftOuter, probe solutions without a partner are kept.
func (e *Executor) hashJoin(ctx context.Context, t *plan.Tree, build, probe plan.NodeID, vars []string, leftOuter bool) (Results, error) {
	start := time.Now()
	br, err := e.execute(ctx, t, build)
	if err != nil {
		return nil, err
	}
	buildSols, err := Collect(br)
	if err != nil {
		return nil, err
	}
	table := newHashTable(t.Attrs(build).Result.Intersect(t.Attrs(probe).Result).Sorted(), buildSols)

	pr, err := e.execute(ctx, t, probe)
	if err != nil {
		return nil, err
	}

	probed, produced := 0, 0
	var pending []federation.Solution
	done := false
	return newStreamResults(vars, pr.IsAsync(), func() (federation.Solution, bool, error) {
		for len(pending) == 0 {
			if !pr.HasNext() {
				if !done {
					done = true
					e.collector.AddTiming(annotations.JoinHash, start, map[string]interface{}{
						"left.size":   len(buildSols),
						"left.vars":   t.Attrs(build).Result.Sorted(),
						"right.size":  probed,
						"right.vars":  t.Attrs(probe).Result.Sorted(),
						"result.size": produced,
						"result.vars": vars,
					})
				}
				return nil, false, pr.Err()
			}
			s := pr.Next()
			probed++
			for _, m := range table.matches(s) {
				pending = append(pending, s.Merge(m))
			}
			if len(pending) == 0 && leftOuter {
				pending = append(pending, s)
			}
		}
		out := pending[0]
		pending = pending[1:]
		produced++
		return out, true, nil
	}, pr.Close), nil
}

// hashTable indexes solutions by their values for the key variables.
// Solutions missing a key variable cannot be bucketed and are checked
// against every probe.
type hashTable struct {
	keyVars []string
	buckets map[string][]federation.Solution
	loose   []federation.Solution
	all     []federation.Solution
}

func newHashTable(keyVars []string, sols []federation.Solution) *hashTable {
	h := &hashTable{
		keyVars: keyVars,
		buckets: make(map[string][]federation.Solution),
		all:     sols,
	}
	for _, s := range sols {
		if key, ok := h.key(s); ok {
			h.buckets[key] = append(h.buckets[key], s)
		} else {
			h.loose = append(h.loose, s)
		}
	}
	return h
}

func (h *hashTable) key(s federation.Solution) (string, bool) {
	var b strings.Builder
	for _, v := range h.keyVars {
		term, ok := s[v]
		if !ok {
			return "", false
		}
		b.WriteString(term.String())
		b.WriteByte(0)
	}
	return b.String(), true
}

// matches returns the indexed solutions compatible with s
func (h *hashTable) matches(s federation.Solution) []federation.Solution {
	candidates := h.all
	if key, ok := h.key(s); ok {
		candidates = append(append([]federation.Solution(nil), h.buckets[key]...), h.loose...)
	}
	var out []federation.Solution
	for _, c := range candidates {
		if c.Compatible(s) {
			out = append(out, c)
		}
	}
	return out
}

// bindJoin evaluates inner once per outer solution, with the outer
// solution's values substituted. Inner sub-plans are opened one at a time.
func (e *Executor) bindJoin(ctx context.Context, t *plan.Tree, outer, inner plan.NodeID, vars []string, leftOuter bool) (Results, error) {
	start := time.Now()
	or, err := e.execute(ctx, t, outer)
	if err != nil {
		return nil, err
	}
	innerVars := t.Attrs(inner).All.Sorted()

	var (
		cur     federation.Solution
		ir      Results
		matched bool
		done    bool

		outerCount, produced, bindings int
	)
	pull := func() (federation.Solution, bool, error) {
		for {
			if ir != nil {
				for ir.HasNext() {
					s := ir.Next()
					if !s.Compatible(cur) {
						continue
					}
					matched = true
					produced++
					return cur.Merge(s), true, nil
				}
				err := ir.Err()
				ir.Close()
				ir = nil
				if err != nil {
					return nil, false, err
				}
				if leftOuter && !matched {
					produced++
					return cur, true, nil
				}
			}
			if !or.HasNext() {
				if !done {
					done = true
					e.collector.AddTiming(annotations.JoinBind, start, map[string]interface{}{
						"left.size":   outerCount,
						"left.vars":   t.Attrs(outer).Result.Sorted(),
						"right.size":  bindings,
						"right.vars":  t.Attrs(inner).Result.Sorted(),
						"result.size": produced,
						"result.vars": vars,
					})
				}
				return nil, false, or.Err()
			}
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			cur = or.Next()
			outerCount++
			matched = false
			bound := t.CreateBound(inner, cur.Project(innerVars))
			ir, err = e.open(ctx, bound, bound.Root())
			if err != nil {
				return nil, false, err
			}
			bindings++
		}
	}
	return newStreamResults(vars, or.IsAsync(), pull, func() error {
		if ir != nil {
			ir.Close()
			ir = nil
		}
		return or.Close()
	}), nil
}

// executeCartesian streams the first required child and combines each of
// its solutions with the materialized solutions of the others. Optional
// children with no solutions leave the combinations unchanged.
func (e *Executor) executeCartesian(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	start := time.Now()
	var required, optional []plan.NodeID
	all := federation.NewVarSet()
	for _, k := range t.Children(id) {
		all.AddAll(t.Attrs(k).Result)
		if isOptional(t, k) {
			optional = append(optional, k)
		} else {
			required = append(required, k)
		}
	}
	vars := all.Sorted()

	var head Results = NewSliceResults(nil, []federation.Solution{{}})
	rest := append(required, optional...)
	if len(required) > 0 {
		r, err := e.execute(ctx, t, required[0])
		if err != nil {
			return nil, err
		}
		head, rest = r, rest[1:]
	}

	tails := make([][]federation.Solution, len(rest))
	tailOptional := make([]bool, len(rest))
	tailSize := 1
	for i, k := range rest {
		r, err := e.execute(ctx, t, k)
		if err != nil {
			head.Close()
			return nil, err
		}
		sols, err := Collect(r)
		if err != nil {
			head.Close()
			return nil, err
		}
		tails[i], tailOptional[i] = sols, isOptional(t, k)
		if len(sols) > 0 || !tailOptional[i] {
			tailSize *= len(sols)
		}
	}

	headCount, produced := 0, 0
	done := false
	return flatMap(newStreamResults(head.Vars(), head.IsAsync(), func() (federation.Solution, bool, error) {
		if head.HasNext() {
			headCount++
			return head.Next(), true, nil
		}
		if !done {
			done = true
			e.collector.AddTiming(annotations.JoinProduct, start, map[string]interface{}{
				"left.size":   headCount,
				"right.size":  tailSize,
				"result.size": produced,
				"result.vars": vars,
			})
		}
		return nil, false, head.Err()
	}, head.Close), vars, func(s federation.Solution) []federation.Solution {
		combos := []federation.Solution{s}
		for i, tail := range tails {
			if len(tail) == 0 && tailOptional[i] {
				continue
			}
			next := make([]federation.Solution, 0, len(combos)*len(tail))
			for _, c := range combos {
				for _, o := range tail {
					if c.Compatible(o) {
						next = append(next, c.Merge(o))
					}
				}
			}
			combos = next
		}
		produced += len(combos)
		return combos
	}), nil
}
