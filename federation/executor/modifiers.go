package executor

import (
	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

// modifierOrder is the evaluation order of the modifiers on one node
var modifierOrder = []query.ModifierKind{
	query.KindValues,
	query.KindFilter,
	query.KindProjection,
	query.KindDistinct,
	query.KindLimit,
	query.KindAsk,
}

// splitModifiers divides a leaf's modifiers into those its endpoint
// evaluates and those applied locally. Once one modifier must run
// locally every modifier after it in evaluation order does too. Optional
// is never sent: it belongs to the enclosing join.
func splitModifiers(mods query.ModifierSet, caps query.Capabilities) (remote, local query.ModifierSet) {
	isLocal := false
	for _, k := range modifierOrder {
		if !mods.Has(k) {
			continue
		}
		if !caps.Supports(k) {
			isLocal = true
		}
		for _, m := range mods.All() {
			if m.Kind() != k {
				continue
			}
			if isLocal {
				local.Add(m)
			} else {
				remote.Add(m)
			}
		}
	}
	return remote, local
}

// ApplyModifiers evaluates mods over in, in evaluation order. Sources use
// it to honour the modifiers their capabilities declare.
func ApplyModifiers(in Results, mods query.ModifierSet) Results {
	out := in
	for _, v := range mods.Values() {
		out = applyValues(out, v)
	}
	for _, f := range mods.Filters() {
		out = applyFilter(out, f)
	}
	if p, ok := mods.Projection(); ok {
		out = applyProjection(out, p)
	}
	if mods.Has(query.KindDistinct) {
		out = applyDistinct(out)
	}
	if l, ok := mods.Limit(); ok {
		out = applyLimit(out, l.N)
	}
	if mods.Has(query.KindAsk) {
		out = applyAsk(out)
	}
	return out
}

// flatMap replaces every solution of in with the solutions fn returns
func flatMap(in Results, vars []string, fn func(federation.Solution) []federation.Solution) Results {
	var pending []federation.Solution
	return newStreamResults(vars, in.IsAsync(), func() (federation.Solution, bool, error) {
		for len(pending) == 0 {
			if !in.HasNext() {
				return nil, false, in.Err()
			}
			pending = fn(in.Next())
		}
		s := pending[0]
		pending = pending[1:]
		return s, true, nil
	}, in.Close)
}

func applyValues(in Results, v query.Values) Results {
	vars := federation.NewVarSet(in.Vars()...).Union(v.VarSet()).Sorted()
	return flatMap(in, vars, func(s federation.Solution) []federation.Solution {
		var out []federation.Solution
		for _, row := range v.Rows {
			if row.Compatible(s) {
				out = append(out, s.Merge(row))
			}
		}
		return out
	})
}

func applyFilter(in Results, f query.Filter) Results {
	return flatMap(in, in.Vars(), func(s federation.Solution) []federation.Solution {
		if f.Accepts(s) {
			return []federation.Solution{s}
		}
		return nil
	})
}

func applyProjection(in Results, p query.Projection) Results {
	vars := p.VarSet().Intersect(federation.NewVarSet(in.Vars()...)).Sorted()
	return flatMap(in, vars, func(s federation.Solution) []federation.Solution {
		return []federation.Solution{s.Project(vars)}
	})
}

func applyDistinct(in Results) Results {
	seen := make(map[string]struct{})
	return flatMap(in, in.Vars(), func(s federation.Solution) []federation.Solution {
		key := s.String()
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}
		return []federation.Solution{s}
	})
}

func applyLimit(in Results, n int) Results {
	count := 0
	return newStreamResults(in.Vars(), in.IsAsync(), func() (federation.Solution, bool, error) {
		if count >= n || !in.HasNext() {
			return nil, false, in.Err()
		}
		count++
		return in.Next(), true, nil
	}, in.Close)
}

func applyAsk(in Results) Results {
	asked := false
	return newStreamResults(nil, in.IsAsync(), func() (federation.Solution, bool, error) {
		if asked {
			return nil, false, nil
		}
		asked = true
		if !in.HasNext() {
			return nil, false, in.Err()
		}
		return federation.Solution{}, true, nil
	}, in.Close)
}
