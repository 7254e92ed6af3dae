package planner

import (
	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// TripleComponents partitions triples into groups connected by shared
// variables. Groups and the triples inside them keep their input order.
// The traversal uses an explicit stack so large patterns cannot exhaust
// the goroutine stack.
func TripleComponents(triples []federation.Triple) [][]federation.Triple {
	byVar := make(map[string][]int)
	for i, t := range triples {
		for v := range t.Vars() {
			byVar[v] = append(byVar[v], i)
		}
	}

	component := make([]int, len(triples))
	for i := range component {
		component[i] = -1
	}
	n := 0
	for start := range triples {
		if component[start] >= 0 {
			continue
		}
		stack := []int{start}
		component[start] = n
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for v := range triples[cur].Vars() {
				for _, next := range byVar[v] {
					if component[next] < 0 {
						component[next] = n
						stack = append(stack, next)
					}
				}
			}
		}
		n++
	}

	out := make([][]federation.Triple, n)
	for i, t := range triples {
		out[component[i]] = append(out[component[i]], t)
	}
	return out
}

// detectCartesians splits every unlocked Query leaf whose pattern falls
// apart into several variable-disjoint components
func (p *Planner) detectCartesians(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.Kind(id) != plan.KindQuery || t.IsLocked(id) {
			return false, nil
		}
		return splitQuery(t, id)
	})
}

func splitQuery(t *plan.Tree, id plan.NodeID) (bool, error) {
	q := t.CQuery(id)
	groups := TripleComponents(q.Triples)
	if len(groups) < 2 {
		return false, nil
	}

	patternVars := q.TripleVars()
	parts := make([]*query.CQuery, len(groups))
	partVars := make([]federation.VarSet, len(groups))
	for i, g := range groups {
		parts[i] = query.NewCQuery(g)
		partVars[i] = parts[i].TripleVars()
		if q.RequiredInputs != nil {
			parts[i].RequiredInputs = q.RequiredInputs.Intersect(partVars[i])
		}
		if q.OptionalInputs != nil {
			parts[i].OptionalInputs = q.OptionalInputs.Intersect(partVars[i])
		}
	}

	// modifiers that fit one component move there, the rest stay on
	// the Cartesian
	var rootMods []query.Modifier
	for _, m := range q.Modifiers.All() {
		switch mod := m.(type) {
		case query.Filter:
			i := owningComponent(mod.Vars().Intersect(patternVars), partVars)
			if i < 0 {
				rootMods = append(rootMods, m)
				continue
			}
			parts[i].Modifiers.Add(mod)
		case query.Values:
			spans := 0
			for i := range parts {
				if r, ok := mod.Restrict(partVars[i]); ok {
					parts[i].Modifiers.Add(r)
					spans++
				}
			}
			if spans != 1 || len(mod.VarSet().Minus(patternVars)) > 0 {
				rootMods = append(rootMods, m)
			}
		default:
			rootMods = append(rootMods, m)
		}
	}

	kids := make([]plan.NodeID, len(parts))
	for i, part := range parts {
		kids[i] = t.NewQuery(part, t.Endpoint(id))
	}
	cart := t.NewCartesian(kids...)
	for _, m := range rootMods {
		t.AddModifier(cart, m)
	}
	if err := t.Replace(id, cart); err != nil {
		return false, err
	}
	return true, nil
}

// owningComponent returns the only component containing every variable
// in vars, or -1
func owningComponent(vars federation.VarSet, comps []federation.VarSet) int {
	if len(vars) == 0 {
		return -1
	}
	for i, c := range comps {
		if c.ContainsAll(vars) {
			return i
		}
	}
	return -1
}
