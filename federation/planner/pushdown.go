package planner

import (
	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// pushdownFilters moves every filter to the deepest nodes that can
// evaluate it. Nodes are visited bottom-up, so a filter arriving at a node
// is pushed on recursively rather than revisited.
func (p *Planner) pushdownFilters(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.NumChildren(id) == 0 || (t.IsLocked(id) && t.Kind(id) != plan.KindPipe) {
			return false, nil
		}
		changed := false
		for _, f := range t.Modifiers(id).Filters() {
			hosts := filterHosts(t, id, f)
			if len(hosts) == 0 {
				continue
			}
			t.RemoveModifier(id, f)
			for _, h := range hosts {
				hostFilter(t, h, f)
			}
			changed = true
		}
		return changed, nil
	})
}

// hostFilter places f at the deepest legal positions under and including
// id. A locked node gets a Pipe that carries the filter instead.
func hostFilter(t *plan.Tree, id plan.NodeID, f query.Filter) {
	if t.IsLocked(id) {
		pipe := t.WrapInPipe(id)
		t.AddModifier(pipe, f)
		return
	}
	if hosts := filterHosts(t, id, f); len(hosts) > 0 {
		for _, h := range hosts {
			hostFilter(t, h, f)
		}
		return
	}
	t.AddModifier(id, f)
}

// filterHosts returns the children of id that f can move into. A Union
// passes a filter on only if every branch accepts it.
func filterHosts(t *plan.Tree, id plan.NodeID, f query.Filter) []plan.NodeID {
	kind := t.Kind(id)
	if kind == plan.KindQuery || kind == plan.KindEmpty {
		return nil
	}
	vars := f.Vars()
	if len(vars) == 0 {
		return nil
	}
	// variables nobody below id produces are inputs wherever f lands
	external := vars.Minus(producedBelow(t, id))

	var hosts []plan.NodeID
	for _, c := range t.Children(id) {
		if canHost(t, c, vars, external) {
			hosts = append(hosts, c)
		} else if kind == plan.KindUnion {
			return nil
		}
	}
	return hosts
}

// canHost reports whether child can evaluate a filter over vars, given the
// variables that are external to its parent
func canHost(t *plan.Tree, child plan.NodeID, vars, external federation.VarSet) bool {
	for _, k := range []query.ModifierKind{query.KindOptional, query.KindLimit, query.KindAsk} {
		if t.HasModifier(child, k) {
			return false
		}
	}
	if t.Kind(child) == plan.KindQuery && !leafCapabilities(t, child).Has(query.CapFilter) {
		return false
	}
	a := t.Attrs(child)
	if !a.Result.Union(external).ContainsAll(vars) {
		return false
	}
	// a filter over inputs alone belongs where the inputs are bound
	return !a.Inputs().Union(external).ContainsAll(vars)
}

// producedBelow returns the variables bound by id's children or by its own
// Values, ignoring id's projection
func producedBelow(t *plan.Tree, id plan.NodeID) federation.VarSet {
	vars := t.Modifiers(id).ValuesVars()
	for _, c := range t.Children(id) {
		vars.AddAll(t.Attrs(c).Produced())
	}
	return vars
}
