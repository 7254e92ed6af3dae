package planner

import (
	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// interactFiltersWithJoins hands the AND-components of filters sitting on
// Cartesian and Join nodes to one of their children. A component moved
// into a child turns the variables it reads from the other side into
// inputs of that child, so the filter runs inside the bind join instead
// of after the join.
func (p *Planner) interactFiltersWithJoins(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.IsLocked(id) || len(t.Modifiers(id).Filters()) == 0 {
			return false, nil
		}
		switch t.Kind(id) {
		case plan.KindCartesian:
			return p.interactCartesian(t, id)
		case plan.KindJoin:
			return interactJoin(t, id), nil
		}
		return false, nil
	})
}

func (p *Planner) interactCartesian(t *plan.Tree, id plan.NodeID) (bool, error) {
	kids := t.Children(id)
	comps := filterComponents(t, id)

	// extra[i] holds the inputs child i gains from assigned components
	extra := make([]federation.VarSet, len(kids))
	for i := range extra {
		extra[i] = federation.NewVarSet()
	}
	modified := make(map[int]bool)
	assigned := make(map[int][]query.Filter)
	var orphans []query.Filter
	for _, c := range comps {
		var cands []int
		for i, k := range kids {
			if !canReceive(t, k) || !IsJoinComponent(t, k, c) {
				continue
			}
			if createsCycle(t, kids, extra, i, c.Vars()) {
				continue
			}
			cands = append(cands, i)
		}
		if len(cands) == 0 {
			orphans = append(orphans, c)
			continue
		}
		i := ladder(t, kids, cands, modified)
		modified[i] = true
		assigned[i] = append(assigned[i], c)
		extra[i].AddAll(c.Vars().Minus(t.Attrs(kids[i]).Result))
	}
	if len(assigned) == 0 {
		return false, nil
	}

	t.RemoveModifiers(id, query.KindFilter)
	for _, f := range orphans {
		t.AddModifier(id, f)
	}
	for i, k := range kids {
		if fs := assigned[i]; len(fs) > 0 {
			receive(t, k, fs)
		}
	}

	if !inputConnected(t, t.Children(id)) {
		return true, nil
	}
	// the children now feed each other: plan them as joins
	mods := t.Modifiers(id)
	members := t.TakeChildren(id)
	conj := t.NewConjunction(members...)
	for _, m := range mods.All() {
		t.AddModifier(conj, m)
	}
	if err := t.Replace(id, conj); err != nil {
		return false, err
	}
	return true, p.orderConjunction(t, conj)
}

// interactJoin moves join components to a single side of a binary join.
// The side is forced by an existing input dependency, otherwise it is the
// side accepting more components, otherwise the ladder decides. Nothing
// moves if the join would become invalid.
func interactJoin(t *plan.Tree, id plan.NodeID) bool {
	comps := filterComponents(t, id)
	sides := []plan.NodeID{t.Child(id, 0), t.Child(id, 1)}

	var assignable [2][]query.Filter
	for _, c := range comps {
		for s, side := range sides {
			if canReceive(t, side) && IsJoinComponent(t, side, c) {
				assignable[s] = append(assignable[s], c)
			}
		}
	}

	info := t.JoinInfo(id)
	var side int
	switch {
	case info.LeftNeedsRight:
		side = 0
	case info.RightNeedsLeft:
		side = 1
	case len(assignable[0]) > len(assignable[1]):
		side = 0
	case len(assignable[1]) > len(assignable[0]):
		side = 1
	default:
		side = ladder(t, sides, []int{0, 1}, nil)
	}

	moved := assignable[side]
	if len(moved) == 0 || !keepsJoinValid(t, id, side, moved) {
		return false
	}

	t.RemoveModifiers(id, query.KindFilter)
	for _, c := range comps {
		if !containsFilter(moved, c) {
			t.AddModifier(id, c)
		}
	}
	receive(t, sides[side], moved)
	return true
}

// keepsJoinValid simulates moving fs into the given side on a copy of the
// join. The join must stay valid, keep its join variables and gain no
// required input that the other side cannot provide.
func keepsJoinValid(t *plan.Tree, join plan.NodeID, side int, fs []query.Filter) bool {
	before := t.JoinInfo(join)

	scratch := t.Extract(join)
	root := scratch.Root()
	target := scratch.Child(root, side)
	for _, f := range fs {
		scratch.AddModifier(target, f)
	}
	after := scratch.JoinInfoOf(scratch.Child(root, 0), scratch.Child(root, 1))

	return after.Valid() &&
		after.JoinVars.ContainsAll(before.JoinVars) &&
		before.PendingRequired.ContainsAll(after.PendingRequired)
}

// IsJoinComponent reports whether filter component c can only be
// evaluated once id is combined with something else: every boolean
// sub-expression of c mentions a variable id exposes, and at least one
// mentions a variable it does not.
func IsJoinComponent(t *plan.Tree, id plan.NodeID, c query.Filter) bool {
	exposed := t.Attrs(id).Result
	external := false
	subs := query.BooleanSubExprs(c.Expr)
	if len(subs) == 0 {
		return false
	}
	for _, sub := range subs {
		vars := sub.VarsMentioned()
		if !vars.Intersects(exposed) {
			return false
		}
		if !exposed.ContainsAll(vars) {
			external = true
		}
	}
	return external
}

// ladder picks the receiver among the candidate indices, in priority
// order: a node that already received a component; a filter-capable leaf
// with required inputs; any node with required inputs; a filter-capable
// leaf with optional inputs; any node with inputs; the highest index.
// Within a rung the highest index wins.
func ladder(t *plan.Tree, nodes []plan.NodeID, cands []int, modified map[int]bool) int {
	rungs := []func(i int) bool{
		func(i int) bool { return modified[i] },
		func(i int) bool { return filterCapable(t, nodes[i]) && len(t.Attrs(nodes[i]).Required) > 0 },
		func(i int) bool { return len(t.Attrs(nodes[i]).Required) > 0 },
		func(i int) bool { return filterCapable(t, nodes[i]) && len(t.Attrs(nodes[i]).Inputs()) > 0 },
		func(i int) bool { return len(t.Attrs(nodes[i]).Inputs()) > 0 },
	}
	for _, rung := range rungs {
		for j := len(cands) - 1; j >= 0; j-- {
			if rung(cands[j]) {
				return cands[j]
			}
		}
	}
	return cands[len(cands)-1]
}

// filterCapable reports whether id is a leaf whose endpoint evaluates
// filters itself
func filterCapable(t *plan.Tree, id plan.NodeID) bool {
	return t.Kind(id) == plan.KindQuery && leafCapabilities(t, id).Has(query.CapFilter)
}

// leafCapabilities returns the capabilities of a Query leaf's endpoint.
// A leaf without an endpoint evaluates nothing itself.
func leafCapabilities(t *plan.Tree, id plan.NodeID) query.Capabilities {
	ep := t.Endpoint(id)
	if ep == nil {
		return 0
	}
	return ep.Capabilities()
}

// canReceive reports whether a filter may be attached to id without
// changing which solutions it selects
func canReceive(t *plan.Tree, id plan.NodeID) bool {
	for _, k := range []query.ModifierKind{query.KindOptional, query.KindLimit, query.KindAsk} {
		if t.HasModifier(id, k) {
			return false
		}
	}
	switch t.Kind(id) {
	case plan.KindEmpty:
		return false
	case plan.KindQuery:
		return filterCapable(t, id)
	}
	return true
}

// receive attaches fs to id, through a Pipe if id is locked
func receive(t *plan.Tree, id plan.NodeID, fs []query.Filter) {
	target := id
	if t.IsLocked(id) {
		target = t.WrapInPipe(id)
	}
	for _, f := range fs {
		t.AddModifier(target, f)
	}
}

// filterComponents splits every filter on id into its AND-components
func filterComponents(t *plan.Tree, id plan.NodeID) []query.Filter {
	var out []query.Filter
	for _, f := range t.Modifiers(id).Filters() {
		out = append(out, f.Components()...)
	}
	return out
}

// createsCycle reports whether giving child i the inputs vars would make
// two children depend on each other, directly or through others
func createsCycle(t *plan.Tree, kids []plan.NodeID, extra []federation.VarSet, i int, vars federation.VarSet) bool {
	needs := func(a, b int) bool {
		req := t.Attrs(kids[a]).Required.Union(extra[a])
		if a == i {
			req.AddAll(vars.Minus(t.Attrs(kids[i]).Result))
		}
		return req.Intersects(t.Attrs(kids[b]).Produced())
	}
	// is there a path back from a producer of i's new inputs to i?
	seen := make(map[int]bool)
	var reaches func(from int) bool
	reaches = func(from int) bool {
		if from == i {
			return true
		}
		if seen[from] {
			return false
		}
		seen[from] = true
		for j := range kids {
			if j != from && needs(from, j) && reaches(j) {
				return true
			}
		}
		return false
	}
	for j := range kids {
		if j != i && needs(i, j) && reaches(j) {
			return true
		}
	}
	return false
}

// inputConnected reports whether some child requires a variable another
// child produces
func inputConnected(t *plan.Tree, kids []plan.NodeID) bool {
	for i, k := range kids {
		if needsAny(t, k, without(kids, i)) {
			return true
		}
	}
	return false
}

func containsFilter(fs []query.Filter, f query.Filter) bool {
	for _, x := range fs {
		if x.Key() == f.Key() {
			return true
		}
	}
	return false
}
