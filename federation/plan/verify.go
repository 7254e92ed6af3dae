package plan

import (
	"errors"
	"fmt"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

// CheckInvariants verifies a tree from its root: parent links and
// arities, memoized attributes against a fresh recomputation, the
// variable-set properties every node must satisfy, reachability of locked
// nodes, and the placement of every filter.
func CheckInvariants(t *Tree) error {
	if t.root == NoNode {
		return nil
	}
	var errs []error
	reachable := make(map[NodeID]bool)
	fresh := make(map[NodeID]Attrs)

	var check func(id NodeID) (Attrs, []federation.Triple)
	check = func(id NodeID) (Attrs, []federation.Triple) {
		reachable[id] = true
		n := t.node(id)
		for _, c := range n.children {
			if p := t.node(c).parent; p != id {
				errs = append(errs, fmt.Errorf("node %d: child %d has parent %d", id, c, p))
			}
		}
		switch n.kind {
		case KindJoin:
			if len(n.children) != 2 {
				errs = append(errs, fmt.Errorf("node %d: %w: join has %d children", id, ErrArity, len(n.children)))
			}
		case KindPipe:
			if len(n.children) != 1 {
				errs = append(errs, fmt.Errorf("node %d: %w: pipe has %d children", id, ErrArity, len(n.children)))
			}
		}

		attrs, triples := t.compute(id, func(c NodeID) (Attrs, []federation.Triple) { return check(c) })
		fresh[id] = attrs
		if m := n.memo; m != nil {
			if !attrsEqual(m.attrs, attrs) {
				errs = append(errs, fmt.Errorf("node %d: stale attributes: cached %+v, computed %+v", id, m.attrs, attrs))
			}
		}
		if !attrs.All.ContainsAll(attrs.Result) {
			errs = append(errs, fmt.Errorf("node %d: result vars %s not within all vars %s", id, attrs.Result, attrs.All))
		}
		if attrs.Required.Intersects(attrs.Optional) {
			errs = append(errs, fmt.Errorf("node %d: inputs both required and optional: %s", id, attrs.Required.Intersect(attrs.Optional)))
		}
		if !attrs.All.ContainsAll(attrs.Inputs()) {
			errs = append(errs, fmt.Errorf("node %d: inputs %s not within all vars", id, attrs.Inputs()))
		}
		if n.kind == KindJoin && len(n.children) == 2 {
			info := ComputeJoinInfo(fresh[n.children[0]], fresh[n.children[1]])
			if !info.Valid() {
				errs = append(errs, fmt.Errorf("node %d: %w: %s", id, ErrInvalidJoin, info))
			}
		}
		return attrs, triples
	}
	check(t.root)

	for id := range t.locked {
		if !reachable[id] {
			errs = append(errs, fmt.Errorf("locked node %d is not reachable from the root", id))
		}
	}
	if err := CheckFilterPlacement(t); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckFilterPlacement verifies that no filter below the root sits on an
// inner node whose inputs alone cover the filter's variables. Filters on
// the root and on Query leaves are exempt.
func CheckFilterPlacement(t *Tree) error {
	if t.root == NoNode {
		return nil
	}
	var errs []error
	t.Walk(t.root, func(id NodeID) bool {
		if id == t.root {
			return true
		}
		attrs := t.Attrs(id)
		for _, f := range t.modSet(id).Filters() {
			vars := f.Vars()
			if len(vars) > 0 && attrs.Inputs().ContainsAll(vars) && t.Kind(id) != KindQuery {
				errs = append(errs, fmt.Errorf("node %d: filter %s depends on inputs only", id, f))
			}
		}
		return true
	})
	return errors.Join(errs...)
}

func attrsEqual(a, b Attrs) bool {
	return a.All.Equal(b.All) && a.Result.Equal(b.Result) &&
		a.Required.Equal(b.Required) && a.Optional.Equal(b.Optional)
}

// CanHostFilter reports whether the subtree at id mentions every variable
// of f and produces at least one of them itself
func CanHostFilter(t *Tree, id NodeID, f query.Filter) bool {
	attrs := t.Attrs(id)
	vars := f.Vars()
	return attrs.All.ContainsAll(vars) && !attrs.Inputs().ContainsAll(vars)
}
