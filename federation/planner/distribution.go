package planner

import (
	"errors"

	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// shapingKinds change which solutions reach the parent; a node carrying
// one cannot absorb a sibling's pattern
var shapingKinds = []query.ModifierKind{
	query.KindProjection, query.KindDistinct, query.KindAsk, query.KindLimit, query.KindOptional,
}

func hasShaping(t *plan.Tree, id plan.NodeID) bool {
	for _, k := range shapingKinds {
		if t.HasModifier(id, k) {
			return true
		}
	}
	return false
}

// movableQuery reports whether id is a Query leaf a rewrite may fold away
func movableQuery(t *plan.Tree, id plan.NodeID) bool {
	return t.Kind(id) == plan.KindQuery && !t.IsLocked(id) && !t.HasModifier(id, query.KindOptional)
}

func sameEndpoint(t *plan.Tree, a, b plan.NodeID) bool {
	ea, eb := t.Endpoint(a), t.Endpoint(b)
	if ea == nil || eb == nil {
		return false
	}
	return ea.Name() == eb.Name()
}

// distributeCartesians merges a Query member of a Conjunction into the
// single Cartesian child it connects to: Q ⋈ (A × B) = (Q ⋈ A) × B
func (p *Planner) distributeCartesians(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.Kind(id) != plan.KindConjunction {
			return false, nil
		}
		return distribute(t, id, plan.KindCartesian, mergeIntoCartesian)
	})
}

// distributeUnions merges a Query member of a Conjunction into every
// branch of a Union sibling: Q ⋈ (A ∪ B) = (Q ⋈ A) ∪ (Q ⋈ B)
func (p *Planner) distributeUnions(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.Kind(id) != plan.KindConjunction {
			return false, nil
		}
		return distribute(t, id, plan.KindUnion, mergeIntoUnion)
	})
}

type mergeFunc func(t *plan.Tree, q, target plan.NodeID) error

var errNoMerge = errors.New("nothing to merge")

// distribute folds the first movable Query member of conj into sibling
// nodes of the given kind. Failed merges leave the tree unchanged.
func distribute(t *plan.Tree, conj plan.NodeID, kind plan.Kind, merge mergeFunc) (bool, error) {
	members := t.Children(conj)
	q := plan.NoNode
	for _, m := range members {
		if movableQuery(t, m) {
			q = m
			break
		}
	}
	if q == plan.NoNode {
		return false, nil
	}

	merged := false
	for _, m := range members {
		if m == q || t.Kind(m) != kind || t.IsLocked(m) || hasShaping(t, m) {
			continue
		}
		if !t.ResultVars(m).Intersects(t.ResultVars(q)) {
			continue
		}
		if err := merge(t, q, m); err != nil {
			continue
		}
		merged = true
		// the pattern now lives inside m
		break
	}
	if !merged {
		return false, nil
	}

	var kept []plan.NodeID
	for _, m := range t.TakeChildren(conj) {
		if m != q {
			kept = append(kept, m)
		}
	}
	if err := t.SetChildren(conj, kept); err != nil {
		return false, err
	}
	return true, nil
}

// mergeIntoCartesian folds q into the only member of cart it shares
// variables with
func mergeIntoCartesian(t *plan.Tree, q, cart plan.NodeID) error {
	qVars := t.ResultVars(q)
	target := plan.NoNode
	for _, c := range t.Children(cart) {
		if !t.ResultVars(c).Intersects(qVars) {
			continue
		}
		if target != plan.NoNode {
			return errNoMerge
		}
		target = c
	}
	if target == plan.NoNode || !movableQuery(t, target) || !sameEndpoint(t, q, target) {
		return errNoMerge
	}
	merged, err := t.CQuery(target).Merge(t.CQuery(q))
	if err != nil {
		return err
	}
	t.SetCQuery(target, merged)
	return nil
}

// mergeIntoUnion folds q into every branch of union, or into none
func mergeIntoUnion(t *plan.Tree, q, union plan.NodeID) error {
	branches := t.Children(union)
	merged := make([]*query.CQuery, len(branches))
	for i, b := range branches {
		if !movableQuery(t, b) || !sameEndpoint(t, q, b) {
			return errNoMerge
		}
		m, err := t.CQuery(b).Merge(t.CQuery(q))
		if err != nil {
			return err
		}
		merged[i] = m
	}
	for i, b := range branches {
		t.SetCQuery(b, merged[i])
	}
	return nil
}
