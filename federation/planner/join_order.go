package planner

import (
	"fmt"
	"sort"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// orderJoins resolves every Conjunction into a tree of binary Joins, with
// a Cartesian over the parts that share no variables. Conjunctions are
// not executable, so a locked one is an error.
func (p *Planner) orderJoins(t *plan.Tree) (bool, error) {
	return forEachNode(t, func(id plan.NodeID) (bool, error) {
		if t.Kind(id) != plan.KindConjunction {
			return false, nil
		}
		if t.IsLocked(id) {
			return false, fmt.Errorf("%w: conjunction %d must be ordered before execution", plan.ErrLocked, id)
		}
		return true, p.orderConjunction(t, id)
	})
}

// orderConjunction replaces conj with its ordered join tree. The
// conjunction's own modifiers move to the new root.
func (p *Planner) orderConjunction(t *plan.Tree, conj plan.NodeID) error {
	mods := t.Modifiers(conj)
	members := t.TakeChildren(conj)

	var required, optional []plan.NodeID
	for _, m := range members {
		if t.HasModifier(m, query.KindOptional) {
			optional = append(optional, m)
		} else {
			required = append(required, m)
		}
	}

	var parts []plan.NodeID
	for _, comp := range NewJoinGraph(t, required).Components() {
		root, err := p.leftDeep(t, comp)
		if err != nil {
			return err
		}
		parts = append(parts, root)
	}

	// optional members go last, as the right side of a left outer join
	for _, o := range p.byCost(t, optional) {
		joined := false
		for i, part := range parts {
			info := t.JoinInfoOf(part, o)
			if !info.Valid() || info.LeftNeedsRight {
				continue
			}
			j, err := t.NewJoin(part, o)
			if err != nil {
				return err
			}
			parts[i] = j
			joined = true
			break
		}
		if !joined {
			parts = append(parts, o)
		}
	}

	var root plan.NodeID
	switch len(parts) {
	case 0:
		root = t.NewCartesian()
	case 1:
		root = parts[0]
	default:
		root = t.NewCartesian(p.byCost(t, parts)...)
	}
	if mods.Len() > 0 {
		if containsNode(members, root) {
			root = t.NewPipe(root)
		}
		for _, m := range mods.All() {
			t.AddModifier(root, m)
		}
	}
	return t.Replace(conj, root)
}

// leftDeep orders one connected component greedily. It starts from the
// cheapest member that needs nothing from the others, then repeatedly
// joins the cheapest member that forms a valid join with the tree built
// so far, preferring members whose inputs are already satisfied.
func (p *Planner) leftDeep(t *plan.Tree, comp []plan.NodeID) (plan.NodeID, error) {
	remaining := p.byCost(t, comp)
	if len(remaining) == 1 {
		return remaining[0], nil
	}

	start := 0
	for i, m := range remaining {
		if !needsAny(t, m, without(remaining, i)) {
			start = i
			break
		}
	}
	cur := remaining[start]
	remaining = without(remaining, start)

	for len(remaining) > 0 {
		next := -1
		for pass := 0; pass < 2 && next < 0; pass++ {
			for i, m := range remaining {
				if !t.JoinInfoOf(cur, m).Valid() {
					continue
				}
				if pass == 0 && needsAny(t, m, without(remaining, i)) {
					continue
				}
				next = i
				break
			}
		}
		if next < 0 {
			// no member joins the tree; continue as a product
			cur = t.NewCartesian(cur, remaining[0])
			remaining = remaining[1:]
			continue
		}
		j, err := t.NewJoin(cur, remaining[next])
		if err != nil {
			return plan.NoNode, err
		}
		cur = j
		remaining = without(remaining, next)
	}
	return cur, nil
}

// byCost returns ids sorted by estimated cardinality, cheapest first.
// Ties keep their input order.
func (p *Planner) byCost(t *plan.Tree, ids []plan.NodeID) []plan.NodeID {
	out := append([]plan.NodeID(nil), ids...)
	costs := make(map[plan.NodeID]cardinality.Cardinality, len(ids))
	for _, id := range ids {
		costs[id] = p.estimator.Compute(t, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return cardinality.Compare(costs[out[i]], costs[out[j]]) < 0
	})
	return out
}

// needsAny reports whether id requires an input produced by one of others
func needsAny(t *plan.Tree, id plan.NodeID, others []plan.NodeID) bool {
	req := t.Attrs(id).Required
	if len(req) == 0 {
		return false
	}
	produced := federation.NewVarSet()
	for _, o := range others {
		produced.AddAll(t.Attrs(o).Produced())
	}
	return req.Intersects(produced)
}

func without(ids []plan.NodeID, i int) []plan.NodeID {
	out := make([]plan.NodeID, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

func containsNode(ids []plan.NodeID, id plan.NodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
