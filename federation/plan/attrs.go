package plan

import (
	"fmt"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/query"
)

// Attrs are the derived variable sets of a subtree
type Attrs struct {
	// All is every variable mentioned anywhere in the subtree
	All federation.VarSet
	// Result is the variables of the subtree's solutions
	Result federation.VarSet
	// Required must be bound from outside before the subtree can run
	Required federation.VarSet
	// Optional may be bound from outside to speed the subtree up
	Optional federation.VarSet
}

// Inputs returns Required ∪ Optional
func (a Attrs) Inputs() federation.VarSet { return a.Required.Union(a.Optional) }

// Produced returns the result variables the subtree binds itself
func (a Attrs) Produced() federation.VarSet { return a.Result.Minus(a.Required) }

type memo struct {
	attrs   Attrs
	triples []federation.Triple
	join    *JoinInfo
	card    *cardinality.Cardinality
}

func (t *Tree) memoOf(id NodeID) *memo {
	n := t.node(id)
	if n.memo == nil {
		attrs, triples := t.compute(id, func(c NodeID) (Attrs, []federation.Triple) {
			m := t.memoOf(c)
			return m.attrs, m.triples
		})
		n.memo = &memo{attrs: attrs, triples: triples}
	}
	return n.memo
}

type childAttrs func(NodeID) (Attrs, []federation.Triple)

// compute derives the attributes of id from its own content and the
// attributes of its children as returned by get
func (t *Tree) compute(id NodeID, get childAttrs) (Attrs, []federation.Triple) {
	n := t.node(id)
	switch n.kind {
	case KindQuery:
		return Attrs{
			All:      n.cq.AllVars(),
			Result:   n.cq.ResultVars(),
			Required: n.cq.RequiredInputVars(),
			Optional: n.cq.OptionalInputVars(),
		}, append([]federation.Triple(nil), n.cq.Triples...)
	case KindEmpty:
		return Attrs{
			All:      n.emptyVars.Clone(),
			Result:   n.emptyVars.Clone(),
			Required: federation.NewVarSet(),
			Optional: federation.NewVarSet(),
		}, nil
	case KindJoin, KindUnion, KindCartesian, KindConjunction, KindPipe:
	default:
		panic(fmt.Sprintf("plan: unknown node kind %d", n.kind))
	}

	kids := make([]Attrs, len(n.children))
	var triples []federation.Triple
	seen := make(map[federation.Triple]bool)
	for i, c := range n.children {
		a, ts := get(c)
		kids[i] = a
		for _, tr := range ts {
			if !seen[tr] {
				seen[tr] = true
				triples = append(triples, tr)
			}
		}
	}

	a := Attrs{
		All:      federation.NewVarSet(),
		Result:   federation.NewVarSet(),
		Required: federation.NewVarSet(),
		Optional: federation.NewVarSet(),
	}
	for _, k := range kids {
		a.All.AddAll(k.All)
		a.Result.AddAll(k.Result)
	}
	if n.kind == KindUnion || n.kind == KindPipe {
		for _, k := range kids {
			a.Required.AddAll(k.Required)
			a.Optional.AddAll(k.Optional)
		}
	} else {
		// inputs of one member may be satisfied by another member
		for i, k := range kids {
			others := federation.NewVarSet()
			for j, o := range kids {
				if j != i {
					others.AddAll(o.Produced())
				}
			}
			a.Required.AddAll(k.Required.Minus(others))
			a.Optional.AddAll(k.Optional.Minus(others))
		}
	}

	filterVars := n.mods.FilterVars()
	valuesVars := n.mods.ValuesVars()
	a.All.AddAll(filterVars)
	a.All.AddAll(valuesVars)
	a.Result.AddAll(valuesVars)
	external := filterVars.Minus(a.Result)
	a.Required.AddAll(external)
	a.Result.AddAll(external)
	if n.mods.Has(query.KindAsk) {
		a.Result = federation.NewVarSet()
	} else if p, ok := n.mods.Projection(); ok {
		a.Result = p.VarSet().Intersect(a.All)
	}
	a.Optional = a.Optional.Minus(a.Required)
	return a, triples
}

// Attrs returns the variable sets of the subtree rooted at id. The
// returned sets are shared with the memo and must not be modified.
func (t *Tree) Attrs(id NodeID) Attrs { return t.memoOf(id).attrs }

// AllVars returns every variable mentioned in the subtree
func (t *Tree) AllVars(id NodeID) federation.VarSet { return t.memoOf(id).attrs.All.Clone() }

// ResultVars returns the variables of the subtree's solutions
func (t *Tree) ResultVars(id NodeID) federation.VarSet { return t.memoOf(id).attrs.Result.Clone() }

// RequiredInputVars returns the variables the subtree needs bound from outside
func (t *Tree) RequiredInputVars(id NodeID) federation.VarSet {
	return t.memoOf(id).attrs.Required.Clone()
}

// OptionalInputVars returns the variables the subtree accepts from outside
func (t *Tree) OptionalInputVars(id NodeID) federation.VarSet {
	return t.memoOf(id).attrs.Optional.Clone()
}

// InputVars returns required and optional inputs
func (t *Tree) InputVars(id NodeID) federation.VarSet { return t.memoOf(id).attrs.Inputs() }

// MatchedTriples returns the distinct triple patterns of the subtree
func (t *Tree) MatchedTriples(id NodeID) []federation.Triple {
	return append([]federation.Triple(nil), t.memoOf(id).triples...)
}

// CachedCardinality returns the memoized cardinality of a node
func (t *Tree) CachedCardinality(id NodeID) (cardinality.Cardinality, bool) {
	m := t.memoOf(id)
	if m.card == nil {
		return cardinality.Unknown, false
	}
	return *m.card, true
}

// SetCachedCardinality memoizes the cardinality of a node until the next
// modification of its subtree
func (t *Tree) SetCachedCardinality(id NodeID, c cardinality.Cardinality) {
	t.memoOf(id).card = &c
}

// JoinInfo describes how two subtrees connect
type JoinInfo struct {
	// JoinVars connect the two sides
	JoinVars federation.VarSet
	// PendingRequired are required inputs neither side provides
	PendingRequired federation.VarSet
	// PendingOptional are optional inputs neither side provides
	PendingOptional federation.VarSet
	// LeftNeedsRight is set when the left side requires inputs produced
	// by the right side, and RightNeedsLeft for the converse
	LeftNeedsRight bool
	RightNeedsLeft bool
}

// Valid returns true if the sides share a join variable and do not
// require inputs from each other
func (j JoinInfo) Valid() bool {
	return len(j.JoinVars) > 0 && !(j.LeftNeedsRight && j.RightNeedsLeft)
}

func (j JoinInfo) String() string {
	s := "join vars " + j.JoinVars.String()
	if len(j.PendingRequired) > 0 {
		s += ", pending " + j.PendingRequired.String()
	}
	if j.LeftNeedsRight && j.RightNeedsLeft {
		s += ", mutual dependency"
	} else if j.LeftNeedsRight {
		s += ", left needs right"
	} else if j.RightNeedsLeft {
		s += ", right needs left"
	}
	return s
}

// ComputeJoinInfo derives the join information of two attribute sets
func ComputeJoinInfo(left, right Attrs) JoinInfo {
	joinVars := left.Result.Intersect(right.Result)
	joinVars.AddAll(left.Required.Intersect(right.Result))
	joinVars.AddAll(right.Required.Intersect(left.Result))

	lp, rp := left.Produced(), right.Produced()
	pendingReq := left.Required.Minus(rp).Union(right.Required.Minus(lp))
	pendingOpt := left.Optional.Minus(rp).Union(right.Optional.Minus(lp))
	return JoinInfo{
		JoinVars:        joinVars,
		PendingRequired: pendingReq,
		PendingOptional: pendingOpt.Minus(pendingReq),
		LeftNeedsRight:  left.Required.Intersects(rp),
		RightNeedsLeft:  right.Required.Intersects(lp),
	}
}

// JoinInfoOf computes the join information of two nodes, attached or not
func (t *Tree) JoinInfoOf(left, right NodeID) JoinInfo {
	return ComputeJoinInfo(t.Attrs(left), t.Attrs(right))
}

// JoinInfo returns the memoized join information of a Join node
func (t *Tree) JoinInfo(id NodeID) JoinInfo {
	n := t.node(id)
	if n.kind != KindJoin {
		panic(fmt.Sprintf("plan: JoinInfo on %s node", n.kind))
	}
	m := t.memoOf(id)
	if m.join == nil {
		info := t.JoinInfoOf(n.children[0], n.children[1])
		m.join = &info
	}
	return *m.join
}
