package plan

import (
	"fmt"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

// Clone returns a deep copy of the tree. Node IDs and locks are preserved;
// memoized attributes are not.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		nodes:  make([]*node, len(t.nodes)),
		root:   t.root,
		locked: make(map[NodeID]struct{}, len(t.locked)),
	}
	for i, n := range t.nodes {
		c := &node{
			kind:     n.kind,
			parent:   n.parent,
			children: append([]NodeID(nil), n.children...),
			mods:     n.mods.Clone(),
			endpoint: n.endpoint,
		}
		if n.cq != nil {
			c.cq = n.cq.Clone()
		}
		if n.emptyVars != nil {
			c.emptyVars = n.emptyVars.Clone()
		}
		out.nodes[i] = c
	}
	for id := range t.locked {
		out.locked[id] = struct{}{}
	}
	return out
}

// Extract copies the subtree rooted at id into a fresh tree whose root is
// the copy. Locks inside the subtree are carried over.
func (t *Tree) Extract(id NodeID) *Tree {
	out := NewTree()
	out.root = t.copyInto(out, id, nil)
	return out
}

// CreateBound copies the subtree rooted at id into a fresh tree with the
// variables of sol substituted: triple patterns become ground where bound,
// filters are specialised, Values rows incompatible with sol are dropped
// and projections lose the bound variables. A Join left without join
// variables becomes a Cartesian product.
func (t *Tree) CreateBound(id NodeID, sol federation.Solution) *Tree {
	out := NewTree()
	out.root = t.copyInto(out, id, sol)
	return out
}

func (t *Tree) copyInto(out *Tree, id NodeID, sol federation.Solution) NodeID {
	n := t.node(id)
	var nid NodeID
	switch n.kind {
	case KindQuery:
		q := n.cq
		if sol != nil {
			q = q.Bind(sol)
		}
		nid = out.NewQuery(q, n.endpoint)
	case KindEmpty:
		vars := n.emptyVars
		if sol != nil {
			vars = vars.Minus(sol.Vars())
		}
		nid = out.NewEmpty(vars)
	case KindJoin, KindUnion, KindCartesian, KindConjunction, KindPipe:
		kids := make([]NodeID, len(n.children))
		for i, c := range n.children {
			kids[i] = t.copyInto(out, c, sol)
		}
		switch n.kind {
		case KindJoin:
			j, err := out.NewJoin(kids[0], kids[1])
			if err != nil {
				j = out.NewCartesian(kids...)
			}
			nid = j
		case KindUnion:
			nid = out.NewUnion(kids...)
		case KindCartesian:
			nid = out.NewCartesian(kids...)
		case KindConjunction:
			nid = out.NewConjunction(kids...)
		case KindPipe:
			nid = out.NewPipe(kids[0])
		}
		for _, m := range n.mods.All() {
			if sol != nil {
				m = query.BindModifier(m, sol)
			}
			out.AddModifier(nid, m)
		}
	default:
		panic(fmt.Sprintf("plan: unknown node kind %d", n.kind))
	}
	if sol == nil && t.IsLocked(id) {
		out.Lock(nid)
	}
	return nid
}
