// Package plan holds operator trees: the intermediate representation the
// planner rewrites and the executor runs. A Tree is an arena of nodes
// addressed by NodeID; parents are plain indices so that modifications
// can invalidate memoized attributes along the path to the root.
package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

var (
	// ErrInvalidJoin is returned when two subtrees cannot be joined
	ErrInvalidJoin = errors.New("invalid join")
	// ErrArity is returned when a node gets the wrong number of children
	ErrArity = errors.New("wrong number of children")
	// ErrLocked is returned when a rewrite would detach a locked node
	ErrLocked = errors.New("node is locked")
	// ErrAttached is returned when a node that already has a parent is
	// given another one
	ErrAttached = errors.New("node already has a parent")
)

// NodeID addresses a node inside a Tree
type NodeID int32

// NoNode is the absent node
const NoNode NodeID = -1

// Kind is the operator type of a node
type Kind uint8

const (
	// KindQuery is a leaf: a conjunctive query sent to one endpoint
	KindQuery Kind = iota
	// KindJoin is a binary natural join
	KindJoin
	// KindUnion concatenates its children
	KindUnion
	// KindCartesian is an n-ary cross product
	KindCartesian
	// KindConjunction is an unordered n-ary join the planner must order
	KindConjunction
	// KindPipe carries modifiers for a single child
	KindPipe
	// KindEmpty is a leaf known to produce no solutions
	KindEmpty
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "Query"
	case KindJoin:
		return "Join"
	case KindUnion:
		return "Union"
	case KindCartesian:
		return "Cartesian"
	case KindConjunction:
		return "Conjunction"
	case KindPipe:
		return "Pipe"
	case KindEmpty:
		return "Empty"
	default:
		panic(fmt.Sprintf("plan: unknown node kind %d", k))
	}
}

type node struct {
	kind     Kind
	parent   NodeID
	children []NodeID
	// modifiers of inner nodes; a Query leaf keeps its own in cq
	mods      query.ModifierSet
	cq        *query.CQuery
	endpoint  query.Endpoint
	emptyVars federation.VarSet
	memo      *memo
}

// Tree is an arena of plan nodes with a designated root
type Tree struct {
	nodes  []*node
	root   NodeID
	locked map[NodeID]struct{}
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{root: NoNode, locked: make(map[NodeID]struct{})}
}

// Root returns the root node, NoNode for an empty tree
func (t *Tree) Root() NodeID { return t.root }

// SetRoot designates the root. The node must not have a parent.
func (t *Tree) SetRoot(id NodeID) {
	if id != NoNode && t.node(id).parent != NoNode {
		panic(fmt.Sprintf("plan: root %d has a parent", id))
	}
	t.root = id
}

// Len returns the number of nodes in the arena, attached or not
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) node(id NodeID) *node {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("plan: node %d out of range", id))
	}
	return t.nodes[id]
}

func (t *Tree) add(n *node) NodeID {
	n.parent = NoNode
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// adopt attaches detached children to parent
func (t *Tree) adopt(parent NodeID, children []NodeID) {
	for _, c := range children {
		cn := t.node(c)
		if cn.parent != NoNode || c == t.root {
			panic(fmt.Sprintf("plan: %v: node %d", ErrAttached, c))
		}
		cn.parent = parent
	}
}

// NewQuery creates a leaf evaluating q at ep. The tree keeps its own copy
// of q.
func (t *Tree) NewQuery(q *query.CQuery, ep query.Endpoint) NodeID {
	return t.add(&node{kind: KindQuery, cq: q.Clone(), endpoint: ep})
}

// NewEmpty creates a leaf that produces no solutions over vars
func (t *Tree) NewEmpty(vars federation.VarSet) NodeID {
	return t.add(&node{kind: KindEmpty, emptyVars: vars.Clone()})
}

// NewJoin joins two detached subtrees. It fails with ErrInvalidJoin if
// they share no join variable or depend on each other.
func (t *Tree) NewJoin(left, right NodeID) (NodeID, error) {
	info := t.JoinInfoOf(left, right)
	if !info.Valid() {
		return NoNode, fmt.Errorf("%w: %s", ErrInvalidJoin, info)
	}
	return t.newInner(KindJoin, left, right), nil
}

// NewUnion creates a union of detached subtrees
func (t *Tree) NewUnion(children ...NodeID) NodeID {
	return t.newInner(KindUnion, children...)
}

// NewCartesian creates a cross product of detached subtrees
func (t *Tree) NewCartesian(children ...NodeID) NodeID {
	return t.newInner(KindCartesian, children...)
}

// NewConjunction creates an unordered join of detached subtrees
func (t *Tree) NewConjunction(children ...NodeID) NodeID {
	return t.newInner(KindConjunction, children...)
}

// NewPipe creates a modifier carrier above a detached subtree
func (t *Tree) NewPipe(child NodeID) NodeID {
	return t.newInner(KindPipe, child)
}

func (t *Tree) newInner(kind Kind, children ...NodeID) NodeID {
	id := t.add(&node{kind: kind, children: append([]NodeID(nil), children...)})
	t.adopt(id, children)
	return id
}

// Kind returns the operator kind of a node
func (t *Tree) Kind(id NodeID) Kind { return t.node(id).kind }

// Parent returns the parent of a node, NoNode for the root or a detached node
func (t *Tree) Parent(id NodeID) NodeID { return t.node(id).parent }

// Children returns a copy of the children of a node
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.node(id).children...)
}

// Child returns the i-th child
func (t *Tree) Child(id NodeID, i int) NodeID { return t.node(id).children[i] }

// NumChildren returns the number of children
func (t *Tree) NumChildren(id NodeID) int { return len(t.node(id).children) }

// CQuery returns the query of a Query leaf. The result must not be
// modified; use SetCQuery.
func (t *Tree) CQuery(id NodeID) *query.CQuery {
	n := t.node(id)
	if n.kind != KindQuery {
		return nil
	}
	return n.cq
}

// SetCQuery replaces the query of a Query leaf
func (t *Tree) SetCQuery(id NodeID, q *query.CQuery) {
	n := t.node(id)
	if n.kind != KindQuery {
		panic(fmt.Sprintf("plan: SetCQuery on %s node", n.kind))
	}
	n.cq = q.Clone()
	t.invalidate(id)
}

// Endpoint returns the endpoint of a Query leaf
func (t *Tree) Endpoint(id NodeID) query.Endpoint { return t.node(id).endpoint }

func (t *Tree) modSet(id NodeID) *query.ModifierSet {
	n := t.node(id)
	if n.kind == KindQuery {
		return &n.cq.Modifiers
	}
	return &n.mods
}

// Modifiers returns a copy of the node's modifiers
func (t *Tree) Modifiers(id NodeID) query.ModifierSet { return t.modSet(id).Clone() }

// HasModifier returns true if the node has a modifier of kind k
func (t *Tree) HasModifier(id NodeID, k query.ModifierKind) bool { return t.modSet(id).Has(k) }

// AddModifier adds m to the node and reports whether it changed
func (t *Tree) AddModifier(id NodeID, m query.Modifier) bool {
	if !t.modSet(id).Add(m) {
		return false
	}
	t.invalidate(id)
	return true
}

// RemoveModifier removes m from the node and reports whether it changed
func (t *Tree) RemoveModifier(id NodeID, m query.Modifier) bool {
	if !t.modSet(id).Remove(m) {
		return false
	}
	t.invalidate(id)
	return true
}

// RemoveModifiers removes every modifier of kind k and returns them
func (t *Tree) RemoveModifiers(id NodeID, k query.ModifierKind) []query.Modifier {
	removed := t.modSet(id).RemoveKind(k)
	if len(removed) > 0 {
		t.invalidate(id)
	}
	return removed
}

// Lock protects nodes from being detached by rewrites
func (t *Tree) Lock(ids ...NodeID) {
	for _, id := range ids {
		t.node(id)
		t.locked[id] = struct{}{}
	}
}

// Unlock removes the protection from a node
func (t *Tree) Unlock(id NodeID) { delete(t.locked, id) }

// IsLocked returns true if the node is locked
func (t *Tree) IsLocked(id NodeID) bool {
	_, ok := t.locked[id]
	return ok
}

// Locked returns the locked nodes in ID order
func (t *Tree) Locked() []NodeID {
	out := make([]NodeID, 0, len(t.locked))
	for id := range t.locked {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetChild replaces the i-th child of id with repl and returns the old
// child, now detached. Replacing a node with itself is a no-op.
func (t *Tree) SetChild(id NodeID, i int, repl NodeID) (NodeID, error) {
	n := t.node(id)
	if i < 0 || i >= len(n.children) {
		return NoNode, fmt.Errorf("%w: %s node %d has no child %d", ErrArity, n.kind, id, i)
	}
	old := n.children[i]
	if old == repl {
		return old, nil
	}
	if t.IsLocked(old) {
		return NoNode, fmt.Errorf("%w: cannot detach node %d", ErrLocked, old)
	}
	if t.node(repl).parent != NoNode || repl == t.root {
		return NoNode, fmt.Errorf("%w: node %d", ErrAttached, repl)
	}
	if n.kind == KindJoin {
		other := n.children[1-i]
		l, r := repl, other
		if i == 1 {
			l, r = other, repl
		}
		if info := t.JoinInfoOf(l, r); !info.Valid() {
			return NoNode, fmt.Errorf("%w: %s", ErrInvalidJoin, info)
		}
	}
	n.children[i] = repl
	t.node(old).parent = NoNode
	t.node(repl).parent = id
	t.invalidate(id)
	return old, nil
}

// Replace puts repl where id sits: in its parent's child slot or as the
// root. id becomes detached.
func (t *Tree) Replace(id, repl NodeID) error {
	if id == repl {
		return nil
	}
	parent := t.node(id).parent
	if parent == NoNode {
		if id != t.root {
			return fmt.Errorf("plan: node %d is detached", id)
		}
		if t.node(repl).parent != NoNode {
			return fmt.Errorf("%w: node %d", ErrAttached, repl)
		}
		t.root = repl
		return nil
	}
	for i, c := range t.node(parent).children {
		if c == id {
			_, err := t.SetChild(parent, i, repl)
			return err
		}
	}
	panic(fmt.Sprintf("plan: node %d missing from parent %d", id, parent))
}

// TakeChildren detaches and returns all children of id. Locked children
// must be handed back through SetChildren or attached elsewhere.
func (t *Tree) TakeChildren(id NodeID) []NodeID {
	n := t.node(id)
	kids := n.children
	n.children = nil
	for _, c := range kids {
		t.node(c).parent = NoNode
	}
	t.invalidate(id)
	return kids
}

// SetChildren replaces all children of id. Current children missing from
// kids are detached, which fails for locked nodes. Join and Pipe arities
// are enforced and a Join must stay valid.
func (t *Tree) SetChildren(id NodeID, kids []NodeID) error {
	n := t.node(id)
	switch n.kind {
	case KindJoin:
		if len(kids) != 2 {
			return fmt.Errorf("%w: join needs 2 children, got %d", ErrArity, len(kids))
		}
	case KindPipe:
		if len(kids) != 1 {
			return fmt.Errorf("%w: pipe needs 1 child, got %d", ErrArity, len(kids))
		}
	case KindQuery, KindEmpty:
		if len(kids) != 0 {
			return fmt.Errorf("%w: %s is a leaf", ErrArity, n.kind)
		}
	case KindUnion, KindCartesian, KindConjunction:
	default:
		panic(fmt.Sprintf("plan: unknown node kind %d", n.kind))
	}

	keep := make(map[NodeID]bool, len(kids))
	for _, k := range kids {
		if keep[k] {
			return fmt.Errorf("%w: node %d listed twice", ErrAttached, k)
		}
		keep[k] = true
		if p := t.node(k).parent; (p != NoNode && p != id) || k == t.root {
			return fmt.Errorf("%w: node %d", ErrAttached, k)
		}
	}
	for _, c := range n.children {
		if !keep[c] && t.IsLocked(c) {
			return fmt.Errorf("%w: cannot detach node %d", ErrLocked, c)
		}
	}
	if n.kind == KindJoin {
		if info := t.JoinInfoOf(kids[0], kids[1]); !info.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidJoin, info)
		}
	}

	for _, c := range n.children {
		if !keep[c] {
			t.node(c).parent = NoNode
		}
	}
	n.children = append([]NodeID(nil), kids...)
	for _, k := range kids {
		t.node(k).parent = id
	}
	t.invalidate(id)
	return nil
}

// WrapInPipe inserts a Pipe directly above id and returns it. The pipe
// takes id's place in its parent (or as the root); id itself is never
// detached, so locked nodes can be wrapped.
func (t *Tree) WrapInPipe(id NodeID) NodeID {
	n := t.node(id)
	parent := n.parent
	pipe := t.add(&node{kind: KindPipe, children: []NodeID{id}})
	if parent == NoNode {
		if t.root == id {
			t.root = pipe
		}
	} else {
		pn := t.node(parent)
		for i, c := range pn.children {
			if c == id {
				pn.children[i] = pipe
				break
			}
		}
		t.node(pipe).parent = parent
		t.invalidate(parent)
	}
	n.parent = pipe
	return pipe
}

// invalidate drops the memo of id and of every ancestor
func (t *Tree) invalidate(id NodeID) {
	for cur := id; cur != NoNode; cur = t.nodes[cur].parent {
		t.nodes[cur].memo = nil
	}
}

// Walk visits the subtree rooted at id in pre-order. Returning false from
// fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range t.node(id).children {
		t.Walk(c, fn)
	}
}

// PostOrder returns the subtree rooted at id, children before parents
func (t *Tree) PostOrder(id NodeID) []NodeID {
	var out []NodeID
	var visit func(NodeID)
	visit = func(n NodeID) {
		for _, c := range t.node(n).children {
			visit(c)
		}
		out = append(out, n)
	}
	visit(id)
	return out
}

// Leaves returns the Query leaves under id in left-to-right order
func (t *Tree) Leaves(id NodeID) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if t.Kind(n) == KindQuery {
			out = append(out, n)
		}
		return true
	})
	return out
}
