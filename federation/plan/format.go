package plan

import (
	"fmt"
	"strings"
)

// Format renders the subtree rooted at id, one node per line, children
// indented below their parent. Locked nodes are marked with '*'.
func (t *Tree) Format(id NodeID) string {
	var b strings.Builder
	t.format(&b, id, 0)
	return b.String()
}

func (t *Tree) format(b *strings.Builder, id NodeID, depth int) {
	n := t.node(id)
	b.WriteString(strings.Repeat("  ", depth))
	if t.IsLocked(id) {
		b.WriteByte('*')
	}
	b.WriteString(n.kind.String())
	switch n.kind {
	case KindQuery:
		name := "?"
		if n.endpoint != nil {
			name = n.endpoint.Name()
		}
		fmt.Fprintf(b, "@%s %s", name, n.cq)
	case KindEmpty:
		fmt.Fprintf(b, " %s", n.emptyVars)
	case KindJoin:
		fmt.Fprintf(b, " on %s", t.JoinInfo(id).JoinVars)
	}
	if n.kind != KindQuery && n.mods.Len() > 0 {
		b.WriteString(" " + n.mods.String())
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		t.format(b, c, depth+1)
	}
}

// String formats the whole tree
func (t *Tree) String() string {
	if t.root == NoNode {
		return "<empty plan>\n"
	}
	return t.Format(t.root)
}
