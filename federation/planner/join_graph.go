package planner

import (
	"github.com/wbrown/janus-federation/federation/plan"
)

// JoinGraph connects the members of a Conjunction that share join
// variables. Edges follow plan.ComputeJoinInfo, so a member whose
// required input is produced by another member is adjacent to it even
// when their result variables are disjoint.
type JoinGraph struct {
	members []plan.NodeID
	attrs   []plan.Attrs
	edges   [][]int
}

// NewJoinGraph builds the graph over members, which may be detached
func NewJoinGraph(t *plan.Tree, members []plan.NodeID) *JoinGraph {
	g := &JoinGraph{
		members: append([]plan.NodeID(nil), members...),
		attrs:   make([]plan.Attrs, len(members)),
		edges:   make([][]int, len(members)),
	}
	for i, m := range members {
		g.attrs[i] = t.Attrs(m)
	}
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			if len(plan.ComputeJoinInfo(g.attrs[i], g.attrs[j]).JoinVars) > 0 {
				g.edges[i] = append(g.edges[i], j)
				g.edges[j] = append(g.edges[j], i)
			}
		}
	}
	return g
}

// Components returns the connected components in member order
func (g *JoinGraph) Components() [][]plan.NodeID {
	component := make([]int, len(g.members))
	for i := range component {
		component[i] = -1
	}
	n := 0
	for start := range g.members {
		if component[start] >= 0 {
			continue
		}
		stack := []int{start}
		component[start] = n
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range g.edges[cur] {
				if component[next] < 0 {
					component[next] = n
					stack = append(stack, next)
				}
			}
		}
		n++
	}

	out := make([][]plan.NodeID, n)
	for i, m := range g.members {
		out[component[i]] = append(out[component[i]], m)
	}
	return out
}
