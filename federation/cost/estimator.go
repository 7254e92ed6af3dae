// Package cost estimates the cardinality of plan subtrees by combining
// leaf heuristics with the structural rules of each operator.
package cost

import (
	"fmt"

	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// Estimator computes subtree cardinalities. Leaf estimates come from an
// ensemble of heuristics plus the endpoint's own estimate when the
// endpoint implements cardinality.Estimator.
type Estimator struct {
	Heuristics []cardinality.Heuristic
}

// NewEstimator returns an estimator with the triple-shape and limit
// heuristics
func NewEstimator() *Estimator {
	return &Estimator{
		Heuristics: []cardinality.Heuristic{
			cardinality.NewTripleHeuristic(),
			cardinality.LimitHeuristic,
		},
	}
}

// Leaf estimates a single query sent to ep
func (e *Estimator) Leaf(q *query.CQuery, ep query.Endpoint) cardinality.Cardinality {
	answers := make([]cardinality.Cardinality, 0, len(e.Heuristics)+1)
	for _, h := range e.Heuristics {
		answers = append(answers, h.Estimate(q))
	}
	if est, ok := ep.(cardinality.Estimator); ok {
		answers = append(answers, est.EstimateCardinality(q))
	}
	return cardinality.Ensemble(answers...)
}

// Compute returns the cardinality of the subtree rooted at id, memoized on
// the tree
func (e *Estimator) Compute(t *plan.Tree, id plan.NodeID) cardinality.Cardinality {
	if c, ok := t.CachedCardinality(id); ok {
		return c
	}
	c := e.compute(t, id)
	t.SetCachedCardinality(id, c)
	return c
}

func (e *Estimator) compute(t *plan.Tree, id plan.NodeID) cardinality.Cardinality {
	var c cardinality.Cardinality
	switch t.Kind(id) {
	case plan.KindQuery:
		return e.Leaf(t.CQuery(id), t.Endpoint(id))
	case plan.KindEmpty:
		return cardinality.Empty
	case plan.KindPipe:
		c = e.Compute(t, t.Child(id, 0))
	case plan.KindJoin, plan.KindConjunction:
		kids := t.Children(id)
		c = e.Compute(t, kids[0])
		for _, k := range kids[1:] {
			c = cardinality.Join(c, e.Compute(t, k))
		}
	case plan.KindUnion:
		c = cardinality.Union(e.children(t, id)...)
	case plan.KindCartesian:
		c = cardinality.Product(e.children(t, id)...)
	default:
		panic(fmt.Sprintf("cost: unknown node kind %d", t.Kind(id)))
	}
	return applyModifiers(c, t.Modifiers(id))
}

func (e *Estimator) children(t *plan.Tree, id plan.NodeID) []cardinality.Cardinality {
	kids := t.Children(id)
	out := make([]cardinality.Cardinality, len(kids))
	for i, k := range kids {
		out[i] = e.Compute(t, k)
	}
	return out
}

// applyModifiers bounds an inner node's estimate by its Ask or Limit
func applyModifiers(c cardinality.Cardinality, mods query.ModifierSet) cardinality.Cardinality {
	bound := int64(-1)
	if mods.Has(query.KindAsk) {
		bound = 1
	} else if l, ok := mods.Limit(); ok {
		bound = int64(l.N)
	}
	if bound < 0 || c.IsEmpty() {
		return c
	}
	if c.Known() && c.Value(0) <= bound {
		return c
	}
	if c.Reliability() == cardinality.Exact {
		return cardinality.NewExact(bound)
	}
	return cardinality.NewUpperBound(bound)
}
