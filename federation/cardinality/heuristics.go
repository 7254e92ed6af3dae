package cardinality

import (
	"math"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

// Heuristic estimates the cardinality of a leaf pattern. A heuristic that
// has no opinion returns Unknown.
type Heuristic interface {
	Estimate(q *query.CQuery) Cardinality
}

// HeuristicFunc adapts a function to the Heuristic interface
type HeuristicFunc func(q *query.CQuery) Cardinality

func (f HeuristicFunc) Estimate(q *query.CQuery) Cardinality { return f(q) }

// Ground mask bits: which positions of a triple are not variables
const (
	groundO = 1 << iota
	groundP
	groundS
)

// DefaultTripleCosts maps a ground mask to an estimated number of matches
var DefaultTripleCosts = [8]float64{
	0:                           1_000_000,
	groundO:                     10_000,
	groundP:                     100_000,
	groundP | groundO:           1_000,
	groundS:                     100,
	groundS | groundO:           10,
	groundS | groundP:           5,
	groundS | groundP | groundO: 1,
}

// TripleHeuristic estimates basic graph patterns from triple shapes:
// a per-triple cost table, predicate multipliers, star merging for
// triples sharing a subject and chain combination along subject/object
// links.
type TripleHeuristic struct {
	Costs [8]float64
	// TypeClassFactor scales `?x rdf:type <Class>`, classes are large
	TypeClassFactor float64
	// TypeOfFactor scales `<s> rdf:type ?c`, subjects have few types
	TypeOfFactor float64
	// SameAsFactor scales owl:sameAs lookups with a ground end
	SameAsFactor float64
	// MaxStarDiscount caps the reduction applied to large stars
	MaxStarDiscount float64
	// ChainFactor weighs the sum of two linked stars
	ChainFactor float64
}

// NewTripleHeuristic returns the heuristic with its default tuning
func NewTripleHeuristic() *TripleHeuristic {
	return &TripleHeuristic{
		Costs:           DefaultTripleCosts,
		TypeClassFactor: 20,
		TypeOfFactor:    0.5,
		SameAsFactor:    0.1,
		MaxStarDiscount: 0.3,
		ChainFactor:     0.0625,
	}
}

// TripleCost estimates a single triple pattern
func (h *TripleHeuristic) TripleCost(t federation.Triple) float64 {
	mask := 0
	if t.S.IsGround() {
		mask |= groundS
	}
	if t.P.IsGround() {
		mask |= groundP
	}
	if t.O.IsGround() {
		mask |= groundO
	}
	cost := h.Costs[mask]
	if t.P.IsGround() && t.P.Kind == federation.URI {
		switch t.P.Value {
		case federation.RDFType:
			switch {
			case t.O.IsGround() && !t.S.IsGround():
				cost *= h.TypeClassFactor
			case t.S.IsGround() && !t.O.IsGround():
				cost *= h.TypeOfFactor
			}
		case federation.OWLSameAs:
			if t.S.IsGround() || t.O.IsGround() {
				cost *= h.SameAsFactor
			}
		}
	}
	return math.Max(cost, 1)
}

type star struct {
	subject federation.Term
	triples []federation.Triple
	cost    float64
}

// Estimate implements Heuristic
func (h *TripleHeuristic) Estimate(q *query.CQuery) Cardinality {
	if len(q.Triples) == 0 {
		rows := int64(1)
		for _, v := range q.Modifiers.Values() {
			rows = saturatingMul(rows, int64(len(v.Rows)))
		}
		return NewExact(rows)
	}
	stars := h.stars(q.Triples)
	return NewGuess(int64(math.Round(h.chains(stars))))
}

func (h *TripleHeuristic) stars(triples []federation.Triple) []*star {
	var out []*star
	index := make(map[federation.Term]*star)
	for _, t := range triples {
		s, ok := index[t.S]
		if !ok {
			s = &star{subject: t.S}
			index[t.S] = s
			out = append(out, s)
		}
		s.triples = append(s.triples, t)
	}
	for _, s := range out {
		sum := 0.0
		for _, t := range s.triples {
			sum += h.TripleCost(t)
		}
		n := float64(len(s.triples))
		discount := h.MaxStarDiscount * (1 - 1/n)
		s.cost = sum / n * (1 - discount)
	}
	return out
}

// chains walks subject/object links between stars depth first, combining
// each star with the stars it reaches. Stars on the current path are
// skipped so cycles terminate.
func (h *TripleHeuristic) chains(stars []*star) float64 {
	bySubject := make(map[federation.Term]int, len(stars))
	for i, s := range stars {
		bySubject[s.subject] = i
	}
	links := make([][]int, len(stars))
	targeted := make([]bool, len(stars))
	for i, s := range stars {
		for _, t := range s.triples {
			if j, ok := bySubject[t.O]; ok && j != i {
				links[i] = append(links[i], j)
				targeted[j] = true
			}
		}
	}

	done := make([]bool, len(stars))
	onPath := make([]bool, len(stars))
	var walk func(i int) float64
	walk = func(i int) float64 {
		onPath[i] = true
		done[i] = true
		acc := stars[i].cost
		for _, j := range links[i] {
			if onPath[j] || done[j] {
				continue
			}
			acc = h.combine(acc, walk(j))
		}
		onPath[i] = false
		return acc
	}

	total, started := 0.0, false
	visit := func(i int) {
		c := walk(i)
		if !started {
			total, started = c, true
			return
		}
		total = h.combine(total, c)
	}
	for i := range stars {
		if !targeted[i] && !done[i] {
			visit(i)
		}
	}
	// anything left sits on a cycle with no entry point
	for i := range stars {
		if !done[i] {
			visit(i)
		}
	}
	return total
}

func (h *TripleHeuristic) combine(a, b float64) float64 {
	return (a+b)/2 + h.ChainFactor*(a+b) + 1
}

// LimitHeuristic bounds patterns carrying Ask or Limit from above
var LimitHeuristic = HeuristicFunc(func(q *query.CQuery) Cardinality {
	if q.Modifiers.Has(query.KindAsk) {
		return NewUpperBound(1)
	}
	if l, ok := q.Modifiers.Limit(); ok {
		return NewUpperBound(int64(l.N))
	}
	return Unknown
})

// Estimator is implemented by endpoints that can estimate their own
// patterns, typically exactly
type Estimator interface {
	EstimateCardinality(q *query.CQuery) Cardinality
}
