package cardinality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

func tp(s, p, o string) federation.Triple {
	return federation.NewTriple(federation.MustParseTerm(s), federation.MustParseTerm(p), federation.MustParseTerm(o))
}

func TestTripleCost(t *testing.T) {
	h := NewTripleHeuristic()

	assert.Equal(t, 1.0, h.TripleCost(tp("<a>", "<p>", "<b>")))
	assert.Equal(t, 5.0, h.TripleCost(tp("<a>", "<p>", "?o")))
	assert.Equal(t, 1000.0, h.TripleCost(tp("?s", "<p>", "<b>")))
	assert.Equal(t, 100000.0, h.TripleCost(tp("?s", "<p>", "?o")))
	assert.Equal(t, 1000000.0, h.TripleCost(tp("?s", "?p", "?o")))

	// more selective shapes never cost more
	assert.Less(t, h.TripleCost(tp("<a>", "<p>", "?o")), h.TripleCost(tp("?s", "<p>", "?o")))
}

func TestTripleCostPredicateMultipliers(t *testing.T) {
	h := NewTripleHeuristic()
	typ := "<" + federation.RDFType + ">"
	same := "<" + federation.OWLSameAs + ">"

	assert.Equal(t, 20000.0, h.TripleCost(tp("?s", typ, "<Person>")))
	assert.Equal(t, 2.5, h.TripleCost(tp("<alice>", typ, "?c")))
	assert.Equal(t, 1.0, h.TripleCost(tp("<alice>", same, "?x")), "clamped to one")
	assert.Equal(t, 100.0, h.TripleCost(tp("?x", same, "<alice>")))
}

func TestStarDiscount(t *testing.T) {
	h := NewTripleHeuristic()
	single := h.Estimate(query.NewCQuery([]federation.Triple{tp("?s", "<p>", "?o")}))
	star := h.Estimate(query.NewCQuery([]federation.Triple{
		tp("?s", "<p>", "?o"),
		tp("?s", "<q>", "?o2"),
	}))

	assert.Equal(t, Guess, star.Reliability())
	// average of two equal costs, discounted by 15%
	assert.Equal(t, int64(85000), star.Value(0))
	assert.Less(t, star.Value(0), single.Value(0))
}

func TestChainCombination(t *testing.T) {
	h := NewTripleHeuristic()
	// <a> <p> ?x . ?x <q> <b>  : star costs 5 and 1000
	c := h.Estimate(query.NewCQuery([]federation.Triple{
		tp("<a>", "<p>", "?x"),
		tp("?x", "<q>", "<b>"),
	}))
	want := (5.0+1000.0)/2 + 0.0625*(5.0+1000.0) + 1
	assert.Equal(t, int64(want+0.5), c.Value(0))
}

func TestChainCycleTerminates(t *testing.T) {
	h := NewTripleHeuristic()
	c := h.Estimate(query.NewCQuery([]federation.Triple{
		tp("?a", "<p>", "?b"),
		tp("?b", "<p>", "?c"),
		tp("?c", "<p>", "?a"),
	}))
	assert.True(t, c.Known())
	assert.Positive(t, c.Value(0))
}

func TestEstimateValuesOnly(t *testing.T) {
	h := NewTripleHeuristic()
	q := query.NewCQuery(nil, query.Values{
		Vars: []string{"x"},
		Rows: []federation.Solution{{"x": federation.NewInteger(1)}, {"x": federation.NewInteger(2)}},
	})
	assert.Equal(t, NewExact(2), h.Estimate(q))
}

func TestLimitHeuristic(t *testing.T) {
	triples := []federation.Triple{tp("?s", "<p>", "?o")}
	assert.Equal(t, NewUpperBound(1), LimitHeuristic.Estimate(query.NewCQuery(triples, query.Ask{})))
	assert.Equal(t, NewUpperBound(7), LimitHeuristic.Estimate(query.NewCQuery(triples, query.Limit{N: 7})))
	assert.Equal(t, Unknown, LimitHeuristic.Estimate(query.NewCQuery(triples)))

	// the ensemble keeps the worse of a guess and a bound
	got := Ensemble(NewTripleHeuristic().Estimate(query.NewCQuery(triples, query.Limit{N: 7})),
		LimitHeuristic.Estimate(query.NewCQuery(triples, query.Limit{N: 7})))
	assert.Equal(t, NewGuess(100000), got)
}
