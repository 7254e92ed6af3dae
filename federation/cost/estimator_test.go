package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// exactEndpoint answers every estimate with a fixed exact count
type exactEndpoint struct {
	name string
	n    int64
}

func (e exactEndpoint) Name() string                       { return e.name }
func (e exactEndpoint) Capabilities() query.Capabilities { return query.AllCapabilities }
func (e exactEndpoint) EstimateCardinality(*query.CQuery) cardinality.Cardinality {
	return cardinality.NewExact(e.n)
}

type plainEndpoint string

func (e plainEndpoint) Name() string                       { return string(e) }
func (e plainEndpoint) Capabilities() query.Capabilities { return query.AllCapabilities }

func tp(s, p, o string) federation.Triple {
	return federation.NewTriple(federation.MustParseTerm(s), federation.MustParseTerm(p), federation.MustParseTerm(o))
}

func TestLeafPrefersEndpointExact(t *testing.T) {
	e := NewEstimator()
	q := query.NewCQuery([]federation.Triple{tp("?s", "<p>", "?o")})
	assert.Equal(t, cardinality.NewExact(42), e.Leaf(q, exactEndpoint{"a", 42}))
	assert.Equal(t, cardinality.Guess, e.Leaf(q, plainEndpoint("b")).Reliability())
}

func TestStructuralCombination(t *testing.T) {
	e := NewEstimator()
	tree := plan.NewTree()
	a := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?x", "<p>", "?y")}), exactEndpoint{"a", 10})
	b := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?y", "<q>", "?z")}), exactEndpoint{"b", 30})
	j, err := tree.NewJoin(a, b)
	require.NoError(t, err)
	c := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?w", "<r>", "?v")}), exactEndpoint{"c", 4})
	cart := tree.NewCartesian(j, c)
	d := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?x", "<p>", "?y")}), exactEndpoint{"d", 5})
	u := tree.NewUnion(cart, d)
	tree.SetRoot(u)

	assert.Equal(t, cardinality.NewExact(30), e.Compute(tree, j))
	assert.Equal(t, cardinality.NewExact(120), e.Compute(tree, cart))
	assert.Equal(t, cardinality.NewExact(125), e.Compute(tree, u))

	cached, ok := tree.CachedCardinality(u)
	require.True(t, ok)
	assert.Equal(t, cardinality.NewExact(125), cached)

	tree.AddModifier(u, query.Limit{N: 7})
	_, ok = tree.CachedCardinality(u)
	assert.False(t, ok)
	assert.Equal(t, cardinality.NewExact(7), e.Compute(tree, u))
}

func TestEmptyAbsorbs(t *testing.T) {
	e := NewEstimator()
	tree := plan.NewTree()
	a := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?x", "<p>", "?y")}), plainEndpoint("a"))
	empty := tree.NewEmpty(federation.NewVarSet("y"))
	j, err := tree.NewJoin(a, empty)
	require.NoError(t, err)
	assert.True(t, e.Compute(tree, j).IsEmpty())
}

func TestAskBoundsInnerNodes(t *testing.T) {
	e := NewEstimator()
	tree := plan.NewTree()
	a := tree.NewQuery(query.NewCQuery([]federation.Triple{tp("?x", "<p>", "?y")}), plainEndpoint("a"))
	p := tree.NewPipe(a)
	tree.AddModifier(p, query.Ask{})
	assert.Equal(t, cardinality.NewUpperBound(1), e.Compute(tree, p))
}
