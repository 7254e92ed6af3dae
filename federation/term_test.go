package federation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTermRoundTrip(t *testing.T) {
	terms := []Term{
		NewURI("http://example.org/alice"),
		NewLiteral("hello \"world\""),
		NewLangLiteral("bonjour", "fr"),
		NewTypedLiteral("2024-01-01", "http://www.w3.org/2001/XMLSchema#date"),
		NewInteger(-42),
		NewBoolean(true),
		NewBlank("b0"),
		NewVar("x"),
	}
	for _, term := range terms {
		t.Run(term.String(), func(t *testing.T) {
			parsed, err := ParseTerm(term.String())
			require.NoError(t, err)
			assert.Equal(t, term, parsed)
		})
	}
}

func TestParseTermShorthand(t *testing.T) {
	assert.Equal(t, NewInteger(7), MustParseTerm("7"))
	assert.Equal(t, NewTypedLiteral("1.5", XSDDecimal), MustParseTerm("1.5"))
	assert.Equal(t, NewBoolean(false), MustParseTerm("false"))
	assert.Equal(t, NewVar("y"), MustParseTerm("$y"))

	for _, bad := range []string{"", "?", "<open", "\"x\"^^dt", "bare"} {
		_, err := ParseTerm(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestTermPredicates(t *testing.T) {
	v := NewVar("?x")
	assert.Equal(t, "x", v.Value)
	assert.True(t, v.IsVariable())
	assert.False(t, v.IsGround())
	assert.True(t, Term{}.IsZero())

	n, ok := NewInteger(3).Numeric()
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	_, ok = NewLangLiteral("3", "en").Numeric()
	assert.False(t, ok)

	b, ok := NewBoolean(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)
}

func TestTripleMatch(t *testing.T) {
	pattern := NewTriple(NewVar("s"), NewURI("knows"), NewVar("s"))
	self := NewTriple(NewURI("a"), NewURI("knows"), NewURI("a"))
	other := NewTriple(NewURI("a"), NewURI("knows"), NewURI("b"))

	sol := pattern.Match(self, Solution{})
	require.NotNil(t, sol)
	assert.Equal(t, NewURI("a"), sol["s"])
	assert.Nil(t, pattern.Match(other, Solution{}), "repeated variable must bind consistently")
	assert.Nil(t, pattern.Match(self, Solution{"s": NewURI("z")}))

	bound := pattern.Bind(Solution{"s": NewURI("a")})
	assert.True(t, bound.IsGround())
	assert.Equal(t, NewVarSet("s"), pattern.Vars())
}

func TestSolution(t *testing.T) {
	a := Solution{"x": NewInteger(1), "y": NewURI("u")}
	b := Solution{"y": NewURI("u"), "z": NewLiteral("z")}
	c := Solution{"y": NewURI("v")}

	assert.True(t, a.Compatible(b))
	assert.False(t, a.Compatible(c))
	assert.Len(t, a.Merge(b), 3)
	assert.Equal(t, Solution{"x": NewInteger(1)}, a.Project([]string{"x", "missing"}))
	assert.Equal(t, `{?x="1"^^<`+XSDInteger+`>, ?y=<u>}`, a.String())

	clone := a.Clone()
	clone["x"] = NewInteger(2)
	assert.Equal(t, NewInteger(1), a["x"])
}

func TestVarSet(t *testing.T) {
	a := NewVarSet("?x", "y", "$z")
	b := NewVarSet("z", "w")

	assert.Equal(t, []string{"x", "y", "z"}, a.Sorted())
	assert.Equal(t, NewVarSet("z"), a.Intersect(b))
	assert.Equal(t, NewVarSet("x", "y"), a.Minus(b))
	assert.Equal(t, NewVarSet("w", "x", "y", "z"), a.Union(b))
	assert.True(t, a.Intersects(b))
	assert.True(t, a.ContainsAll(NewVarSet("x", "z")))
	assert.False(t, a.ContainsAll(b))
	assert.True(t, NewVarSet().ContainsAll(NewVarSet()))
	assert.Equal(t, "[?x ?y ?z]", a.String())
}
