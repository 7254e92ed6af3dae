package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
)

func tp(s, p, o string) federation.Triple {
	return federation.NewTriple(federation.MustParseTerm(s), federation.MustParseTerm(p), federation.MustParseTerm(o))
}

func TestModifierSet(t *testing.T) {
	s := NewModifierSet(Limit{N: 5}, Distinct{})
	assert.False(t, s.Add(Distinct{}), "duplicates are ignored")
	assert.True(t, s.Add(Limit{N: 3}), "singleton kinds are replaced")
	l, ok := s.Limit()
	require.True(t, ok)
	assert.Equal(t, 3, l.N)
	assert.Equal(t, 2, s.Len())

	f1 := NewFilter(Cmp(OpLT, Var("x"), Var("y")))
	f2 := NewFilter(Bound("z"))
	assert.True(t, s.Add(f1))
	assert.True(t, s.Add(f2))
	assert.False(t, s.Add(NewFilter(Cmp(OpLT, Var("x"), Var("y")))))
	assert.Len(t, s.Filters(), 2)
	assert.Equal(t, federation.NewVarSet("x", "y", "z"), s.FilterVars())

	clone := s.Clone()
	assert.True(t, s.Remove(f1))
	assert.Len(t, clone.Filters(), 2, "clone is independent")
	removed := s.RemoveKind(KindFilter)
	assert.Equal(t, []Modifier{f2}, removed)
	assert.False(t, s.Has(KindFilter))
}

func TestValuesRestrictAndBind(t *testing.T) {
	one, two := federation.NewInteger(1), federation.NewInteger(2)
	v := Values{
		Vars: []string{"x", "y"},
		Rows: []federation.Solution{
			{"x": one, "y": one},
			{"x": one, "y": two},
			{"x": two, "y": two},
		},
	}

	r, ok := v.Restrict(federation.NewVarSet("x"))
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, r.Vars)
	assert.Len(t, r.Rows, 2, "duplicate rows collapse")

	_, ok = v.Restrict(federation.NewVarSet("z"))
	assert.False(t, ok)

	b := v.Bind(federation.Solution{"x": one})
	assert.Equal(t, []string{"y"}, b.Vars)
	assert.Len(t, b.Rows, 2)

	assert.True(t, v.Accepts(federation.Solution{"x": two}))
	assert.False(t, v.Accepts(federation.Solution{"x": two, "y": one}))
}

func TestValuesWithoutRowsAcceptsNothing(t *testing.T) {
	sol := federation.Solution{"x": federation.NewInteger(1)}
	assert.False(t, Values{}.Accepts(sol))
	assert.False(t, Values{Vars: []string{"x"}}.Accepts(sol))

	// one empty row is the unit table
	unit := Values{Rows: []federation.Solution{{}}}
	assert.True(t, unit.Accepts(sol))

	// binding every column away leaves no rows when nothing matched
	v := Values{Vars: []string{"x"}, Rows: []federation.Solution{{"x": federation.NewInteger(2)}}}
	assert.False(t, v.Bind(sol).Accepts(sol))
}

func TestCQueryVars(t *testing.T) {
	q := NewCQuery([]federation.Triple{tp("?s", "<name>", "?n")},
		NewFilter(Cmp(OpLT, Var("n"), Var("limit"))))

	assert.Equal(t, federation.NewVarSet("s", "n", "limit"), q.AllVars())
	assert.Equal(t, federation.NewVarSet("limit"), q.RequiredInputVars())
	assert.Equal(t, federation.NewVarSet("s", "n", "limit"), q.ResultVars())

	q.Modifiers.Add(Projection{Vars: []string{"s"}})
	assert.Equal(t, federation.NewVarSet("s"), q.ResultVars())

	q.Modifiers.Add(Ask{})
	assert.Empty(t, q.ResultVars())

	q2 := NewCQuery([]federation.Triple{tp("?s", "<p>", "?o")})
	q2.OptionalInputs = federation.NewVarSet("o", "s")
	q2.RequiredInputs = federation.NewVarSet("s")
	assert.Equal(t, federation.NewVarSet("o"), q2.OptionalInputVars())
	assert.Equal(t, federation.NewVarSet("s"), q2.RequiredInputVars())
}

func TestCQueryBind(t *testing.T) {
	q := NewCQuery([]federation.Triple{tp("?s", "<p>", "?o")},
		NewFilter(Cmp(OpGT, Var("o"), Const(federation.NewInteger(3)))),
		Projection{Vars: []string{"s", "o"}})
	q.RequiredInputs = federation.NewVarSet("s")

	b := q.Bind(federation.Solution{"s": federation.NewURI("a")})
	assert.Equal(t, tp("<a>", "<p>", "?o"), b.Triples[0])
	assert.Empty(t, b.RequiredInputs)
	p, _ := b.Modifiers.Projection()
	assert.Equal(t, []string{"o"}, p.Vars)
	assert.Len(t, b.Modifiers.Filters(), 1, "filters are specialised, not dropped")
	assert.Len(t, q.Triples, 1)
	assert.Equal(t, tp("?s", "<p>", "?o"), q.Triples[0], "original untouched")
}

func TestCQueryMerge(t *testing.T) {
	a := NewCQuery([]federation.Triple{tp("?s", "<name>", "?n")})
	b := NewCQuery([]federation.Triple{tp("?s", "<age>", "?a"), tp("?s", "<name>", "?n")},
		NewFilter(Cmp(OpGT, Var("a"), Const(federation.NewInteger(18)))))

	m, err := a.Merge(b)
	require.NoError(t, err)
	assert.Len(t, m.Triples, 2, "shared triples are deduplicated")
	assert.Len(t, m.Modifiers.Filters(), 1)
	assert.Equal(t, federation.NewVarSet("s", "n", "a"), m.ResultVars())

	unsafe := []struct {
		name string
		a, b *CQuery
	}{
		{"limit", NewCQuery(a.Triples, Limit{N: 1}), b},
		{"ask", a, NewCQuery(b.Triples, Ask{})},
		{"optional", a, NewCQuery(b.Triples, Optional{})},
		{"distinct on one side", NewCQuery(a.Triples, Distinct{}), b},
		{"hidden variable", NewCQuery(b.Triples, Projection{Vars: []string{"s"}}), a},
		{"shared blank", NewCQuery([]federation.Triple{tp("_:x", "<p>", "?o")}), NewCQuery([]federation.Triple{tp("_:x", "<q>", "?z")})},
	}
	for _, tt := range unsafe {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.a.Merge(tt.b)
			assert.ErrorIs(t, err, ErrUnsafeMerge)
		})
	}
}

func TestCapabilities(t *testing.T) {
	c := CapFilter.With(CapLimit)
	assert.True(t, c.Supports(KindFilter))
	assert.False(t, c.Supports(KindDistinct))
	assert.True(t, AllCapabilities.Supports(KindValues))
	assert.Equal(t, "{filter,limit}", c.String())

	parsed, ok := ParseCapability(" Distinct ")
	require.True(t, ok)
	assert.Equal(t, CapDistinct, parsed)
	_, ok = ParseCapability("teleport")
	assert.False(t, ok)
}
