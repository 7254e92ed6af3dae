package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
)

func TestCompareSemantics(t *testing.T) {
	sol := federation.Solution{
		"n":    federation.NewInteger(5),
		"name": federation.NewLiteral("bob"),
		"u":    federation.NewURI("http://x"),
	}
	tests := []struct {
		expr Expr
		want bool
	}{
		{Cmp(OpLT, Var("n"), Const(federation.NewInteger(10))), true},
		{Cmp(OpGTE, Var("n"), Const(federation.NewTypedLiteral("5.0", federation.XSDDecimal))), true},
		{Cmp(OpEQ, Var("name"), Const(federation.NewLiteral("bob"))), true},
		{Cmp(OpGT, Var("name"), Const(federation.NewLiteral("alice"))), true},
		{Cmp(OpNE, Var("u"), Const(federation.NewURI("http://y"))), true},
		{Not(Cmp(OpEQ, Var("n"), Const(federation.NewInteger(5)))), false},
		{Or(Cmp(OpLT, Var("n"), Const(federation.NewInteger(0))), Bound("name")), true},
	}
	for _, tt := range tests {
		t.Run(tt.expr.String(), func(t *testing.T) {
			got, err := EvalBool(tt.expr, sol)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := EvalBool(Cmp(OpLT, Var("missing"), Const(federation.NewInteger(1))), federation.Solution{})
	assert.ErrorIs(t, err, ErrUnbound)

	// ordering across term kinds is an error, equality is not
	sol := federation.Solution{"u": federation.NewURI("a")}
	_, err = EvalBool(Cmp(OpLT, Var("u"), Const(federation.NewLiteral("a"))), sol)
	assert.Error(t, err)
	ok, err := EvalBool(Cmp(OpEQ, Var("u"), Const(federation.NewLiteral("a"))), sol)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogicalErrorHandling(t *testing.T) {
	unbound := Cmp(OpEQ, Var("missing"), Const(federation.NewInteger(1)))
	falsy := Cmp(OpEQ, Const(federation.NewInteger(1)), Const(federation.NewInteger(2)))
	truthy := Cmp(OpEQ, Const(federation.NewInteger(1)), Const(federation.NewInteger(1)))

	ok, err := EvalBool(And(unbound, falsy), federation.Solution{})
	require.NoError(t, err, "a false operand decides AND")
	assert.False(t, ok)

	ok, err = EvalBool(Or(unbound, truthy), federation.Solution{})
	require.NoError(t, err, "a true operand decides OR")
	assert.True(t, ok)

	_, err = EvalBool(And(unbound, truthy), federation.Solution{})
	assert.Error(t, err)
}

func TestBoundExpr(t *testing.T) {
	ok, err := EvalBool(Bound("x"), federation.Solution{})
	require.NoError(t, err)
	assert.False(t, ok)

	e := Bound("x").Bind(federation.Solution{"x": federation.NewInteger(1)})
	assert.Empty(t, e.VarsMentioned())
	ok, err = EvalBool(e, federation.Solution{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConjunctsAndSubExprs(t *testing.T) {
	a := Cmp(OpLT, Var("x"), Var("y"))
	b := Cmp(OpEQ, Var("z"), Const(federation.NewInteger(1)))
	c := Or(Bound("w"), Bound("v"))
	e := And(a, And(b, c))

	assert.Equal(t, []Expr{a, b, c}, Conjuncts(e))
	assert.Len(t, Conjuncts(c), 1, "OR does not split")
	// And, two comparisons, the OR and its two BOUND leaves
	assert.Len(t, BooleanSubExprs(e), 6)
	assert.Equal(t, federation.NewVarSet("x", "y", "z", "w", "v"), e.VarsMentioned())
}

func TestBindSpecialises(t *testing.T) {
	e := Cmp(OpLT, Var("x"), Var("y"))
	bound := e.Bind(federation.Solution{"y": federation.NewInteger(3)})
	assert.Equal(t, federation.NewVarSet("x"), bound.VarsMentioned())
	assert.Equal(t, `(?x < "3"^^<`+federation.XSDInteger+`>)`, bound.String())
}
