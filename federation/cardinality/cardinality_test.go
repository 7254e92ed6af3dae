package cardinality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReliabilityOrder(t *testing.T) {
	tests := []struct {
		a, b Reliability
		cmp  int
		ok   bool
	}{
		{Unsupported, Guess, -1, true},
		{Guess, LowerBound, -1, true},
		{Guess, UpperBound, -1, true},
		{LowerBound, Exact, -1, true},
		{UpperBound, Exact, -1, true},
		{Exact, Guess, 1, true},
		{Exact, Exact, 0, true},
		{LowerBound, UpperBound, 0, false},
	}
	for _, tt := range tests {
		c, ok := tt.a.Compare(tt.b)
		assert.Equal(t, tt.ok, ok, "%s vs %s", tt.a, tt.b)
		if ok {
			assert.Equal(t, tt.cmp, c, "%s vs %s", tt.a, tt.b)
		}
	}
}

func TestMeet(t *testing.T) {
	assert.Equal(t, Guess, Meet(LowerBound, UpperBound))
	assert.Equal(t, UpperBound, Meet(UpperBound, Exact))
	assert.Equal(t, Unsupported, Meet(Unsupported, Exact))
	assert.Equal(t, Exact, Meet(Exact, Exact))
}

func TestCompareAndWorst(t *testing.T) {
	assert.Positive(t, Compare(NewExact(10), NewExact(5)))
	assert.Positive(t, Compare(Unknown, NewExact(1_000_000)))
	assert.Positive(t, Compare(NewGuess(5), NewExact(5)), "ties go to the less reliable side")
	assert.Positive(t, Compare(NewLowerBound(5), NewUpperBound(5)))
	assert.Zero(t, Compare(NewGuess(3), NewGuess(3)))

	assert.Equal(t, NewExact(10), Worst(NewExact(10), NewGuess(5)))
	assert.Equal(t, NewGuess(5), Worst(NewExact(5), NewGuess(5)))
}

func TestJoin(t *testing.T) {
	t.Run("worst side with met reliability", func(t *testing.T) {
		c := Join(NewExact(100), NewGuess(10))
		assert.Equal(t, int64(100), c.Value(-1))
		assert.Equal(t, Guess, c.Reliability())
	})

	t.Run("never more reliable than inputs", func(t *testing.T) {
		inputs := []Cardinality{NewExact(4), NewGuess(7), NewLowerBound(3), NewUpperBound(9)}
		for _, a := range inputs {
			for _, b := range inputs {
				r := Join(a, b).Reliability()
				assert.True(t, a.Reliability().AtLeast(r), "%s ⋈ %s", a, b)
				assert.True(t, b.Reliability().AtLeast(r), "%s ⋈ %s", a, b)
			}
		}
	})

	t.Run("empty is absorbing", func(t *testing.T) {
		assert.True(t, Join(Empty, NewGuess(1000)).IsEmpty())
		assert.True(t, Join(Unknown, Empty).IsEmpty())
	})

	t.Run("unknown side", func(t *testing.T) {
		assert.False(t, Join(Unknown, NewExact(3)).Known())
	})
}

func TestUnion(t *testing.T) {
	c := Union(NewExact(3), NewExact(4))
	assert.Equal(t, NewExact(7), c)

	c = Union(NewExact(3), NewUpperBound(4), NewLowerBound(1))
	assert.Equal(t, int64(8), c.Value(0))
	assert.Equal(t, Guess, c.Reliability())

	assert.Equal(t, NewGuess(5), Union(Empty, NewGuess(5)), "empty is neutral")
	assert.False(t, Union(NewExact(1), Unknown).Known())
	assert.Equal(t, Empty, Union())
}

func TestProduct(t *testing.T) {
	assert.Equal(t, NewExact(12), Product(NewExact(3), NewExact(4)))
	c := Product(NewExact(3), NewUpperBound(4))
	assert.Equal(t, NewUpperBound(12), c)
	assert.True(t, Product(NewGuess(100), Empty, Unknown).IsEmpty())
	assert.Equal(t, int64(math.MaxInt64), Product(NewGuess(math.MaxInt64), NewGuess(2)).Value(0))
}

func TestEnsemble(t *testing.T) {
	tests := []struct {
		name string
		in   []Cardinality
		want Cardinality
	}{
		{"worst exact wins", []Cardinality{NewGuess(1), NewExact(10), NewExact(40)}, NewExact(40)},
		{"exact beats larger guess", []Cardinality{NewGuess(1000), NewExact(2)}, NewExact(2)},
		{"worst non-exact", []Cardinality{NewGuess(10), NewUpperBound(50)}, NewUpperBound(50)},
		{"unknown abstains", []Cardinality{Unknown, NewGuess(3)}, NewGuess(3)},
		{"nothing known", []Cardinality{Unknown}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ensemble(tt.in...))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "exact(3)", NewExact(3).String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "upper-bound(1)", NewUpperBound(1).String())
}
