package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

func people() *SliceResults {
	return NewSliceResults([]string{"a", "x"}, []federation.Solution{
		sol("x", "<alice>", "a", "30"),
		sol("x", "<bob>", "a", "25"),
		sol("x", "<carol>", "a", "35"),
		sol("x", "<bob>", "a", "25"),
	})
}

func applied(t *testing.T, mods ...query.Modifier) []federation.Solution {
	t.Helper()
	sols, err := Collect(ApplyModifiers(people(), query.NewModifierSet(mods...)))
	require.NoError(t, err)
	return sols
}

func TestApplyModifiers(t *testing.T) {
	over := func(n int64) query.Filter {
		return query.NewFilter(query.Cmp(query.OpGT, query.Var("a"), query.Const(federation.NewInteger(n))))
	}

	t.Run("Filter", func(t *testing.T) {
		assert.Equal(t, []federation.Solution{
			sol("x", "<alice>", "a", "30"),
			sol("x", "<carol>", "a", "35"),
		}, applied(t, over(26)))
	})

	t.Run("ProjectionAndDistinct", func(t *testing.T) {
		assert.Equal(t, []federation.Solution{
			sol("x", "<alice>"),
			sol("x", "<bob>"),
			sol("x", "<carol>"),
		}, applied(t, query.Projection{Vars: []string{"x"}}, query.Distinct{}))
	})

	t.Run("LimitAfterFilter", func(t *testing.T) {
		assert.Equal(t, []federation.Solution{
			sol("x", "<alice>", "a", "30"),
		}, applied(t, query.Limit{N: 1}, over(26)))
	})

	t.Run("Values", func(t *testing.T) {
		v := query.Values{
			Vars: []string{"x", "n"},
			Rows: []federation.Solution{
				sol("x", "<bob>", "n", `"Bob"`),
				sol("x", "<dave>", "n", `"Dave"`),
			},
		}
		assert.Equal(t, []federation.Solution{
			sol("x", "<bob>", "a", "25", "n", `"Bob"`),
			sol("x", "<bob>", "a", "25", "n", `"Bob"`),
		}, applied(t, v))
	})

	t.Run("Ask", func(t *testing.T) {
		assert.Equal(t, []federation.Solution{{}}, applied(t, query.Ask{}))
		assert.Empty(t, applied(t, query.Ask{}, over(100)))
	})

	t.Run("Optional is not evaluated", func(t *testing.T) {
		assert.Len(t, applied(t, query.Optional{}), 4)
	})
}

func TestSplitModifiers(t *testing.T) {
	mods := query.NewModifierSet(
		query.NewFilter(query.Bound("x")),
		query.Projection{Vars: []string{"x"}},
		query.Distinct{},
		query.Limit{N: 3},
		query.Optional{},
	)

	remote, local := splitModifiers(mods, query.AllCapabilities)
	assert.Equal(t, 4, remote.Len())
	assert.Equal(t, 0, local.Len())
	assert.False(t, remote.Has(query.KindOptional))

	// distinct is unsupported: it and everything evaluated after it
	// stays local
	remote, local = splitModifiers(mods, query.CapFilter|query.CapProjection|query.CapLimit)
	assert.True(t, remote.Has(query.KindFilter))
	assert.True(t, remote.Has(query.KindProjection))
	assert.True(t, local.Has(query.KindDistinct))
	assert.True(t, local.Has(query.KindLimit))
	assert.False(t, remote.Has(query.KindLimit))

	remote, local = splitModifiers(mods, 0)
	assert.Equal(t, 0, remote.Len())
	assert.Equal(t, 4, local.Len())
}
