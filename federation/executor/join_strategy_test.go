package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation/cardinality"
)

func TestDecideJoinStrategy(t *testing.T) {
	exact := func(n int64) JoinSide { return JoinSide{Card: cardinality.NewExact(n)} }
	guess := func(n int64) JoinSide { return JoinSide{Card: cardinality.NewGuess(n)} }
	upper := func(n int64) JoinSide { return JoinSide{Card: cardinality.NewUpperBound(n)} }
	needs := func(s JoinSide) JoinSide { s.NeedsInputs = true; return s }

	tests := []struct {
		name        string
		left, right JoinSide
		algorithm   JoinAlgorithm
		first       Side
	}{
		{"both exact and small builds smaller", exact(500), exact(20), HashJoin, Right},
		{"exact but over threshold", exact(5000), exact(2000), BindJoin, Right},
		{"guessed sides bind from smaller", guess(10), guess(10000), BindJoin, Left},
		{"unknown side", JoinSide{Card: cardinality.Unknown}, exact(10), BindJoin, Right},
		{"ask-degenerate larger side is built", guess(0), upper(1), HashJoin, Right},
		{"ask-degenerate exact side", exact(1), JoinSide{Card: cardinality.NewLowerBound(0)}, HashJoin, Left},
		{"small guess against large exact", guess(50), exact(5000), BindJoin, Left},
		{"left needs inputs", needs(exact(1)), guess(1_000_000), BindJoin, Right},
		{"right needs inputs", exact(1_000_000), needs(exact(1)), BindJoin, Left},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecideJoinStrategy(tt.left, tt.right, 1000, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.algorithm, s.Algorithm, s.Reason)
			assert.Equal(t, tt.first, s.First, s.Reason)
		})
	}
}

func TestDecideJoinStrategyBothSidesNeedInputs(t *testing.T) {
	side := JoinSide{Card: cardinality.NewExact(1), NeedsInputs: true}
	_, err := DecideJoinStrategy(side, side, 1000, 1)
	assert.ErrorIs(t, err, ErrUnboundInputs)
}

func TestBindJoinOuterIsNeverTheLargerSide(t *testing.T) {
	var cards []cardinality.Cardinality
	for _, n := range []int64{0, 1, 2, 10, 999, 1000, 50_000} {
		for _, r := range []cardinality.Reliability{cardinality.Exact, cardinality.UpperBound, cardinality.LowerBound, cardinality.Guess} {
			cards = append(cards, cardinality.Of(n, r))
		}
	}
	cards = append(cards, cardinality.Unknown)

	for _, l := range cards {
		for _, r := range cards {
			s, err := DecideJoinStrategy(JoinSide{Card: l}, JoinSide{Card: r}, 1000, 1)
			require.NoError(t, err)
			if s.Algorithm != BindJoin {
				continue
			}
			outer, inner := l, r
			if s.First == Right {
				outer, inner = r, l
			}
			assert.LessOrEqual(t, cardinality.Compare(outer, inner), 0,
				"bind join outer %s should not be worse than inner %s", outer, inner)
		}
	}
}

func TestHashJoinOnlyOnReliableEstimates(t *testing.T) {
	for _, r := range []cardinality.Reliability{cardinality.LowerBound, cardinality.Guess} {
		s, err := DecideJoinStrategy(JoinSide{Card: cardinality.Of(5, r)}, JoinSide{Card: cardinality.Of(10, r)}, 1000, 1)
		require.NoError(t, err)
		assert.Equal(t, BindJoin, s.Algorithm, r.String())
	}
}
