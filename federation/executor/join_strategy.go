package executor

import (
	"fmt"

	"github.com/wbrown/janus-federation/federation/cardinality"
)

// JoinAlgorithm selects how a binary join is evaluated
type JoinAlgorithm uint8

const (
	// HashJoin materializes the build side and probes it with the other
	HashJoin JoinAlgorithm = iota
	// BindJoin re-evaluates the inner side once per outer solution
	BindJoin
)

// String returns the string representation of JoinAlgorithm
func (a JoinAlgorithm) String() string {
	switch a {
	case HashJoin:
		return "hash"
	case BindJoin:
		return "bind"
	default:
		return "unknown"
	}
}

// Side names one input of a binary join
type Side uint8

const (
	Left Side = iota
	Right
)

// Other returns the opposite side
func (s Side) Other() Side { return 1 - s }

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// JoinSide is what the strategy needs to know about one input
type JoinSide struct {
	Card cardinality.Cardinality
	// NeedsInputs is set when the side has required inputs that are
	// unbound when the join starts
	NeedsInputs bool
}

// JoinStrategy is the decision for one join. For a HashJoin, First is
// the build side; for a BindJoin it is the outer side.
type JoinStrategy struct {
	Algorithm JoinAlgorithm
	First     Side
	Reason    string
}

// DecideJoinStrategy picks the algorithm and orientation of a join.
// A side needing inputs forces a bind join with the other side as outer.
// Otherwise a hash join is used when both sides are exact and the smaller
// is below the hash threshold, or when the larger side reliably has at
// most askDegenerate rows. Everything else is a bind join with the
// smaller side as outer, which stays cheap when estimates are wrong.
// Both sides needing inputs is an error.
func DecideJoinStrategy(left, right JoinSide, hashThreshold, askDegenerate int64) (JoinStrategy, error) {
	switch {
	case left.NeedsInputs && right.NeedsInputs:
		return JoinStrategy{}, fmt.Errorf("%w: both join sides need inputs", ErrUnboundInputs)
	case left.NeedsInputs:
		return JoinStrategy{Algorithm: BindJoin, First: Right, Reason: "left needs inputs"}, nil
	case right.NeedsInputs:
		return JoinStrategy{Algorithm: BindJoin, First: Left, Reason: "right needs inputs"}, nil
	}

	smaller, larger := Left, Right
	if cardinality.Compare(right.Card, left.Card) < 0 {
		smaller, larger = Right, Left
	}
	cards := [2]cardinality.Cardinality{left.Card, right.Card}
	small, large := cards[smaller], cards[larger]

	if small.Reliability() == cardinality.Exact && large.Reliability() == cardinality.Exact &&
		small.Value(0) < hashThreshold {
		return JoinStrategy{Algorithm: HashJoin, First: smaller, Reason: "exact and small"}, nil
	}
	if askDegenerate > 0 && isAskDegenerate(large, askDegenerate) {
		return JoinStrategy{Algorithm: HashJoin, First: larger, Reason: "ask-degenerate"}, nil
	}
	return JoinStrategy{Algorithm: BindJoin, First: smaller, Reason: "estimates not reliable"}, nil
}

// isAskDegenerate reports whether c reliably has at most n rows
func isAskDegenerate(c cardinality.Cardinality, n int64) bool {
	switch c.Reliability() {
	case cardinality.Exact, cardinality.UpperBound:
		return c.Value(n+1) <= n
	}
	return false
}
