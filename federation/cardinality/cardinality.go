// Package cardinality models result-size estimates: a value tagged with a
// reliability level, the arithmetic that combines estimates across joins,
// unions and cartesian products, and heuristics that estimate leaf patterns.
package cardinality

import (
	"fmt"
	"math"
)

// Reliability is a partial order from weakest to strongest:
// Unsupported < Guess < LowerBound, UpperBound < Exact.
// LowerBound and UpperBound are incomparable siblings.
type Reliability uint8

const (
	Unsupported Reliability = iota
	Guess
	LowerBound
	UpperBound
	Exact
)

// String returns the string representation of Reliability
func (r Reliability) String() string {
	switch r {
	case Unsupported:
		return "unsupported"
	case Guess:
		return "guess"
	case LowerBound:
		return "lower-bound"
	case UpperBound:
		return "upper-bound"
	case Exact:
		return "exact"
	default:
		return "unknown"
	}
}

// ParseReliability is the inverse of Reliability.String
func ParseReliability(s string) (Reliability, bool) {
	for r := Unsupported; r <= Exact; r++ {
		if r.String() == s {
			return r, true
		}
	}
	return Unsupported, false
}

func (r Reliability) rank() int {
	switch r {
	case Guess:
		return 1
	case LowerBound, UpperBound:
		return 2
	case Exact:
		return 3
	}
	return 0
}

// Compare orders two reliabilities. ok is false for LowerBound vs UpperBound.
func (r Reliability) Compare(other Reliability) (c int, ok bool) {
	if r == other {
		return 0, true
	}
	if r.rank() == other.rank() {
		return 0, false
	}
	if r.rank() < other.rank() {
		return -1, true
	}
	return 1, true
}

// AtLeast returns true if r is comparable to and not weaker than other
func (r Reliability) AtLeast(other Reliability) bool {
	c, ok := r.Compare(other)
	return ok && c >= 0
}

// Meet returns the strongest reliability not stronger than either argument
func Meet(a, b Reliability) Reliability {
	c, ok := a.Compare(b)
	if !ok {
		return Guess
	}
	if c <= 0 {
		return a
	}
	return b
}

// Cardinality is an estimated number of solutions plus its reliability
type Cardinality struct {
	value       int64
	reliability Reliability
}

var (
	// Unknown carries no estimate
	Unknown = Cardinality{value: -1, reliability: Unsupported}
	// Empty is the exact zero: absorbing under joins and products,
	// neutral under unions
	Empty = Cardinality{value: 0, reliability: Exact}
)

func newCardinality(n int64, r Reliability) Cardinality {
	if n < 0 {
		n = 0
	}
	return Cardinality{value: n, reliability: r}
}

func NewExact(n int64) Cardinality      { return newCardinality(n, Exact) }
func NewGuess(n int64) Cardinality      { return newCardinality(n, Guess) }
func NewLowerBound(n int64) Cardinality { return newCardinality(n, LowerBound) }
func NewUpperBound(n int64) Cardinality { return newCardinality(n, UpperBound) }

// Of creates a cardinality with the given reliability; Unsupported yields Unknown
func Of(n int64, r Reliability) Cardinality {
	if r == Unsupported {
		return Unknown
	}
	return newCardinality(n, r)
}

// Known returns true if the estimate has a value
func (c Cardinality) Known() bool { return c.reliability != Unsupported }

// Value returns the estimate, or def when unknown
func (c Cardinality) Value(def int64) int64 {
	if !c.Known() {
		return def
	}
	return c.value
}

func (c Cardinality) Reliability() Reliability { return c.reliability }

// IsEmpty returns true for the exact zero
func (c Cardinality) IsEmpty() bool { return c.reliability == Exact && c.value == 0 }

func (c Cardinality) String() string {
	if !c.Known() {
		return "unknown"
	}
	return fmt.Sprintf("%s(%d)", c.reliability, c.value)
}

// Compare orders estimates from best to worst: it returns a positive value
// if a is worse (larger or, on a tie, less reliable) than b. Unknown is
// worse than any value; a LowerBound loses a tie against an UpperBound.
func Compare(a, b Cardinality) int {
	switch {
	case !a.Known() && !b.Known():
		return 0
	case !a.Known():
		return 1
	case !b.Known():
		return -1
	}
	if a.value != b.value {
		if a.value > b.value {
			return 1
		}
		return -1
	}
	return tieWeakness(a.reliability) - tieWeakness(b.reliability)
}

func tieWeakness(r Reliability) int {
	switch r {
	case Exact:
		return 0
	case UpperBound:
		return 1
	case LowerBound:
		return 2
	case Guess:
		return 3
	}
	return 4
}

// Worst returns the worse of two estimates according to Compare
func Worst(a, b Cardinality) Cardinality {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Join combines the two sides of a join: the worst side's value with the
// meet of both reliabilities. An empty side makes the join empty.
func Join(a, b Cardinality) Cardinality {
	if a.IsEmpty() || b.IsEmpty() {
		return Empty
	}
	w := Worst(a, b)
	if !w.Known() {
		return Unknown
	}
	return newCardinality(w.value, Meet(a.reliability, b.reliability))
}

// Union sums the branches with the weakest reliability among them. Empty
// branches add nothing.
func Union(cs ...Cardinality) Cardinality {
	sum := int64(0)
	rel := Exact
	for _, c := range cs {
		if !c.Known() {
			return Unknown
		}
		sum = saturatingAdd(sum, c.value)
		rel = Meet(rel, c.reliability)
	}
	return newCardinality(sum, rel)
}

// Product multiplies the members of a cartesian product. Any empty member
// makes the product empty; otherwise reliability degrades to the weakest
// member.
func Product(cs ...Cardinality) Cardinality {
	for _, c := range cs {
		if c.IsEmpty() {
			return Empty
		}
	}
	product := int64(1)
	rel := Exact
	for _, c := range cs {
		if !c.Known() {
			return Unknown
		}
		product = saturatingMul(product, c.value)
		rel = Meet(rel, c.reliability)
	}
	return newCardinality(product, rel)
}

// Ensemble merges the answers of independent estimators, keeping the
// numerically worst exact answer if one exists and otherwise the worst
// remaining answer. Unknown answers abstain.
func Ensemble(cs ...Cardinality) Cardinality {
	var worstExact, worstOther Cardinality
	haveExact, haveOther := false, false
	for _, c := range cs {
		switch {
		case !c.Known():
			continue
		case c.reliability == Exact:
			if !haveExact || c.value > worstExact.value {
				worstExact = c
			}
			haveExact = true
		default:
			if !haveOther || Compare(c, worstOther) > 0 {
				worstOther = c
			}
			haveOther = true
		}
	}
	switch {
	case haveExact:
		return worstExact
	case haveOther:
		return worstOther
	}
	return Unknown
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
