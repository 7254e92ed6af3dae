package federation

import "fmt"

// Triple is an ordered (subject, predicate, object) pattern
type Triple struct {
	S, P, O Term
}

// NewTriple creates a triple
func NewTriple(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// Terms returns the three positions in order
func (t Triple) Terms() [3]Term {
	return [3]Term{t.S, t.P, t.O}
}

// Vars returns the variable names mentioned by the triple
func (t Triple) Vars() VarSet {
	vars := NewVarSet()
	for _, term := range t.Terms() {
		if term.IsVariable() {
			vars.Add(term.Value)
		}
	}
	return vars
}

// IsGround returns true if no position is a variable
func (t Triple) IsGround() bool {
	return t.S.IsGround() && t.P.IsGround() && t.O.IsGround()
}

// Bind substitutes every variable that has a value in sol
func (t Triple) Bind(sol Solution) Triple {
	return Triple{S: sol.Resolve(t.S), P: sol.Resolve(t.P), O: sol.Resolve(t.O)}
}

// Match tries to unify the pattern with a ground triple, extending sol.
// It returns nil if the triple does not match.
func (t Triple) Match(ground Triple, sol Solution) Solution {
	out := sol.Clone()
	pattern := t.Terms()
	values := ground.Terms()
	for i, term := range pattern {
		if !term.IsVariable() {
			if term != values[i] {
				return nil
			}
			continue
		}
		if bound, ok := out[term.Value]; ok {
			if bound != values[i] {
				return nil
			}
			continue
		}
		out[term.Value] = values[i]
	}
	return out
}

func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s", t.S, t.P, t.O)
}
