package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wbrown/janus-federation/federation"
)

// ErrUnsafeMerge is returned when two patterns cannot be combined without
// changing their answers
var ErrUnsafeMerge = errors.New("unsafe merge")

// CQuery is a conjunctive query: an ordered list of triple patterns plus
// modifiers. RequiredInputs and OptionalInputs name variables the answering
// endpoint needs (or accepts) bound before it can run the query.
type CQuery struct {
	Triples        []federation.Triple
	Modifiers      ModifierSet
	RequiredInputs federation.VarSet
	OptionalInputs federation.VarSet
}

// NewCQuery creates a query from triples and modifiers
func NewCQuery(triples []federation.Triple, mods ...Modifier) *CQuery {
	return &CQuery{
		Triples:   append([]federation.Triple(nil), triples...),
		Modifiers: NewModifierSet(mods...),
	}
}

// Clone returns a deep copy
func (q *CQuery) Clone() *CQuery {
	out := &CQuery{
		Triples:   append([]federation.Triple(nil), q.Triples...),
		Modifiers: q.Modifiers.Clone(),
	}
	if q.RequiredInputs != nil {
		out.RequiredInputs = q.RequiredInputs.Clone()
	}
	if q.OptionalInputs != nil {
		out.OptionalInputs = q.OptionalInputs.Clone()
	}
	return out
}

// TripleVars returns the variables of the triple patterns
func (q *CQuery) TripleVars() federation.VarSet {
	vars := federation.NewVarSet()
	for _, t := range q.Triples {
		vars.AddAll(t.Vars())
	}
	return vars
}

// PatternVars returns the variables produced by the pattern: triple
// variables plus Values columns
func (q *CQuery) PatternVars() federation.VarSet {
	return q.TripleVars().Union(q.Modifiers.ValuesVars())
}

// AllVars returns every variable mentioned by the query
func (q *CQuery) AllVars() federation.VarSet {
	vars := q.PatternVars()
	vars.AddAll(q.Modifiers.FilterVars())
	vars.AddAll(q.RequiredInputs)
	vars.AddAll(q.OptionalInputs)
	return vars
}

// RequiredInputVars returns the variables that must be bound from outside:
// declared endpoint inputs plus filter variables the pattern does not produce
func (q *CQuery) RequiredInputVars() federation.VarSet {
	req := q.Modifiers.FilterVars().Minus(q.PatternVars())
	req.AddAll(q.RequiredInputs)
	return req
}

// OptionalInputVars returns inputs the endpoint accepts but does not need
func (q *CQuery) OptionalInputVars() federation.VarSet {
	if q.OptionalInputs == nil {
		return federation.NewVarSet()
	}
	return q.OptionalInputs.Minus(q.RequiredInputVars())
}

// ResultVars returns the variables of the query's solutions
func (q *CQuery) ResultVars() federation.VarSet {
	if q.Modifiers.Has(KindAsk) {
		return federation.NewVarSet()
	}
	all := q.AllVars()
	if p, ok := q.Modifiers.Projection(); ok {
		return p.VarSet().Intersect(all)
	}
	return q.PatternVars().Union(q.RequiredInputVars())
}

// Bind substitutes the variables bound in sol everywhere in the query
func (q *CQuery) Bind(sol federation.Solution) *CQuery {
	out := &CQuery{
		Triples:   make([]federation.Triple, len(q.Triples)),
		Modifiers: q.Modifiers.Bind(sol),
	}
	for i, t := range q.Triples {
		out.Triples[i] = t.Bind(sol)
	}
	bound := sol.Vars()
	if q.RequiredInputs != nil {
		out.RequiredInputs = q.RequiredInputs.Minus(bound)
	}
	if q.OptionalInputs != nil {
		out.OptionalInputs = q.OptionalInputs.Minus(bound)
	}
	return out
}

// Merge combines two queries evaluated at the same endpoint into one
// pattern. It fails with ErrUnsafeMerge if the combination would change the
// answers: result-shaping modifiers, differing distinctness, hidden
// variables that the other side mentions, or shared blank node labels.
func (q *CQuery) Merge(other *CQuery) (*CQuery, error) {
	for _, k := range []ModifierKind{KindAsk, KindLimit, KindOptional} {
		if q.Modifiers.Has(k) || other.Modifiers.Has(k) {
			return nil, fmt.Errorf("%w: %s modifier present", ErrUnsafeMerge, k)
		}
	}
	if q.Modifiers.Has(KindDistinct) != other.Modifiers.Has(KindDistinct) {
		return nil, fmt.Errorf("%w: distinct on one side only", ErrUnsafeMerge)
	}
	if hidden := q.hiddenVars(); hidden.Intersects(other.AllVars()) {
		return nil, fmt.Errorf("%w: projected-out variables %s are used by the other pattern", ErrUnsafeMerge, hidden.Intersect(other.AllVars()))
	}
	if hidden := other.hiddenVars(); hidden.Intersects(q.AllVars()) {
		return nil, fmt.Errorf("%w: projected-out variables %s are used by the other pattern", ErrUnsafeMerge, hidden.Intersect(q.AllVars()))
	}
	if q.blankLabels().Intersects(other.blankLabels()) {
		return nil, fmt.Errorf("%w: shared blank node labels", ErrUnsafeMerge)
	}

	out := q.Clone()
	seen := make(map[federation.Triple]bool, len(out.Triples))
	for _, t := range out.Triples {
		seen[t] = true
	}
	for _, t := range other.Triples {
		if !seen[t] {
			seen[t] = true
			out.Triples = append(out.Triples, t)
		}
	}

	_, qProj := q.Modifiers.Projection()
	_, oProj := other.Modifiers.Projection()
	if qProj || oProj {
		vars := q.ResultVars().Union(other.ResultVars())
		out.Modifiers.Add(Projection{Vars: vars.Sorted()})
	}
	for _, m := range other.Modifiers.All() {
		if m.Kind() == KindProjection {
			continue
		}
		out.Modifiers.Add(m)
	}

	if other.RequiredInputs != nil {
		if out.RequiredInputs == nil {
			out.RequiredInputs = federation.NewVarSet()
		}
		out.RequiredInputs.AddAll(other.RequiredInputs)
	}
	if other.OptionalInputs != nil {
		if out.OptionalInputs == nil {
			out.OptionalInputs = federation.NewVarSet()
		}
		out.OptionalInputs.AddAll(other.OptionalInputs)
	}
	return out, nil
}

// hiddenVars returns pattern variables removed by a projection
func (q *CQuery) hiddenVars() federation.VarSet {
	p, ok := q.Modifiers.Projection()
	if !ok {
		return federation.NewVarSet()
	}
	return q.AllVars().Minus(p.VarSet())
}

func (q *CQuery) blankLabels() federation.VarSet {
	labels := federation.NewVarSet()
	for _, t := range q.Triples {
		for _, term := range t.Terms() {
			if term.Kind == federation.Blank {
				labels.Add(term.Value)
			}
		}
	}
	return labels
}

func (q *CQuery) String() string {
	parts := make([]string, len(q.Triples))
	for i, t := range q.Triples {
		parts[i] = t.String()
	}
	s := "{" + strings.Join(parts, " . ") + "}"
	if q.Modifiers.Len() > 0 {
		s += " " + q.Modifiers.String()
	}
	if len(q.RequiredInputs) > 0 {
		s += " in" + q.RequiredInputs.String()
	}
	if len(q.OptionalInputs) > 0 {
		s += " opt" + q.OptionalInputs.String()
	}
	return s
}
