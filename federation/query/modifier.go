package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wbrown/janus-federation/federation"
)

// ModifierKind identifies a modifier variant
type ModifierKind uint8

const (
	KindProjection ModifierKind = iota
	KindDistinct
	KindAsk
	KindLimit
	KindOptional
	KindFilter
	KindValues
)

// String returns the string representation of ModifierKind
func (k ModifierKind) String() string {
	switch k {
	case KindProjection:
		return "projection"
	case KindDistinct:
		return "distinct"
	case KindAsk:
		return "ask"
	case KindLimit:
		return "limit"
	case KindOptional:
		return "optional"
	case KindFilter:
		return "filter"
	case KindValues:
		return "values"
	default:
		return "unknown"
	}
}

// singleton kinds hold at most one modifier per set
func (k ModifierKind) singleton() bool {
	return k != KindFilter && k != KindValues
}

// Modifier annotates a query or plan node
type Modifier interface {
	Kind() ModifierKind
	// Key identifies the modifier for set membership
	Key() string
	String() string
	isModifier()
}

// Projection restricts the result variables, in order
type Projection struct {
	Vars []string
}

func (Projection) Kind() ModifierKind { return KindProjection }
func (Projection) isModifier()        {}
func (p Projection) Key() string      { return "projection:" + strings.Join(p.Vars, ",") }
func (p Projection) String() string {
	names := make([]string, len(p.Vars))
	for i, v := range p.Vars {
		names[i] = "?" + v
	}
	return "project(" + strings.Join(names, " ") + ")"
}

// VarSet returns the projected variables as a set
func (p Projection) VarSet() federation.VarSet {
	return federation.NewVarSet(p.Vars...)
}

// Distinct removes duplicate solutions
type Distinct struct{}

func (Distinct) Kind() ModifierKind { return KindDistinct }
func (Distinct) isModifier()        {}
func (Distinct) Key() string        { return "distinct" }
func (Distinct) String() string     { return "distinct" }

// Ask reduces the result to whether any solution exists
type Ask struct{}

func (Ask) Kind() ModifierKind { return KindAsk }
func (Ask) isModifier()        {}
func (Ask) Key() string        { return "ask" }
func (Ask) String() string     { return "ask" }

// Limit caps the number of solutions
type Limit struct {
	N int
}

func (Limit) Kind() ModifierKind { return KindLimit }
func (Limit) isModifier()        {}
func (l Limit) Key() string      { return fmt.Sprintf("limit:%d", l.N) }
func (l Limit) String() string   { return fmt.Sprintf("limit(%d)", l.N) }

// Optional marks a node as the optional side of a left outer join
type Optional struct{}

func (Optional) Kind() ModifierKind { return KindOptional }
func (Optional) isModifier()        {}
func (Optional) Key() string        { return "optional" }
func (Optional) String() string     { return "optional" }

// Filter keeps the solutions for which Expr evaluates to true
type Filter struct {
	Expr Expr
}

// NewFilter wraps an expression
func NewFilter(e Expr) Filter { return Filter{Expr: e} }

func (Filter) Kind() ModifierKind { return KindFilter }
func (Filter) isModifier()        {}
func (f Filter) Key() string      { return "filter:" + f.Expr.String() }
func (f Filter) String() string   { return "filter" + f.Expr.String() }

// Vars returns the variables mentioned by the filter
func (f Filter) Vars() federation.VarSet { return f.Expr.VarsMentioned() }

// Components splits the filter into AND-connected components
func (f Filter) Components() []Filter {
	parts := Conjuncts(f.Expr)
	out := make([]Filter, len(parts))
	for i, p := range parts {
		out[i] = Filter{Expr: p}
	}
	return out
}

// Accepts evaluates the filter; evaluation errors reject the solution
func (f Filter) Accepts(sol federation.Solution) bool {
	ok, err := EvalBool(f.Expr, sol)
	return err == nil && ok
}

// Values restricts variables to an explicit set of assignments
type Values struct {
	Vars []string
	Rows []federation.Solution
}

func (Values) Kind() ModifierKind { return KindValues }
func (Values) isModifier()        {}

func (v Values) Key() string {
	rows := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = r.Project(v.Vars).String()
	}
	sort.Strings(rows)
	return "values:" + strings.Join(v.Vars, ",") + ":" + strings.Join(rows, ";")
}

func (v Values) String() string {
	return fmt.Sprintf("values(%s, %d rows)", federation.NewVarSet(v.Vars...), len(v.Rows))
}

// VarSet returns the constrained variables
func (v Values) VarSet() federation.VarSet { return federation.NewVarSet(v.Vars...) }

// Accepts returns true if some row is compatible with sol. Without rows
// nothing is accepted.
func (v Values) Accepts(sol federation.Solution) bool {
	for _, row := range v.Rows {
		if row.Compatible(sol) {
			return true
		}
	}
	return false
}

// Restrict projects the assignments onto vars, removing duplicate rows.
// ok is false if no column survives.
func (v Values) Restrict(vars federation.VarSet) (Values, bool) {
	var cols []string
	for _, c := range v.Vars {
		if vars.Has(c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return Values{}, false
	}
	seen := make(map[string]bool, len(v.Rows))
	out := Values{Vars: cols}
	for _, row := range v.Rows {
		p := row.Project(cols)
		key := p.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, p)
	}
	return out, true
}

// Bind keeps the rows compatible with sol and drops the bound columns
func (v Values) Bind(sol federation.Solution) Values {
	var cols []string
	for _, c := range v.Vars {
		if _, ok := sol[c]; !ok {
			cols = append(cols, c)
		}
	}
	out := Values{Vars: cols}
	for _, row := range v.Rows {
		if row.Compatible(sol) {
			out.Rows = append(out.Rows, row.Project(cols))
		}
	}
	return out
}

// BindModifier specialises a modifier for a partial solution. Filters are
// bound rather than dropped; projections lose the now-ground variables.
func BindModifier(m Modifier, sol federation.Solution) Modifier {
	switch mod := m.(type) {
	case Filter:
		return Filter{Expr: mod.Expr.Bind(sol)}
	case Values:
		return mod.Bind(sol)
	case Projection:
		var vars []string
		for _, v := range mod.Vars {
			if _, ok := sol[v]; !ok {
				vars = append(vars, v)
			}
		}
		return Projection{Vars: vars}
	default:
		return m
	}
}

// ModifierSet is an ordered set of modifiers without duplicates. Singleton
// kinds (projection, distinct, ask, limit, optional) are replaced on Add.
type ModifierSet struct {
	mods []Modifier
}

// NewModifierSet creates a set from the given modifiers
func NewModifierSet(mods ...Modifier) ModifierSet {
	var s ModifierSet
	for _, m := range mods {
		s.Add(m)
	}
	return s
}

// Add inserts m and reports whether the set changed
func (s *ModifierSet) Add(m Modifier) bool {
	for i, existing := range s.mods {
		if existing.Key() == m.Key() {
			return false
		}
		if m.Kind().singleton() && existing.Kind() == m.Kind() {
			s.mods[i] = m
			return true
		}
	}
	s.mods = append(s.mods, m)
	return true
}

// Remove deletes m and reports whether the set changed
func (s *ModifierSet) Remove(m Modifier) bool {
	for i, existing := range s.mods {
		if existing.Key() == m.Key() {
			s.mods = append(s.mods[:i:i], s.mods[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveKind deletes every modifier of kind k and returns them
func (s *ModifierSet) RemoveKind(k ModifierKind) []Modifier {
	var removed []Modifier
	kept := make([]Modifier, 0, len(s.mods))
	for _, m := range s.mods {
		if m.Kind() == k {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	s.mods = kept
	return removed
}

// All returns a copy of the modifiers in insertion order
func (s ModifierSet) All() []Modifier {
	return append([]Modifier(nil), s.mods...)
}

func (s ModifierSet) Len() int { return len(s.mods) }

// Clone returns an independent copy
func (s ModifierSet) Clone() ModifierSet {
	return ModifierSet{mods: s.All()}
}

// Has returns true if a modifier of kind k is present
func (s ModifierSet) Has(k ModifierKind) bool {
	for _, m := range s.mods {
		if m.Kind() == k {
			return true
		}
	}
	return false
}

// Contains returns true if m is a member
func (s ModifierSet) Contains(m Modifier) bool {
	for _, existing := range s.mods {
		if existing.Key() == m.Key() {
			return true
		}
	}
	return false
}

func (s ModifierSet) Projection() (Projection, bool) {
	for _, m := range s.mods {
		if p, ok := m.(Projection); ok {
			return p, true
		}
	}
	return Projection{}, false
}

func (s ModifierSet) Limit() (Limit, bool) {
	for _, m := range s.mods {
		if l, ok := m.(Limit); ok {
			return l, true
		}
	}
	return Limit{}, false
}

func (s ModifierSet) Filters() []Filter {
	var out []Filter
	for _, m := range s.mods {
		if f, ok := m.(Filter); ok {
			out = append(out, f)
		}
	}
	return out
}

func (s ModifierSet) Values() []Values {
	var out []Values
	for _, m := range s.mods {
		if v, ok := m.(Values); ok {
			out = append(out, v)
		}
	}
	return out
}

// FilterVars returns the variables mentioned by all filters
func (s ModifierSet) FilterVars() federation.VarSet {
	vars := federation.NewVarSet()
	for _, f := range s.Filters() {
		vars.AddAll(f.Vars())
	}
	return vars
}

// ValuesVars returns the variables constrained by Values modifiers
func (s ModifierSet) ValuesVars() federation.VarSet {
	vars := federation.NewVarSet()
	for _, v := range s.Values() {
		vars.AddAll(v.VarSet())
	}
	return vars
}

// Bind specialises every modifier for sol
func (s ModifierSet) Bind(sol federation.Solution) ModifierSet {
	var out ModifierSet
	for _, m := range s.mods {
		out.Add(BindModifier(m, sol))
	}
	return out
}

func (s ModifierSet) String() string {
	parts := make([]string, len(s.mods))
	for i, m := range s.mods {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
