package federation

import (
	"sort"
	"strings"
)

// Solution binds variable names to ground terms
type Solution map[string]Term

// Resolve returns the bound value for a variable term, or the term itself
func (s Solution) Resolve(t Term) Term {
	if !t.IsVariable() {
		return t
	}
	if v, ok := s[t.Value]; ok {
		return v
	}
	return t
}

// Clone returns an independent copy
func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Compatible returns true if both solutions agree on every shared variable
func (s Solution) Compatible(other Solution) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for k, v := range small {
		if w, ok := large[k]; ok && w != v {
			return false
		}
	}
	return true
}

// Merge returns the union of two compatible solutions
func (s Solution) Merge(other Solution) Solution {
	out := make(Solution, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Project keeps only the named variables
func (s Solution) Project(vars []string) Solution {
	out := make(Solution, len(vars))
	for _, v := range vars {
		if t, ok := s[v]; ok {
			out[v] = t
		}
	}
	return out
}

// Vars returns the bound variables
func (s Solution) Vars() VarSet {
	vars := make(VarSet, len(s))
	for k := range s {
		vars[k] = struct{}{}
	}
	return vars
}

func (s Solution) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?" + k + "=" + s[k].String())
	}
	b.WriteByte('}')
	return b.String()
}
