package federation

import (
	"sort"
	"strings"
)

// VarSet is a set of variable names (without the leading '?').
// Operations that return a VarSet never alias their receiver.
type VarSet map[string]struct{}

// NewVarSet creates a set holding the given names
func NewVarSet(vars ...string) VarSet {
	s := make(VarSet, len(vars))
	for _, v := range vars {
		s[strings.TrimLeft(v, "?$")] = struct{}{}
	}
	return s
}

func (s VarSet) Add(vars ...string) {
	for _, v := range vars {
		s[v] = struct{}{}
	}
}

func (s VarSet) AddAll(other VarSet) {
	for v := range other {
		s[v] = struct{}{}
	}
}

func (s VarSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s VarSet) Clone() VarSet {
	out := make(VarSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

func (s VarSet) Union(other VarSet) VarSet {
	out := s.Clone()
	out.AddAll(other)
	return out
}

func (s VarSet) Intersect(other VarSet) VarSet {
	out := make(VarSet)
	for v := range s {
		if other.Has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

func (s VarSet) Minus(other VarSet) VarSet {
	out := make(VarSet)
	for v := range s {
		if !other.Has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

// Intersects returns true if the sets share at least one variable
func (s VarSet) Intersects(other VarSet) bool {
	for v := range s {
		if other.Has(v) {
			return true
		}
	}
	return false
}

// ContainsAll returns true if other is a subset of s
func (s VarSet) ContainsAll(other VarSet) bool {
	for v := range other {
		if !s.Has(v) {
			return false
		}
	}
	return true
}

func (s VarSet) Equal(other VarSet) bool {
	return len(s) == len(other) && s.ContainsAll(other)
}

// Sorted returns the names in lexical order
func (s VarSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s VarSet) String() string {
	sorted := s.Sorted()
	for i, v := range sorted {
		sorted[i] = "?" + v
	}
	return "[" + strings.Join(sorted, " ") + "]"
}
