package query

import "strings"

// Capabilities is the set of query features an endpoint can evaluate itself
type Capabilities uint16

const (
	CapAsk Capabilities = 1 << iota
	CapProjection
	CapDistinct
	CapFilter
	CapLimit
	CapOptional
	CapValues
)

// AllCapabilities is the capability set of a full query endpoint
const AllCapabilities = CapAsk | CapProjection | CapDistinct | CapFilter | CapLimit | CapOptional | CapValues

var capabilityNames = []struct {
	cap  Capabilities
	name string
}{
	{CapAsk, "ask"},
	{CapProjection, "projection"},
	{CapDistinct, "distinct"},
	{CapFilter, "filter"},
	{CapLimit, "limit"},
	{CapOptional, "optional"},
	{CapValues, "values"},
}

// Has returns true if every capability in c is present
func (s Capabilities) Has(c Capabilities) bool {
	return s&c == c
}

// With returns the set extended by c
func (s Capabilities) With(c Capabilities) Capabilities {
	return s | c
}

// Supports returns true if the endpoint can evaluate a modifier of kind k
func (s Capabilities) Supports(k ModifierKind) bool {
	switch k {
	case KindProjection:
		return s.Has(CapProjection)
	case KindDistinct:
		return s.Has(CapDistinct)
	case KindAsk:
		return s.Has(CapAsk)
	case KindLimit:
		return s.Has(CapLimit)
	case KindOptional:
		return s.Has(CapOptional)
	case KindFilter:
		return s.Has(CapFilter)
	case KindValues:
		return s.Has(CapValues)
	}
	return false
}

// ParseCapability maps a capability name to its flag
func ParseCapability(name string) (Capabilities, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range capabilityNames {
		if c.name == name {
			return c.cap, true
		}
	}
	return 0, false
}

// Names lists the capability names present in s
func (s Capabilities) Names() []string {
	var names []string
	for _, c := range capabilityNames {
		if s.Has(c.cap) {
			names = append(names, c.name)
		}
	}
	return names
}

func (s Capabilities) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// Endpoint is a source of answers for Query leaves. Execution-side
// interfaces extend it; the planner only needs identity and capabilities.
type Endpoint interface {
	Name() string
	Capabilities() Capabilities
}
