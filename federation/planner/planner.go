// Package planner rewrites operator trees into executable plans.
//
// File organization:
//   - planner.go: Planner struct and the Plan() pipeline
//   - cartesian.go: Cartesian component detection
//   - distribution.go: Cartesian and Union distribution
//   - pushdown.go: filter pushdown
//   - join_graph.go / join_order.go: Conjunction ordering
//   - filter_join.go: filter–join interaction
//   - cache.go: plan cache
//
// Start with Plan() in planner.go to understand the planning flow.
package planner

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/cost"
	"github.com/wbrown/janus-federation/federation/plan"
)

// Planner runs the rewrite pipeline
type Planner struct {
	options   PlannerOptions
	estimator *cost.Estimator
	cache     *PlanCache
	collector *annotations.Collector
}

// NewPlanner creates a planner
func NewPlanner(options PlannerOptions) *Planner {
	est := options.Estimator
	if est == nil {
		est = cost.NewEstimator()
	}
	return &Planner{
		options:   options,
		estimator: est,
		cache:     options.Cache,
	}
}

// Options returns the planner options
func (p *Planner) Options() PlannerOptions {
	return p.options
}

// Estimator returns the cardinality estimator used for planning
func (p *Planner) Estimator() *cost.Estimator {
	return p.estimator
}

// SetCollector installs an annotation collector for planning events
func (p *Planner) SetCollector(c *annotations.Collector) {
	p.collector = c
}

type step struct {
	name    string
	enabled bool
	run     func(t *plan.Tree) (bool, error)
}

// Plan rewrites a copy of t into an executable plan. Node IDs of the input,
// in particular those of locked nodes, stay valid in the result.
func (p *Planner) Plan(t *plan.Tree) (*plan.Tree, error) {
	if t.Root() == plan.NoNode {
		return nil, fmt.Errorf("planner: empty tree")
	}
	if p.cache != nil {
		if cached, ok := p.cache.Get(t, p.options); ok {
			p.collector.AddTiming(annotations.PlannerCacheHit, time.Now(), nil)
			return cached, nil
		}
	}

	out := t.Clone()
	steps := []step{
		{"cartesian-detection", p.options.EnableCartesianDetection, p.detectCartesians},
		{"cartesian-distribution", p.options.EnableCartesianDistribution, p.distributeCartesians},
		{"union-distribution", p.options.EnableUnionDistribution, p.distributeUnions},
		{"filter-pushdown", p.options.EnableFilterPushdown, p.pushdownFilters},
		{"join-ordering", p.options.EnableJoinOrdering, p.orderJoins},
		{"filter-join-interaction", p.options.EnableFilterJoinInteraction, p.interactFiltersWithJoins},
		{"final-pushdown", p.options.EnableFinalPushdown, p.pushdownFilters},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		start := time.Now()
		changed, err := s.run(out)
		if err != nil {
			p.collector.AddTiming(annotations.ErrorPlanning, start, map[string]interface{}{
				"step":  s.name,
				"error": err,
			})
			return nil, fmt.Errorf("planner: %s: %w", s.name, err)
		}
		if p.collector.Enabled() {
			p.collector.AddTiming(annotations.PlannerStep, start, map[string]interface{}{
				"step":    s.name,
				"changed": changed,
				"plan":    out.String(),
			})
		}
		if plan.AssertionsEnabled || p.options.CheckInvariants {
			if err := plan.CheckInvariants(out); err != nil {
				return nil, fmt.Errorf("planner: invariant violated after %s: %w", s.name, err)
			}
		}
	}

	if p.collector.Enabled() {
		p.collector.Add(annotations.Event{
			Name: annotations.QueryPlanCreated,
			Data: map[string]interface{}{"plan": out.String()},
		})
	}
	if p.cache != nil {
		p.cache.Put(t, out, p.options)
	}
	return out, nil
}

// forEachNode visits the nodes under the root bottom-up. The set of nodes
// is fixed before fn runs; fn may restructure the tree.
func forEachNode(t *plan.Tree, fn func(id plan.NodeID) (bool, error)) (bool, error) {
	changed := false
	for _, id := range t.PostOrder(t.Root()) {
		if !attached(t, id) {
			continue
		}
		c, err := fn(id)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// attached reports whether id is still reachable from the root
func attached(t *plan.Tree, id plan.NodeID) bool {
	for cur := id; ; cur = t.Parent(cur) {
		if cur == t.Root() {
			return true
		}
		if t.Parent(cur) == plan.NoNode {
			return false
		}
	}
}
