package planner

import "github.com/wbrown/janus-federation/federation/cost"

// PlannerOptions selects the rewrite steps Plan runs and their collaborators
type PlannerOptions struct {
	EnableCartesianDetection    bool // Split leaves whose triples share no variables into a Cartesian
	EnableCartesianDistribution bool // Fold a Query sibling into the connected member of a Cartesian
	EnableUnionDistribution     bool // Fold a Query sibling into every branch of a Union
	EnableFilterPushdown        bool // Move filters to the deepest node exposing their variables
	EnableJoinOrdering          bool // Turn Conjunctions into left-deep Join trees (required for execution)
	EnableFilterJoinInteraction bool // Hand cross-side filter components to one side of a join
	EnableFinalPushdown         bool // Run pushdown again after joins are ordered

	// CheckInvariants verifies the tree after every step. Builds with the
	// planassert tag always check.
	CheckInvariants bool

	Estimator *cost.Estimator // Cardinality estimator (default: cost.NewEstimator())
	Cache     *PlanCache      // Shared plan cache (optional)
}

// DefaultPlannerOptions enables every rewrite step
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		EnableCartesianDetection:    true,
		EnableCartesianDistribution: true,
		EnableUnionDistribution:     true,
		EnableFilterPushdown:        true,
		EnableJoinOrdering:          true,
		EnableFilterJoinInteraction: true,
		EnableFinalPushdown:         true,
	}
}
