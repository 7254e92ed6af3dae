package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExecutable is returned for plans that still contain nodes
	// the planner must resolve, such as Conjunctions
	ErrNotExecutable = errors.New("plan is not executable")
	// ErrUnboundInputs is returned when a subtree runs without values for
	// its required input variables
	ErrUnboundInputs = errors.New("required inputs are unbound")
	// ErrNoSource is returned when a Query leaf's endpoint cannot execute
	// queries
	ErrNoSource = errors.New("endpoint is not a source")
)

// ExecutionError carries the sub-plan whose execution failed
type ExecutionError struct {
	Plan string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing\n%s: %v", e.Plan, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
