// Package executor runs planned operator trees against sources.
//
// File organization:
//   - executor.go: Executor and per-kind dispatch
//   - results.go / async_results.go: the streaming Results protocol
//   - join_strategy.go: hash join vs bind join decision
//   - join.go: hash join, bind join and Cartesian product
//   - modifiers.go: local modifier evaluation
//   - worker_pool.go: parallel Union branch opening
//   - table_formatter.go: result tables
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/cost"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
)

// Executor evaluates plan trees. Plans are read-only during execution;
// one Executor may run several plans concurrently.
type Executor struct {
	options   ExecutorOptions
	estimator *cost.Estimator
	pool      *WorkerPool
	collector *annotations.Collector
}

// NewExecutor creates an executor
func NewExecutor(options ExecutorOptions) *Executor {
	est := options.Estimator
	if est == nil {
		est = cost.NewEstimator()
	}
	return &Executor{
		options:   options,
		estimator: est,
		pool:      NewWorkerPool(options.MaxUnionWorkers),
	}
}

// Options returns the executor options
func (e *Executor) Options() ExecutorOptions {
	return e.options
}

// SetCollector installs an annotation collector for execution events
func (e *Executor) SetCollector(c *annotations.Collector) {
	e.collector = c
}

// Execute runs the plan rooted at t.Root(). The plan must not need
// inputs. The returned Results must be closed.
func (e *Executor) Execute(ctx context.Context, t *plan.Tree) (Results, error) {
	root := t.Root()
	if root == plan.NoNode {
		return nil, fmt.Errorf("executor: empty plan")
	}

	ctx = WithAsyncDefaults(ctx, e.options.BufferSize, e.options.CloseTimeout)
	queryID := uuid.NewString()
	start := time.Now()
	if e.collector.Enabled() {
		e.collector.Add(annotations.Event{
			Name:  annotations.QueryInvoked,
			Start: start,
			Data: map[string]interface{}{
				"query.id": queryID,
				"query":    t.String(),
			},
		})
	}

	r, err := e.open(ctx, t, root)
	if err != nil {
		e.collector.AddTiming(annotations.QueryComplete, start, map[string]interface{}{
			"query.id": queryID,
			"success":  false,
			"error":    err,
		})
		return nil, err
	}
	if !e.collector.Enabled() {
		return r, nil
	}
	return observe(r, func(count int, err error) {
		e.collector.AddTiming(annotations.QueryComplete, start, map[string]interface{}{
			"query.id":        queryID,
			"success":         err == nil,
			"error":           err,
			"solutions.count": count,
		})
	}), nil
}

// open executes a tree that is not referenced elsewhere yet: attribute
// and cardinality memos are filled first so that parallel branches only
// read the tree
func (e *Executor) open(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	if req := t.RequiredInputVars(id); len(req) > 0 {
		return nil, e.fail(t, id, fmt.Errorf("%w: %s", ErrUnboundInputs, req))
	}
	for _, n := range t.PostOrder(id) {
		t.Attrs(n)
		e.estimator.Compute(t, n)
		if t.Kind(n) == plan.KindJoin {
			t.JoinInfo(n)
		}
	}
	return e.execute(ctx, t, id)
}

func (e *Executor) execute(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	var (
		r   Results
		err error
	)
	switch t.Kind(id) {
	case plan.KindQuery:
		// leaf modifiers are part of the query
		return e.executeQuery(ctx, t, id)
	case plan.KindEmpty:
		r = NewSliceResults(t.Attrs(id).Result.Sorted(), nil)
	case plan.KindPipe:
		r, err = e.execute(ctx, t, t.Child(id, 0))
	case plan.KindJoin:
		r, err = e.executeJoin(ctx, t, id)
	case plan.KindUnion:
		r, err = e.executeUnion(ctx, t, id)
	case plan.KindCartesian:
		r, err = e.executeCartesian(ctx, t, id)
	case plan.KindConjunction:
		err = fmt.Errorf("%w: unordered conjunction", ErrNotExecutable)
	default:
		panic(fmt.Sprintf("executor: unknown node kind %d", t.Kind(id)))
	}
	if err != nil {
		return nil, e.fail(t, id, err)
	}
	return ApplyModifiers(r, t.Modifiers(id)), nil
}

// fail attaches the sub-plan to err unless a deeper node already did
func (e *Executor) fail(t *plan.Tree, id plan.NodeID, err error) error {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	e.collector.AddTiming(annotations.ErrorExecution, time.Now(), map[string]interface{}{
		"error": err,
	})
	return &ExecutionError{Plan: t.Format(id), Err: err}
}

func (e *Executor) executeQuery(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	src, ok := t.Endpoint(id).(Source)
	if !ok {
		return nil, e.fail(t, id, fmt.Errorf("%w: %v", ErrNoSource, t.Endpoint(id)))
	}
	cq := t.CQuery(id)
	if req := cq.RequiredInputVars(); len(req) > 0 {
		return nil, e.fail(t, id, fmt.Errorf("%w: %s", ErrUnboundInputs, req))
	}

	remote, local := splitModifiers(cq.Modifiers, src.Capabilities())
	sent := cq.Clone()
	sent.Modifiers = remote

	start := time.Now()
	r, err := src.Execute(ctx, sent)
	if err != nil {
		e.collector.AddTiming(annotations.ErrorBackend, start, map[string]interface{}{
			"endpoint": src.Name(),
			"error":    err,
		})
		return nil, e.fail(t, id, err)
	}
	if local.Len() > 0 {
		e.collector.AddTiming(annotations.ModifiersApplied, start, map[string]interface{}{
			"endpoint":  src.Name(),
			"modifiers": local.String(),
		})
		r = ApplyModifiers(r, local)
	}
	if !e.collector.Enabled() {
		return r, nil
	}
	return observe(r, func(count int, _ error) {
		e.collector.AddTiming(annotations.SourceQuery, start, map[string]interface{}{
			"endpoint":        src.Name(),
			"pattern":         sent.String(),
			"vars":            r.Vars(),
			"solutions.count": count,
		})
	}), nil
}

func (e *Executor) executeUnion(ctx context.Context, t *plan.Tree, id plan.NodeID) (Results, error) {
	kids := t.Children(id)
	start := time.Now()
	opened, err := RunParallel(ctx, e.pool, kids, func(ctx context.Context, k plan.NodeID) (Results, error) {
		return e.execute(ctx, t, k)
	})
	branches := make([]Results, 0, len(opened))
	for _, r := range opened {
		if r != nil {
			branches = append(branches, r)
		}
	}
	if err != nil {
		closeAll(branches...)
		return nil, err
	}
	e.collector.AddTiming(annotations.UnionBranches, start, map[string]interface{}{
		"branches": len(branches),
	})

	vars := federation.NewVarSet()
	async := false
	for _, b := range branches {
		vars.Add(b.Vars()...)
		async = async || b.IsAsync()
	}
	cur := 0
	return newStreamResults(vars.Sorted(), async, func() (federation.Solution, bool, error) {
		for cur < len(branches) {
			b := branches[cur]
			if b.HasNext() {
				return b.Next(), true, nil
			}
			if err := b.Err(); err != nil {
				return nil, false, err
			}
			cur++
		}
		return nil, false, nil
	}, func() error {
		return closeAll(branches...)
	}), nil
}

// isOptional reports whether id is the optional side of its parent
func isOptional(t *plan.Tree, id plan.NodeID) bool {
	return t.HasModifier(id, query.KindOptional)
}

// observe calls done once, when r is exhausted or closed, with the number
// of solutions read
func observe(r Results, done func(count int, err error)) Results {
	count := 0
	fired := false
	fire := func(err error) {
		if !fired {
			fired = true
			done(count, err)
		}
	}
	return newStreamResults(r.Vars(), r.IsAsync(), func() (federation.Solution, bool, error) {
		if r.HasNext() {
			count++
			return r.Next(), true, nil
		}
		fire(r.Err())
		return nil, false, r.Err()
	}, func() error {
		err := r.Close()
		fire(r.Err())
		return err
	})
}
