package executor

import (
	"github.com/wbrown/janus-federation/federation"
)

// Results is a pull-based stream of solutions. HasNext may block until
// the next solution is available; Next returns it. Consumers must call
// Close, which releases producers even when the stream was not drained.
type Results interface {
	HasNext() bool
	Next() federation.Solution
	// Err returns the error that ended the stream early, if any
	Err() error
	Close() error
	// IsAsync reports whether solutions are produced off the consumer's
	// goroutine
	IsAsync() bool
	// Vars returns the variables of the solutions, sorted
	Vars() []string
}

// SliceResults serves solutions from memory
type SliceResults struct {
	vars []string
	sols []federation.Solution
	pos  int
}

// NewSliceResults creates results over sols
func NewSliceResults(vars []string, sols []federation.Solution) *SliceResults {
	return &SliceResults{vars: vars, sols: sols}
}

func (r *SliceResults) HasNext() bool { return r.pos < len(r.sols) }

func (r *SliceResults) Next() federation.Solution {
	if r.pos >= len(r.sols) {
		return nil
	}
	s := r.sols[r.pos]
	r.pos++
	return s
}

func (r *SliceResults) Err() error     { return nil }
func (r *SliceResults) Close() error   { r.pos = len(r.sols); return nil }
func (r *SliceResults) IsAsync() bool  { return false }
func (r *SliceResults) Vars() []string { return r.vars }

// streamResults adapts a pull function into Results. pull returns false
// when the stream is exhausted or failed.
type streamResults struct {
	vars   []string
	pull   func() (federation.Solution, bool, error)
	close  func() error
	async  bool
	next   federation.Solution
	peeked bool
	done   bool
	err    error
}

func newStreamResults(vars []string, async bool, pull func() (federation.Solution, bool, error), closeFn func() error) *streamResults {
	return &streamResults{vars: vars, pull: pull, close: closeFn, async: async}
}

func (r *streamResults) HasNext() bool {
	if r.peeked {
		return true
	}
	if r.done {
		return false
	}
	sol, ok, err := r.pull()
	if err != nil {
		r.err = err
	}
	if !ok || err != nil {
		r.done = true
		return false
	}
	r.next, r.peeked = sol, true
	return true
}

func (r *streamResults) Next() federation.Solution {
	if !r.HasNext() {
		return nil
	}
	r.peeked = false
	return r.next
}

func (r *streamResults) Err() error { return r.err }

func (r *streamResults) Close() error {
	r.done, r.peeked = true, false
	if r.close == nil {
		return nil
	}
	c := r.close
	r.close = nil
	return c()
}

func (r *streamResults) IsAsync() bool  { return r.async }
func (r *streamResults) Vars() []string { return r.vars }

// Collect drains r into a slice and closes it
func Collect(r Results) ([]federation.Solution, error) {
	defer r.Close()
	var out []federation.Solution
	for r.HasNext() {
		out = append(out, r.Next())
	}
	return out, r.Err()
}

// closeAll closes every non-nil result and returns the first error
func closeAll(rs ...Results) error {
	var first error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
