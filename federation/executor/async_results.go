package executor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
)

// PageFunc fetches one page of a result. last is true once no page
// follows. Implementations should return when ctx is cancelled.
type PageFunc func(ctx context.Context, page int) (sols []federation.Solution, last bool, err error)

// AsyncOptions configures an AsyncResults
type AsyncOptions struct {
	Name         string // Producer name used in events and logs
	BufferSize   int
	CloseTimeout time.Duration
	Collector    *annotations.Collector
}

// AsyncResults runs a paging producer on its own goroutine. Solutions
// pass through a bounded channel, so the producer stalls when the
// consumer falls behind. The producer checks a stop flag before each
// page; Close raises it and waits a bounded time for the producer to
// finish.
type AsyncResults struct {
	vars   []string
	opts   AsyncOptions
	ctx    context.Context
	cancel context.CancelFunc

	ch       chan federation.Solution
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	finished chan struct{} // closed when the producer returns

	mu  sync.Mutex
	err error

	next   federation.Solution
	peeked bool
	done   bool
	closed bool
}

type asyncDefaultsKey struct{}

type asyncDefaults struct {
	bufferSize   int
	closeTimeout time.Duration
}

// WithAsyncDefaults returns a context whose AsyncResults use bufferSize
// and closeTimeout wherever their own options leave them zero. The
// executor installs its options this way for the sources it calls.
func WithAsyncDefaults(ctx context.Context, bufferSize int, closeTimeout time.Duration) context.Context {
	return context.WithValue(ctx, asyncDefaultsKey{}, asyncDefaults{bufferSize, closeTimeout})
}

// NewAsyncResults starts fetching pages immediately. Zero buffer size and
// close timeout come from the context defaults, then 64 and 500ms.
func NewAsyncResults(ctx context.Context, vars []string, fetch PageFunc, opts AsyncOptions) *AsyncResults {
	if d, ok := ctx.Value(asyncDefaultsKey{}).(asyncDefaults); ok {
		if opts.BufferSize <= 0 {
			opts.BufferSize = d.bufferSize
		}
		if opts.CloseTimeout <= 0 {
			opts.CloseTimeout = d.closeTimeout
		}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 500 * time.Millisecond
	}
	pctx, cancel := context.WithCancel(ctx)
	r := &AsyncResults{
		vars:     vars,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		ch:       make(chan federation.Solution, opts.BufferSize),
		stopCh:   make(chan struct{}),
		finished: make(chan struct{}),
	}
	go r.produce(pctx, fetch)
	return r
}

func (r *AsyncResults) produce(ctx context.Context, fetch PageFunc) {
	defer close(r.finished)
	defer close(r.ch)
	for page := 0; ; page++ {
		if r.stopped.Load() {
			return
		}
		start := time.Now()
		sols, last, err := fetch(ctx, page)
		if err != nil {
			r.setErr(err)
			return
		}
		r.opts.Collector.AddTiming(annotations.SourcePage, start, map[string]interface{}{
			"endpoint": r.opts.Name,
			"page":     page,
			"rows":     len(sols),
		})
		for _, s := range sols {
			select {
			case r.ch <- s:
			case <-r.stopCh:
				return
			case <-ctx.Done():
				r.setErr(ctx.Err())
				return
			}
		}
		if last {
			return
		}
	}
}

func (r *AsyncResults) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil && !r.stopped.Load() {
		r.err = err
	}
}

// HasNext blocks until a solution arrives, the producer finishes or the
// context is cancelled
func (r *AsyncResults) HasNext() bool {
	if r.peeked {
		return true
	}
	if r.done {
		return false
	}
	select {
	case s, ok := <-r.ch:
		if !ok {
			r.done = true
			return false
		}
		r.next, r.peeked = s, true
		return true
	case <-r.ctx.Done():
		r.setErr(r.ctx.Err())
		r.done = true
		return false
	}
}

func (r *AsyncResults) Next() federation.Solution {
	if !r.HasNext() {
		return nil
	}
	r.peeked = false
	return r.next
}

func (r *AsyncResults) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *AsyncResults) IsAsync() bool  { return true }
func (r *AsyncResults) Vars() []string { return r.vars }

// Close stops the producer and waits up to CloseTimeout for it to
// return. A producer that does not return in time is reported and left
// behind; Close itself never fails on a timeout.
func (r *AsyncResults) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.done, r.peeked = true, false
	r.stopped.Store(true)
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.cancel()

	timer := time.NewTimer(r.opts.CloseTimeout)
	defer timer.Stop()
	select {
	case <-r.finished:
	case <-timer.C:
		if r.opts.Collector.Enabled() {
			r.opts.Collector.Add(annotations.Event{
				Name: annotations.ResultsCloseTimeout,
				Data: map[string]interface{}{
					"source":  r.opts.Name,
					"timeout": r.opts.CloseTimeout,
				},
			})
		} else {
			log.Printf("warning: producer %s did not stop within %v", r.opts.Name, r.opts.CloseTimeout)
		}
	}
	return nil
}
