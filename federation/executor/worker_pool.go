package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool bounds the number of operations running at once
type WorkerPool struct {
	size int
}

// NewWorkerPool creates a pool of size slots (0 = NumCPU)
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{size: size}
}

// Size returns the number of operations the pool runs concurrently
func (p *WorkerPool) Size() int {
	return p.size
}

// RunParallel applies op to every input with at most p.Size() calls in
// flight, returning outputs in input order. Inputs that have not started
// when ctx is cancelled fail with the context's error.
//
// On failure the outputs of the calls that succeeded are still returned
// with the lowest-index error, so callers can release them.
func RunParallel[In, Out any](ctx context.Context, p *WorkerPool, inputs []In, op func(context.Context, In) (Out, error)) ([]Out, error) {
	outs := make([]Out, len(inputs))
	errs := make([]error, len(inputs))
	slots := make(chan struct{}, p.size)

	var wg sync.WaitGroup
	for i, in := range inputs {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, in In) {
			defer func() {
				<-slots
				wg.Done()
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			outs[i], errs[i] = op(ctx, in)
		}(i, in)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return outs, fmt.Errorf("parallel execution failed at index %d: %w", i, err)
		}
	}
	return outs, nil
}
