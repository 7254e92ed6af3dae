package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallelKeepsOrderAndBound(t *testing.T) {
	pool := NewWorkerPool(2)
	assert.Equal(t, 2, pool.Size())

	var running, peak int32
	outs, err := RunParallel(context.Background(), pool, []int{1, 2, 3, 4, 5}, func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return n * n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, outs)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunParallelReturnsPartialOutputs(t *testing.T) {
	boom := errors.New("boom")
	outs, err := RunParallel(context.Background(), NewWorkerPool(0), []string{"a", "b", "c"}, func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", boom
		}
		return s + "!", nil
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "index 1")
	assert.Equal(t, []string{"a!", "", "c!"}, outs)
}

func TestRunParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	_, err := RunParallel(ctx, NewWorkerPool(1), []int{1, 2}, func(context.Context, int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
