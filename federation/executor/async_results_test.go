package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
)

func pages(n, size int) PageFunc {
	return func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		out := make([]federation.Solution, size)
		for i := range out {
			out[i] = federation.Solution{"n": federation.NewInteger(int64(page*size + i))}
		}
		return out, page == n-1, nil
	}
}

func TestAsyncResultsDeliversAllPages(t *testing.T) {
	c := collector()
	r := NewAsyncResults(context.Background(), []string{"n"}, pages(3, 5), AsyncOptions{
		Name:       "paged",
		BufferSize: 2,
		Collector:  c,
	})
	assert.True(t, r.IsAsync())

	sols, err := Collect(r)
	require.NoError(t, err)
	require.Len(t, sols, 15)
	for i, s := range sols {
		assert.Equal(t, federation.NewInteger(int64(i)), s["n"])
	}
	assert.Len(t, c.Named(annotations.SourcePage), 3)
}

func TestAsyncResultsPropagatesError(t *testing.T) {
	boom := errors.New("backend down")
	r := NewAsyncResults(context.Background(), nil, func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		if page == 1 {
			return nil, false, boom
		}
		return []federation.Solution{{}}, false, nil
	}, AsyncOptions{Name: "flaky"})

	_, err := Collect(r)
	assert.ErrorIs(t, err, boom)
}

func TestAsyncResultsCloseStopsProducer(t *testing.T) {
	fetched := make(chan int, 1000)
	c := collector()
	r := NewAsyncResults(context.Background(), []string{"n"}, func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		fetched <- page
		return []federation.Solution{{"n": federation.NewInteger(int64(page))}}, false, nil
	}, AsyncOptions{Name: "endless", BufferSize: 1, CloseTimeout: time.Second, Collector: c})

	require.True(t, r.HasNext())
	r.Next()

	start := time.Now()
	require.NoError(t, r.Close())
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, c.Named(annotations.ResultsCloseTimeout))
	assert.False(t, r.HasNext())
	assert.NoError(t, r.Err())

	// producer has returned: no further pages
	n := len(fetched)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(fetched))
}

func TestAsyncResultsCloseTimesOutOnStuckProducer(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	entered := make(chan struct{})
	c := collector()
	r := NewAsyncResults(context.Background(), nil, func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		close(entered)
		// ignores ctx
		<-release
		return nil, true, nil
	}, AsyncOptions{Name: "stuck", CloseTimeout: 50 * time.Millisecond, Collector: c})

	<-entered
	start := time.Now()
	err := r.Close()
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	events := c.Named(annotations.ResultsCloseTimeout)
	require.Len(t, events, 1)
	assert.Equal(t, "stuck", events[0].Data["source"])

	// closing again is a no-op
	assert.NoError(t, r.Close())
	assert.Len(t, c.Named(annotations.ResultsCloseTimeout), 1)
}

func TestAsyncResultsStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewAsyncResults(ctx, nil, func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}, AsyncOptions{Name: "cancelled"})

	cancel()
	assert.False(t, r.HasNext())
	assert.ErrorIs(t, r.Err(), context.Canceled)
	assert.NoError(t, r.Close())
}

func TestAsyncResultsUseContextDefaults(t *testing.T) {
	ctx := WithAsyncDefaults(context.Background(), 3, 40*time.Millisecond)

	r := NewAsyncResults(ctx, []string{"n"}, pages(1, 1), AsyncOptions{Name: "inherits"})
	assert.Equal(t, 3, cap(r.ch))
	assert.Equal(t, 40*time.Millisecond, r.opts.CloseTimeout)
	require.NoError(t, r.Close())

	// explicit options win over the context
	r = NewAsyncResults(ctx, []string{"n"}, pages(1, 1), AsyncOptions{Name: "own", BufferSize: 7, CloseTimeout: time.Second})
	assert.Equal(t, 7, cap(r.ch))
	assert.Equal(t, time.Second, r.opts.CloseTimeout)
	require.NoError(t, r.Close())

	r = NewAsyncResults(context.Background(), []string{"n"}, pages(1, 1), AsyncOptions{})
	assert.Equal(t, 64, cap(r.ch))
	assert.Equal(t, 500*time.Millisecond, r.opts.CloseTimeout)
	require.NoError(t, r.Close())
}
