package annotations

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorDisabledWithoutHandler(t *testing.T) {
	c := NewCollector(nil)
	c.Add(Event{Name: QueryInvoked})
	assert.False(t, c.Enabled())
	assert.Empty(t, c.Events())

	var nilCollector *Collector
	nilCollector.AddTiming(QueryInvoked, time.Now(), nil)
	assert.Nil(t, nilCollector.Events())
}

func TestCollectorConcurrentAdd(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	c := NewCollector(func(Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				c.AddTiming(SourcePage, time.Now(), map[string]interface{}{"page": j})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, c.Events(), 200)
	assert.Len(t, c.Named(SourcePage), 200)
	assert.Equal(t, 200, seen)
	c.Reset()
	assert.Empty(t, c.Events())
}

func TestFormatterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	f.Handle(Event{Name: SourceQuery, Latency: 1500 * time.Microsecond, Data: map[string]interface{}{
		"endpoint":        "people",
		"pattern":         "{?s <name> ?n}",
		"vars":            []string{"s", "n"},
		"solutions.count": 3,
	}})
	f.Handle(Event{Name: JoinStrategy, Data: map[string]interface{}{
		"strategy":          "hash",
		"reason":            "both sides exact",
		"left.cardinality":  "exact(3)",
		"right.cardinality": "exact(5)",
	}})
	f.Handle(Event{Name: QueryComplete, Data: map[string]interface{}{"success": false, "error": errors.New("boom")}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[1.5ms] Source(people, {?s <name> ?n}) → Solutions([?s ?n], 3 Rows)", lines[0])
	assert.Equal(t, "[0µs] hash join (both sides exact): left exact(3), right exact(5)", lines[1])
	assert.Equal(t, "[0µs] ✗ Query failed: boom", lines[2])
}

func TestFormatterJoin(t *testing.T) {
	f := NewOutputFormatter(&bytes.Buffer{})
	out := f.Format(Event{Name: JoinHash, Data: map[string]interface{}{
		"left.size": 2, "right.size": 3, "result.size": 4,
		"left.vars": []string{"x"}, "right.vars": []string{"x", "y"}, "result.vars": []string{"x", "y"},
	}})
	assert.Equal(t, "[0µs] Solutions([?x], 2 Rows) ⋈ Solutions([?x ?y], 3 Rows) → Solutions([?x ?y], 4 Rows)", out)
}
