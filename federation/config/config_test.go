package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
	"github.com/wbrown/janus-federation/federation/source/memory"
)

func TestParseOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
planner:
  union_distribution: false
  check_invariants: true
  cache_size: 16
  cache_ttl: 1m
executor:
  hash_join_threshold: 50
  close_timeout: 2s
  max_union_workers: 3
`))
	require.NoError(t, err)

	popts := cfg.PlannerOptions()
	assert.False(t, popts.EnableUnionDistribution)
	assert.True(t, popts.EnableJoinOrdering)
	assert.True(t, popts.CheckInvariants)
	assert.NotNil(t, popts.Cache)

	eopts := cfg.ExecutorOptions()
	assert.Equal(t, int64(50), eopts.HashJoinThreshold)
	assert.Equal(t, int64(1), eopts.AskDegenerateRows)
	assert.Equal(t, 2*time.Second, eopts.CloseTimeout)
	assert.Equal(t, 3, eopts.MaxUnionWorkers)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, executor.DefaultExecutorOptions(), cfg.ExecutorOptions())
	assert.Nil(t, cfg.PlannerOptions().Cache)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "planner:\n  join_order: true\n", "join_order"},
		{"missing name", "sources:\n  - type: memory\n", "name is required"},
		{"duplicate", "sources:\n  - {name: a, type: memory}\n  - {name: a, type: badger}\n", "duplicate"},
		{"unknown type", "sources:\n  - {name: a, type: sparql}\n", "unknown type"},
		{"sql without dsn", "sources:\n  - {name: a, type: sql, driver: sqlite}\n", "dsn"},
		{"http without url", "sources:\n  - {name: a, type: http}\n", "url"},
		{"bad capability", "sources:\n  - {name: a, type: memory, capabilities: [group-by]}\n", "group-by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenSources(t *testing.T) {
	dir := t.TempDir()
	triples := filepath.Join(dir, "people.nt")
	require.NoError(t, os.WriteFile(triples, []byte(`
# people
<alice> <knows> <bob> .
<bob> <age> 25 .
`), 0o644))

	cfg, err := Parse([]byte(`
sources:
  - name: people
    type: memory
    triples: ` + triples + `
    capabilities: [filter, projection]
  - name: store
    type: badger
  - name: db
    type: sql
    driver: sqlite
    dsn: ` + filepath.Join(dir, "db.sqlite") + `
`))
	require.NoError(t, err)

	srcs, err := OpenSources(context.Background(), cfg.Sources)
	require.NoError(t, err)
	defer srcs.Close()

	assert.Equal(t, []string{"people", "store", "db"}, srcs.Names())
	people, ok := srcs.Get("people")
	require.True(t, ok)
	assert.Equal(t, query.CapFilter|query.CapProjection, people.Capabilities())
	assert.Equal(t, 2, people.(*memory.Source).Len())

	_, ok = srcs.Get("missing")
	assert.False(t, ok)
}

func TestOpenSourcesClosesOnError(t *testing.T) {
	_, err := OpenSources(context.Background(), []SourceConfig{
		{Name: "store", Type: SourceBadger},
		{Name: "broken", Type: SourceMemory, Triples: filepath.Join(t.TempDir(), "missing.nt")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestQueryFileBuild(t *testing.T) {
	srcs := NewSources(
		memory.New("people", federation.NewTriple(federation.NewURI("alice"), federation.NewURI("knows"), federation.NewURI("bob"))),
		memory.New("ages"),
	)
	qf, err := ParseQuery([]byte(`
root:
  conjunction:
    - query:
        source: people
        triples:
          - ["?x", "<knows>", "?y"]
    - query:
        source: ages
        triples:
          - ["?y", "<age>", "?a"]
      optional: true
      lock: true
  filters:
    - op: ">"
      args: [{term: "?a"}, {term: "30"}]
  values:
    - vars: [x]
      rows: [["<alice>"], [null]]
  projection: [x, a]
  limit: 10
`))
	require.NoError(t, err)

	tree, err := qf.Build(srcs)
	require.NoError(t, err)
	root := tree.Root()
	assert.Equal(t, plan.KindConjunction, tree.Kind(root))
	assert.Len(t, tree.Children(root), 2)

	mods := tree.Modifiers(root)
	assert.Len(t, mods.Filters(), 1)
	assert.Len(t, mods.Values(), 1)
	assert.Len(t, mods.Values()[0].Rows, 2)
	l, ok := mods.Limit()
	require.True(t, ok)
	assert.Equal(t, 10, l.N)

	second := tree.Child(root, 1)
	assert.True(t, tree.IsLocked(second))
	assert.True(t, tree.HasModifier(second, query.KindOptional))
	assert.Equal(t, "ages", tree.Endpoint(second).Name())
}

func TestQueryFileRejects(t *testing.T) {
	srcs := NewSources(memory.New("people"))
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"two operators", "root:\n  empty: [x]\n  union: []\n", "exactly one operator"},
		{"no operator", "root:\n  distinct: true\n", "exactly one operator"},
		{"unknown source", "root:\n  query: {source: nope, triples: [[\"?x\", \"<p>\", \"?y\"]]}\n", "unknown source"},
		{"join arity", "root:\n  join:\n    - empty: [x]\n", "two children"},
		{"bad filter", "root:\n  empty: [x]\n  filters: [{op: \"~\", args: [{term: \"?x\"}]}]\n", "unknown operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qf, err := ParseQuery([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = qf.Build(srcs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
