package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fedquery", cmd.Use)

	for _, name := range []string{"plan", "run", "load", "serve", "generate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "fedquery.yaml", cmd.PersistentFlags().Lookup("config").DefValue)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlanRun(t *testing.T) {
	dir := t.TempDir()
	people := writeFile(t, dir, "people.nt", `
<alice> <knows> <bob> .
<bob> <knows> <carol> .
`)
	ages := writeFile(t, dir, "ages.nt", `
<bob> <age> 25 .
<carol> <age> 35 .
`)
	dsn := filepath.Join(dir, "ages.db")
	badgerDir := filepath.Join(dir, "people")

	out, err := execute(t, "load", "--driver", "sqlite", "--dsn", dsn, "--create", ages)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 triples")

	out, err = execute(t, "load", "--badger", badgerDir, people)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 triples")

	_, err = execute(t, "load", people)
	assert.Error(t, err)

	cfg := writeFile(t, dir, "fedquery.yaml", `
sources:
  - name: people
    type: badger
    path: `+badgerDir+`
  - name: ages
    type: sql
    driver: sqlite
    dsn: `+dsn+`
    exact_counts: true
`)
	q := writeFile(t, dir, "friends.yaml", `
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
  projection: [x, a]
`)

	out, err = execute(t, "--config", cfg, "plan", "--input", q)
	require.NoError(t, err)
	assert.Contains(t, out, "Input:")
	assert.Contains(t, out, "Conjunction")
	assert.Contains(t, out, "Plan:")
	assert.Contains(t, out, "Join")

	out, err = execute(t, "--config", cfg, "run", q)
	require.NoError(t, err)
	assert.Contains(t, out, "?x")
	assert.Contains(t, out, "<alice>")
	assert.Contains(t, out, `"25"`)
	assert.Contains(t, out, "_2 rows (")
}

func TestGenerateRejectsUnknownSize(t *testing.T) {
	_, err := execute(t, "generate", "--size", "huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown size")
}

func TestRunUnknownSource(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "fedquery.yaml", "sources:\n  - {name: mem, type: memory}\n")
	q := writeFile(t, dir, "q.yaml", "root:\n  query: {source: other, triples: [[\"?x\", \"<p>\", \"?y\"]]}\n")

	_, err := execute(t, "--config", cfg, "run", q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestWithTiming(t *testing.T) {
	table := "| ?x |\n|----|\n| <a> |\n\n_1 rows_\n"
	assert.Contains(t, withTiming(table, 1500*time.Microsecond), "_1 rows (1.500ms)_")
	assert.Equal(t, "_true_", withTiming("_true_", time.Second))
}
