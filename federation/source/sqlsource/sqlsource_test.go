package sqlsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
)

func tp(s, p, o string) federation.Triple {
	return federation.NewTriple(federation.MustParseTerm(s), federation.MustParseTerm(p), federation.MustParseTerm(o))
}

func TestTranslate(t *testing.T) {
	q := query.NewCQuery([]federation.Triple{
		tp("?x", "<knows>", "?y"),
		tp("?y", "<age>", "?a"),
	}, query.Projection{Vars: []string{"x", "a"}}, query.Distinct{}, query.Limit{N: 5})

	stmt, err := translate(PostgresDialect{}, "triples", q, true)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT DISTINCT t1.o AS "v_a", t0.s AS "v_x" FROM "triples" t0, "triples" t1 `+
			`WHERE t0.p = $1 AND t1.s = t0.o AND t1.p = $2 LIMIT 5`,
		stmt.text)
	assert.Equal(t, []interface{}{"<knows>", "<age>"}, stmt.args)
	assert.Equal(t, []string{"a", "x"}, stmt.vars)

	stmt, err = translate(MySQLDialect{}, "triples", q, false)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT t1.o AS `v_a`, t0.s AS `v_x`, t0.o AS `v_y` FROM `triples` t0, `triples` t1 "+
			"WHERE t0.p = ? AND t1.s = t0.o AND t1.p = ?",
		stmt.text)
}

func TestTranslateAsk(t *testing.T) {
	q := query.NewCQuery([]federation.Triple{tp("<alice>", "<knows>", "?y")}, query.Ask{})
	stmt, err := translate(SQLiteDialect{}, "t", q, true)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM "t" t0 WHERE t0.s = ? AND t0.p = ? LIMIT 1`, stmt.text)
	assert.Empty(t, stmt.vars)
}

func TestDialectFor(t *testing.T) {
	for driver, name := range map[string]string{"sqlite": "sqlite", "MySQL": "mysql", "postgresql": "postgres"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, name, d.DriverName())
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func openTestSource(t *testing.T) *Source {
	t.Helper()
	ctx := context.Background()
	src, err := Open(ctx, Config{
		Name:        "sql",
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "triples.db"),
		PageSize:    2,
		ExactCounts: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	require.NoError(t, src.CreateTable(ctx))
	require.NoError(t, src.Load(ctx, []federation.Triple{
		tp("<alice>", "<knows>", "<bob>"),
		tp("<bob>", "<knows>", "<carol>"),
		tp("<carol>", "<knows>", "<alice>"),
		tp("<alice>", "<age>", "30"),
		tp("<bob>", "<age>", "25"),
		tp("<carol>", "<age>", "35"),
		tp("<alice>", "<name>", `"Alice \"Al\" Smith"@en`),
	}))
	return src
}

func collect(t *testing.T, src *Source, q *query.CQuery) []federation.Solution {
	t.Helper()
	r, err := src.Execute(context.Background(), q)
	require.NoError(t, err)
	sols, err := executor.Collect(r)
	require.NoError(t, err)
	return sols
}

func TestSQLiteSource(t *testing.T) {
	src := openTestSource(t)

	sols := collect(t, src, query.NewCQuery([]federation.Triple{
		tp("?x", "<knows>", "?y"),
		tp("?y", "<age>", "?a"),
	}))
	assert.ElementsMatch(t, []federation.Solution{
		{"x": federation.NewURI("alice"), "y": federation.NewURI("bob"), "a": federation.MustParseTerm("25")},
		{"x": federation.NewURI("bob"), "y": federation.NewURI("carol"), "a": federation.MustParseTerm("35")},
		{"x": federation.NewURI("carol"), "y": federation.NewURI("alice"), "a": federation.MustParseTerm("30")},
	}, sols)

	sols = collect(t, src, query.NewCQuery([]federation.Triple{tp("<alice>", "<name>", "?n")}))
	require.Len(t, sols, 1)
	assert.Equal(t, federation.NewLangLiteral(`Alice "Al" Smith`, "en"), sols[0]["n"])
}

func TestSQLiteSourceFiltersBeforeLimit(t *testing.T) {
	src := openTestSource(t)
	q := query.NewCQuery([]federation.Triple{tp("?x", "<age>", "?a")},
		query.NewFilter(query.Cmp(query.OpGT, query.Var("a"), query.Const(federation.NewInteger(26)))),
		query.Projection{Vars: []string{"x"}},
		query.Limit{N: 5},
	)
	assert.ElementsMatch(t, []federation.Solution{
		{"x": federation.NewURI("alice")},
		{"x": federation.NewURI("carol")},
	}, collect(t, src, q))
}

func TestSQLiteSourceAsk(t *testing.T) {
	src := openTestSource(t)
	assert.Equal(t, []federation.Solution{{}},
		collect(t, src, query.NewCQuery([]federation.Triple{tp("?x", "<knows>", "<alice>")}, query.Ask{})))
	assert.Empty(t,
		collect(t, src, query.NewCQuery([]federation.Triple{tp("?x", "<knows>", "<dave>")}, query.Ask{})))
}

func TestSQLiteSourceEstimate(t *testing.T) {
	src := openTestSource(t)
	assert.Equal(t, cardinality.NewExact(3),
		src.EstimateCardinality(query.NewCQuery([]federation.Triple{tp("?x", "<knows>", "?y")})))
	assert.Equal(t, cardinality.NewUpperBound(3),
		src.EstimateCardinality(query.NewCQuery([]federation.Triple{tp("?x", "<age>", "?a")},
			query.NewFilter(query.Bound("x")))))
}
