package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
)

func tinyOHLCConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols: 2,
		NumDays:    3,
		BarsPerDay: 4,
		Prefix:     "price/",
		StartDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGenerateOHLC(t *testing.T) {
	triples := GenerateOHLC(tinyOHLCConfig())
	require.Len(t, triples, 2*3*4*7)

	first := triples[:7]
	assert.Equal(t, federation.NewURI("bar/1"), first[0].S)
	assert.Equal(t, federation.NewURI("symbol/TICK0000"), first[0].O)
	assert.Equal(t, federation.NewTypedLiteral("2025-06-01T00:00:00Z", federation.XSDDateTime), first[1].O)
	assert.Equal(t, federation.NewTypedLiteral("100.00", federation.XSDDecimal), first[3].O)
	assert.Equal(t, federation.NewTypedLiteral("102.00", federation.XSDDecimal), first[4].O)

	// six hour bars at four per day
	assert.Equal(t, federation.NewInteger(360), triples[7+2].O)
}

func TestBuildTestDatabase(t *testing.T) {
	cfg := tinyOHLCConfig()
	cfg.OutputPath = t.TempDir() + "/ohlc"
	store, err := BuildTestDatabase(cfg, io.Discard)
	require.NoError(t, err)
	defer store.Close()

	src := NewSource("prices", store, DefaultSourceOptions())
	q := query.NewCQuery([]federation.Triple{
		tp("?bar", "<price/symbol>", "<symbol/TICK0001>"),
	})
	assert.Equal(t, cardinality.NewExact(12), src.EstimateCardinality(q))

	q = query.NewCQuery([]federation.Triple{
		tp("?bar", "<price/symbol>", "<symbol/TICK0001>"),
		tp("?bar", "<price/open>", "?open"),
	}, query.NewFilter(query.Cmp(query.OpGTE, query.Var("open"), query.Const(federation.NewTypedLiteral("110.2", federation.XSDDecimal)))))
	r, err := src.Execute(context.Background(), q)
	require.NoError(t, err)
	sols, err := executor.Collect(r)
	require.NoError(t, err)
	// TICK0001 opens at 110.00 + 0.1/day + 0.01/bar: only day 2 reaches 110.2
	assert.Len(t, sols, 4)
}

// BenchmarkPatternScan profiles index scans over the default dataset.
// Build it once in memory per run:
//
//	go test -bench=^BenchmarkPatternScan -cpuprofile=cpu.prof ./federation/storage
func BenchmarkPatternScan(b *testing.B) {
	cfg := DefaultOHLCConfig()
	cfg.OutputPath = ""
	store, err := BuildTestDatabase(cfg, io.Discard)
	require.NoError(b, err)
	defer store.Close()

	cases := []struct {
		name    string
		pattern federation.Triple
	}{
		{"UnboundSubject_PriceTime", tp("?bar", "<price/time>", "?time")},
		{"BoundObject_Symbol", tp("?bar", "<price/symbol>", "<symbol/TICK0003>")},
		{"BoundSubject_SingleBar", tp("<bar/100>", "?p", "?o")},
	}
	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				n := 0
				err := store.Scan(context.Background(), tc.pattern, func(federation.Triple) error {
					n++
					return nil
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
