package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-federation/federation"
)

const data = `
# people
<alice> <knows> <bob> .
<bob> <knows> <carol> .
<alice> <name> "Alice Smith"@en .
<bob> <age> 25
<carol> <note> "says \"hi\""^^<http://www.w3.org/2001/XMLSchema#string>
`

func sliceScanner(triples []federation.Triple) Scanner {
	return ScanFunc(func(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error {
		for _, t := range triples {
			if MatchesPattern(pattern, t) {
				if err := fn(t); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func TestReadTriples(t *testing.T) {
	triples, err := ReadTriples(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, triples, 5)

	assert.Equal(t, federation.NewURI("alice"), triples[0].S)
	assert.Equal(t, federation.NewLangLiteral("Alice Smith", "en"), triples[2].O)
	assert.Equal(t, federation.NewTypedLiteral("25", federation.XSDInteger), triples[3].O)
	assert.Equal(t, `says "hi"`, triples[4].O.Value)
}

func TestReadTriplesReportsLine(t *testing.T) {
	_, err := ReadTriples(strings.NewReader("<a> <b> <c>\n<a> <b>\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestMatchBGP(t *testing.T) {
	triples, err := ReadTriples(strings.NewReader(data))
	require.NoError(t, err)
	s := sliceScanner(triples)

	pattern := []federation.Triple{
		federation.NewTriple(federation.NewVar("y"), federation.NewURI("knows"), federation.NewVar("z")),
		federation.NewTriple(federation.NewVar("x"), federation.NewURI("knows"), federation.NewVar("y")),
	}
	sols, err := MatchBGP(context.Background(), s, pattern)
	require.NoError(t, err)
	assert.Equal(t, []federation.Solution{{
		"x": federation.NewURI("alice"),
		"y": federation.NewURI("bob"),
		"z": federation.NewURI("carol"),
	}}, sols)

	none, err := MatchBGP(context.Background(), s, []federation.Triple{
		federation.NewTriple(federation.NewVar("x"), federation.NewURI("missing"), federation.NewVar("y")),
	})
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := MatchBGP(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, []federation.Solution{{}}, all)
}

func TestMatchBGPRepeatedVariable(t *testing.T) {
	s := sliceScanner([]federation.Triple{
		federation.NewTriple(federation.NewURI("a"), federation.NewURI("same"), federation.NewURI("a")),
		federation.NewTriple(federation.NewURI("a"), federation.NewURI("same"), federation.NewURI("b")),
	})
	sols, err := MatchBGP(context.Background(), s, []federation.Triple{
		federation.NewTriple(federation.NewVar("x"), federation.NewURI("same"), federation.NewVar("x")),
	})
	require.NoError(t, err)
	assert.Equal(t, []federation.Solution{{"x": federation.NewURI("a")}}, sols)
}
