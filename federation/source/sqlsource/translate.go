package sqlsource

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

var positions = [3]string{"s", "p", "o"}

// statement is a translated query: SQL text, its arguments and the
// variable bound by each selected column
type statement struct {
	text string
	args []interface{}
	vars []string
}

// translate turns a basic graph pattern into a self-join over the triple
// table. With push set, projection, distinct, limit and ask become part of
// the SQL; otherwise every pattern variable is selected and the modifiers
// are left to the caller.
func translate(d Dialect, table string, q *query.CQuery, push bool) (statement, error) {
	if len(q.Triples) == 0 {
		return statement{}, fmt.Errorf("empty pattern")
	}

	var (
		from   []string
		where  []string
		args   []interface{}
		column = make(map[string]string)
	)
	for i, t := range q.Triples {
		alias := fmt.Sprintf("t%d", i)
		from = append(from, d.QuoteIdentifier(table)+" "+alias)
		for j, term := range t.Terms() {
			col := alias + "." + positions[j]
			if !term.IsVariable() {
				args = append(args, term.String())
				where = append(where, col+" = "+d.Placeholder(len(args)))
				continue
			}
			if first, ok := column[term.Value]; ok {
				where = append(where, col+" = "+first)
				continue
			}
			column[term.Value] = col
		}
	}

	vars := q.TripleVars()
	mods := q.Modifiers
	if push {
		if p, ok := mods.Projection(); ok {
			vars = vars.Intersect(p.VarSet())
		}
		if mods.Has(query.KindAsk) {
			vars = federation.NewVarSet()
		}
	}
	selected := vars.Sorted()

	var b strings.Builder
	b.WriteString("SELECT ")
	if push && mods.Has(query.KindDistinct) {
		b.WriteString("DISTINCT ")
	}
	if len(selected) == 0 {
		b.WriteString("1")
	}
	for i, v := range selected {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s AS %s", column[v], d.QuoteIdentifier("v_"+v))
	}
	b.WriteString(" FROM ")
	b.WriteString(strings.Join(from, ", "))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if push {
		if mods.Has(query.KindAsk) {
			b.WriteString(" LIMIT 1")
		} else if l, ok := mods.Limit(); ok {
			fmt.Fprintf(&b, " LIMIT %d", l.N)
		}
	}
	return statement{text: b.String(), args: args, vars: selected}, nil
}

// pushable reports whether every modifier of q can be evaluated in SQL.
// Filters and Values run in Go, and they come before the result-shaping
// modifiers.
func pushable(q *query.CQuery) bool {
	return len(q.Modifiers.Filters()) == 0 && len(q.Modifiers.Values()) == 0
}
