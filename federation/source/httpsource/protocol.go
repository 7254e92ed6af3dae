package httpsource

import (
	"fmt"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/query"
)

// Terms travel in the encoding of federation.Term.String; unbound values
// are null.

// QueryRequest asks for one page of the answers of a query
type QueryRequest struct {
	ID         string       `json:"id"`
	Triples    [][3]string  `json:"triples"`
	Projection []string     `json:"projection,omitempty"`
	Project    bool         `json:"project,omitempty"`
	Distinct   bool         `json:"distinct,omitempty"`
	Limit      *int         `json:"limit,omitempty"`
	Ask        bool         `json:"ask,omitempty"`
	Filters    []*ExprJSON  `json:"filters,omitempty"`
	Values     []ValuesJSON `json:"values,omitempty"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
}

// QueryResponse carries one page of solutions
type QueryResponse struct {
	ID   string      `json:"id"`
	Vars []string    `json:"vars"`
	Rows [][]*string `json:"rows"`
	Last bool        `json:"last"`
}

// EstimateResponse carries the endpoint's cardinality estimate
type EstimateResponse struct {
	Reliability string `json:"reliability"`
	Value       int64  `json:"value"`
}

// CapabilitiesResponse lists the capability names of the endpoint
type CapabilitiesResponse struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// ErrorResponse is returned with a non-2xx status
type ErrorResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// ValuesJSON is a Values modifier
type ValuesJSON struct {
	Vars []string    `json:"vars"`
	Rows [][]*string `json:"rows"`
}

// ExprJSON is a filter expression tree. Exactly one of Term, Bound or Op
// is set; Op is a comparison or logical operator applied to Args. Query
// files use the same shape in YAML.
type ExprJSON struct {
	Term  string      `json:"term,omitempty" yaml:"term,omitempty"`
	Bound string      `json:"bound,omitempty" yaml:"bound,omitempty"`
	Op    string      `json:"op,omitempty" yaml:"op,omitempty"`
	Args  []*ExprJSON `json:"args,omitempty" yaml:"args,omitempty"`
}

// Expr decodes the tree
func (e *ExprJSON) Expr() (query.Expr, error) {
	return decodeExpr(e)
}

// EncodeQuery builds the request for a query
func EncodeQuery(q *query.CQuery) (*QueryRequest, error) {
	req := &QueryRequest{}
	for _, t := range q.Triples {
		req.Triples = append(req.Triples, [3]string{t.S.String(), t.P.String(), t.O.String()})
	}
	for _, m := range q.Modifiers.All() {
		switch mod := m.(type) {
		case query.Projection:
			req.Project = true
			req.Projection = mod.Vars
		case query.Distinct:
			req.Distinct = true
		case query.Limit:
			n := mod.N
			req.Limit = &n
		case query.Ask:
			req.Ask = true
		case query.Filter:
			e, err := encodeExpr(mod.Expr)
			if err != nil {
				return nil, err
			}
			req.Filters = append(req.Filters, e)
		case query.Values:
			req.Values = append(req.Values, ValuesJSON{Vars: mod.Vars, Rows: encodeRows(mod.Vars, mod.Rows)})
		case query.Optional:
			// belongs to the enclosing join
		default:
			return nil, fmt.Errorf("cannot encode modifier %s", m)
		}
	}
	return req, nil
}

// DecodeQuery rebuilds the query of a request
func DecodeQuery(req *QueryRequest) (*query.CQuery, error) {
	triples := make([]federation.Triple, len(req.Triples))
	for i, t := range req.Triples {
		var terms [3]federation.Term
		for j, s := range t {
			term, err := federation.ParseTerm(s)
			if err != nil {
				return nil, fmt.Errorf("triple %d: %w", i, err)
			}
			terms[j] = term
		}
		triples[i] = federation.NewTriple(terms[0], terms[1], terms[2])
	}

	var mods []query.Modifier
	for _, v := range req.Values {
		rows, err := decodeRows(v.Vars, v.Rows)
		if err != nil {
			return nil, err
		}
		mods = append(mods, query.Values{Vars: v.Vars, Rows: rows})
	}
	for _, f := range req.Filters {
		e, err := decodeExpr(f)
		if err != nil {
			return nil, err
		}
		mods = append(mods, query.NewFilter(e))
	}
	if req.Project {
		mods = append(mods, query.Projection{Vars: req.Projection})
	}
	if req.Distinct {
		mods = append(mods, query.Distinct{})
	}
	if req.Limit != nil {
		mods = append(mods, query.Limit{N: *req.Limit})
	}
	if req.Ask {
		mods = append(mods, query.Ask{})
	}
	return query.NewCQuery(triples, mods...), nil
}

func encodeRows(vars []string, sols []federation.Solution) [][]*string {
	rows := make([][]*string, len(sols))
	for i, s := range sols {
		row := make([]*string, len(vars))
		for j, v := range vars {
			if t, ok := s[v]; ok {
				str := t.String()
				row[j] = &str
			}
		}
		rows[i] = row
	}
	return rows
}

func decodeRows(vars []string, rows [][]*string) ([]federation.Solution, error) {
	sols := make([]federation.Solution, len(rows))
	for i, row := range rows {
		if len(row) != len(vars) {
			return nil, fmt.Errorf("row %d has %d values for %d vars", i, len(row), len(vars))
		}
		sol := make(federation.Solution, len(vars))
		for j, v := range vars {
			if row[j] == nil {
				continue
			}
			t, err := federation.ParseTerm(*row[j])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			sol[v] = t
		}
		sols[i] = sol
	}
	return sols, nil
}

func encodeExpr(e query.Expr) (*ExprJSON, error) {
	switch x := e.(type) {
	case query.TermExpr:
		return &ExprJSON{Term: x.Term.String()}, nil
	case query.BoundExpr:
		return &ExprJSON{Bound: x.Var.Value}, nil
	case query.CompareExpr:
		l, err := encodeExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := encodeExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return &ExprJSON{Op: string(x.Op), Args: []*ExprJSON{l, r}}, nil
	case query.LogicalExpr:
		out := &ExprJSON{Op: string(x.Op)}
		for _, a := range x.Operands {
			enc, err := encodeExpr(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, enc)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot encode expression %s", e)
	}
}

func decodeExpr(e *ExprJSON) (query.Expr, error) {
	switch {
	case e == nil:
		return nil, fmt.Errorf("missing expression")
	case e.Term != "":
		t, err := federation.ParseTerm(e.Term)
		if err != nil {
			return nil, err
		}
		return query.Const(t), nil
	case e.Bound != "":
		return query.Bound(e.Bound), nil
	}

	args := make([]query.Expr, len(e.Args))
	for i, a := range e.Args {
		d, err := decodeExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = d
	}
	switch op := query.LogicalOp(e.Op); op {
	case query.OpAnd:
		return query.LogicalExpr{Op: op, Operands: args}, nil
	case query.OpOr:
		return query.Or(args...), nil
	case query.OpNot:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument", op)
		}
		return query.Not(args[0]), nil
	}
	switch op := query.CompareOp(e.Op); op {
	case query.OpEQ, query.OpNE, query.OpLT, query.OpLTE, query.OpGT, query.OpGTE:
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes two arguments", op)
		}
		return query.Cmp(op, args[0], args[1]), nil
	}
	return nil, fmt.Errorf("unknown operator %q", e.Op)
}
