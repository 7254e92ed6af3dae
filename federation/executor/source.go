package executor

import (
	"context"

	"github.com/wbrown/janus-federation/federation/query"
)

// Source is an endpoint that answers conjunctive queries. It must
// evaluate every modifier of q; the executor only sends modifiers the
// source's capabilities declare and applies the rest itself. Required
// inputs of q are always bound by the time Execute is called.
type Source interface {
	query.Endpoint
	Execute(ctx context.Context, q *query.CQuery) (Results, error)
}
