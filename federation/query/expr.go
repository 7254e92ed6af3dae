// Package query defines the conjunctive queries answered by federation
// endpoints: triple patterns, modifiers, filter expressions and endpoint
// capabilities.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wbrown/janus-federation/federation"
)

// ErrUnbound is returned when an expression reads a variable without a value
var ErrUnbound = errors.New("unbound variable")

// Expr is a filter expression tree. The planner only inspects variable
// dependencies; evaluation happens in the executor or at the endpoint.
type Expr interface {
	// VarsMentioned returns every variable referenced in the subtree
	VarsMentioned() federation.VarSet

	// IsTerm is true for leaves (variables and constants)
	IsTerm() bool

	// IsLogicalOp is true for AND, OR and NOT
	IsLogicalOp() bool

	// Args returns the direct sub-expressions
	Args() []Expr

	// Evaluate computes the value of the expression under sol
	Evaluate(sol federation.Solution) (federation.Term, error)

	// Bind substitutes every variable bound in sol, specialising the tree
	Bind(sol federation.Solution) Expr

	String() string
}

// CompareOp is a comparison operator
type CompareOp string

const (
	OpEQ  CompareOp = "="
	OpNE  CompareOp = "!="
	OpLT  CompareOp = "<"
	OpLTE CompareOp = "<="
	OpGT  CompareOp = ">"
	OpGTE CompareOp = ">="
)

// LogicalOp is a boolean connective
type LogicalOp string

const (
	OpAnd LogicalOp = "&&"
	OpOr  LogicalOp = "||"
	OpNot LogicalOp = "!"
)

// TermExpr is a leaf holding a variable or a constant
type TermExpr struct {
	Term federation.Term
}

// Var creates a variable leaf
func Var(name string) Expr { return TermExpr{Term: federation.NewVar(name)} }

// Const creates a constant leaf
func Const(t federation.Term) Expr { return TermExpr{Term: t} }

func (e TermExpr) VarsMentioned() federation.VarSet {
	if e.Term.IsVariable() {
		return federation.NewVarSet(e.Term.Value)
	}
	return federation.NewVarSet()
}

func (e TermExpr) IsTerm() bool      { return true }
func (e TermExpr) IsLogicalOp() bool { return false }
func (e TermExpr) Args() []Expr      { return nil }

func (e TermExpr) Evaluate(sol federation.Solution) (federation.Term, error) {
	t := sol.Resolve(e.Term)
	if t.IsVariable() {
		return federation.Term{}, fmt.Errorf("%w: %s", ErrUnbound, t)
	}
	return t, nil
}

func (e TermExpr) Bind(sol federation.Solution) Expr {
	return TermExpr{Term: sol.Resolve(e.Term)}
}

func (e TermExpr) String() string { return e.Term.String() }

// CompareExpr compares two sub-expressions
type CompareExpr struct {
	Op          CompareOp
	Left, Right Expr
}

// Cmp creates a comparison
func Cmp(op CompareOp, left, right Expr) Expr {
	return CompareExpr{Op: op, Left: left, Right: right}
}

func (e CompareExpr) VarsMentioned() federation.VarSet {
	return e.Left.VarsMentioned().Union(e.Right.VarsMentioned())
}

func (e CompareExpr) IsTerm() bool      { return false }
func (e CompareExpr) IsLogicalOp() bool { return false }
func (e CompareExpr) Args() []Expr      { return []Expr{e.Left, e.Right} }

func (e CompareExpr) Evaluate(sol federation.Solution) (federation.Term, error) {
	l, err := e.Left.Evaluate(sol)
	if err != nil {
		return federation.Term{}, err
	}
	r, err := e.Right.Evaluate(sol)
	if err != nil {
		return federation.Term{}, err
	}
	ok, err := compareTerms(e.Op, l, r)
	if err != nil {
		return federation.Term{}, err
	}
	return federation.NewBoolean(ok), nil
}

func (e CompareExpr) Bind(sol federation.Solution) Expr {
	return CompareExpr{Op: e.Op, Left: e.Left.Bind(sol), Right: e.Right.Bind(sol)}
}

func (e CompareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// LogicalExpr combines boolean sub-expressions
type LogicalExpr struct {
	Op       LogicalOp
	Operands []Expr
}

// And creates a conjunction; nested conjunctions are flattened
func And(args ...Expr) Expr {
	var flat []Expr
	for _, a := range args {
		if l, ok := a.(LogicalExpr); ok && l.Op == OpAnd {
			flat = append(flat, l.Operands...)
			continue
		}
		flat = append(flat, a)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return LogicalExpr{Op: OpAnd, Operands: flat}
}

// Or creates a disjunction
func Or(args ...Expr) Expr {
	if len(args) == 1 {
		return args[0]
	}
	return LogicalExpr{Op: OpOr, Operands: args}
}

// Not negates an expression
func Not(arg Expr) Expr {
	return LogicalExpr{Op: OpNot, Operands: []Expr{arg}}
}

func (e LogicalExpr) VarsMentioned() federation.VarSet {
	vars := federation.NewVarSet()
	for _, a := range e.Operands {
		vars.AddAll(a.VarsMentioned())
	}
	return vars
}

func (e LogicalExpr) IsTerm() bool      { return false }
func (e LogicalExpr) IsLogicalOp() bool { return true }
func (e LogicalExpr) Args() []Expr      { return e.Operands }

func (e LogicalExpr) Evaluate(sol federation.Solution) (federation.Term, error) {
	switch e.Op {
	case OpNot:
		if len(e.Operands) != 1 {
			return federation.Term{}, fmt.Errorf("! expects one operand, got %d", len(e.Operands))
		}
		v, err := EvalBool(e.Operands[0], sol)
		if err != nil {
			return federation.Term{}, err
		}
		return federation.NewBoolean(!v), nil
	case OpAnd:
		// An error only matters if no operand is false
		var firstErr error
		for _, a := range e.Operands {
			v, err := EvalBool(a, sol)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if !v {
				return federation.NewBoolean(false), nil
			}
		}
		if firstErr != nil {
			return federation.Term{}, firstErr
		}
		return federation.NewBoolean(true), nil
	case OpOr:
		var firstErr error
		for _, a := range e.Operands {
			v, err := EvalBool(a, sol)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if v {
				return federation.NewBoolean(true), nil
			}
		}
		if firstErr != nil {
			return federation.Term{}, firstErr
		}
		return federation.NewBoolean(false), nil
	}
	return federation.Term{}, fmt.Errorf("unknown logical operator %q", e.Op)
}

func (e LogicalExpr) Bind(sol federation.Solution) Expr {
	args := make([]Expr, len(e.Operands))
	for i, a := range e.Operands {
		args[i] = a.Bind(sol)
	}
	return LogicalExpr{Op: e.Op, Operands: args}
}

func (e LogicalExpr) String() string {
	if e.Op == OpNot && len(e.Operands) == 1 {
		return "!" + e.Operands[0].String()
	}
	parts := make([]string, len(e.Operands))
	for i, a := range e.Operands {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, " "+string(e.Op)+" ") + ")"
}

// BoundExpr tests whether a variable has a value
type BoundExpr struct {
	Var federation.Term
}

// Bound creates a BOUND(?v) test
func Bound(name string) Expr { return BoundExpr{Var: federation.NewVar(name)} }

func (e BoundExpr) VarsMentioned() federation.VarSet {
	if e.Var.IsVariable() {
		return federation.NewVarSet(e.Var.Value)
	}
	return federation.NewVarSet()
}

func (e BoundExpr) IsTerm() bool      { return false }
func (e BoundExpr) IsLogicalOp() bool { return false }
func (e BoundExpr) Args() []Expr      { return nil }

func (e BoundExpr) Evaluate(sol federation.Solution) (federation.Term, error) {
	return federation.NewBoolean(!sol.Resolve(e.Var).IsVariable()), nil
}

func (e BoundExpr) Bind(sol federation.Solution) Expr {
	return BoundExpr{Var: sol.Resolve(e.Var)}
}

func (e BoundExpr) String() string { return "bound(" + e.Var.String() + ")" }

// EvalBool evaluates an expression to its effective boolean value
func EvalBool(e Expr, sol federation.Solution) (bool, error) {
	t, err := e.Evaluate(sol)
	if err != nil {
		return false, err
	}
	return EffectiveBool(t)
}

// EffectiveBool converts a term to a boolean
func EffectiveBool(t federation.Term) (bool, error) {
	if b, ok := t.Bool(); ok {
		return b, nil
	}
	if t.Kind == federation.Literal {
		if f, ok := t.Numeric(); ok && t.Datatype != "" {
			return f != 0, nil
		}
		return t.Value != "", nil
	}
	return false, fmt.Errorf("no boolean value for %s", t)
}

// Conjuncts splits an expression at its top-level AND operators. The
// resulting components cannot be split further.
func Conjuncts(e Expr) []Expr {
	if l, ok := e.(LogicalExpr); ok && l.Op == OpAnd {
		var out []Expr
		for _, a := range l.Operands {
			out = append(out, Conjuncts(a)...)
		}
		return out
	}
	return []Expr{e}
}

// BooleanSubExprs returns every non-leaf node reachable from e, including e
func BooleanSubExprs(e Expr) []Expr {
	if e.IsTerm() {
		return nil
	}
	out := []Expr{e}
	for _, a := range e.Args() {
		out = append(out, BooleanSubExprs(a)...)
	}
	return out
}

func compareTerms(op CompareOp, l, r federation.Term) (bool, error) {
	if lf, ok := l.Numeric(); ok {
		if rf, ok := r.Numeric(); ok {
			return applyOrder(op, compareFloat(lf, rf)), nil
		}
	}

	switch op {
	case OpEQ:
		return l == r, nil
	case OpNE:
		return l != r, nil
	}

	if l.Kind != r.Kind {
		return false, fmt.Errorf("cannot order %s and %s", l.Kind, r.Kind)
	}
	return applyOrder(op, strings.Compare(l.Value, r.Value)), nil
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func applyOrder(op CompareOp, c int) bool {
	switch op {
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	case OpLT:
		return c < 0
	case OpLTE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGTE:
		return c >= 0
	}
	return false
}
