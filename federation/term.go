// Package federation holds the data model shared by the planner, the executor
// and the sources: terms, triples, solutions and variable sets.
//
// File organization:
//   - term.go: Term values and their textual encoding
//   - triple.go: Triple patterns
//   - solution.go: Solution bindings
//   - varset.go: VarSet helpers
package federation

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known vocabulary used by the cardinality heuristics and filters.
const (
	RDFType     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	OWLSameAs   = "http://www.w3.org/2002/07/owl#sameAs"
	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger  = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal  = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble   = "http://www.w3.org/2001/XMLSchema#double"
	XSDBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// TermKind tags the variant held by a Term
type TermKind uint8

const (
	URI TermKind = iota
	Literal
	Blank
	Variable
)

// String returns the string representation of TermKind
func (k TermKind) String() string {
	switch k {
	case URI:
		return "uri"
	case Literal:
		return "literal"
	case Blank:
		return "blank"
	case Variable:
		return "variable"
	default:
		return "unknown"
	}
}

// Term is a value in a triple position. Terms are comparable and can be used
// as map keys.
type Term struct {
	Kind     TermKind
	Value    string // URI, lexical form, blank label or variable name (without '?')
	Datatype string // Literal datatype URI, empty for plain literals
	Lang     string // Literal language tag
}

// NewURI creates a URI term
func NewURI(uri string) Term {
	return Term{Kind: URI, Value: uri}
}

// NewLiteral creates a plain literal
func NewLiteral(lexical string) Term {
	return Term{Kind: Literal, Value: lexical}
}

// NewTypedLiteral creates a literal with a datatype
func NewTypedLiteral(lexical, datatype string) Term {
	return Term{Kind: Literal, Value: lexical, Datatype: datatype}
}

// NewLangLiteral creates a language-tagged literal
func NewLangLiteral(lexical, lang string) Term {
	return Term{Kind: Literal, Value: lexical, Lang: lang}
}

// NewInteger creates an xsd:integer literal
func NewInteger(n int64) Term {
	return NewTypedLiteral(strconv.FormatInt(n, 10), XSDInteger)
}

// NewBoolean creates an xsd:boolean literal
func NewBoolean(b bool) Term {
	return NewTypedLiteral(strconv.FormatBool(b), XSDBoolean)
}

// NewBlank creates a blank node term
func NewBlank(label string) Term {
	return Term{Kind: Blank, Value: label}
}

// NewVar creates a variable; a leading '?' or '$' is stripped
func NewVar(name string) Term {
	name = strings.TrimLeft(name, "?$")
	return Term{Kind: Variable, Value: name}
}

// IsVariable returns true if the term is a variable
func (t Term) IsVariable() bool { return t.Kind == Variable }

// IsGround returns true if the term is not a variable
func (t Term) IsGround() bool { return t.Kind != Variable }

// IsZero returns true for the zero Term
func (t Term) IsZero() bool { return t == Term{} }

// Numeric returns the numeric value of a literal, if it has one
func (t Term) Numeric() (float64, bool) {
	if t.Kind != Literal || t.Lang != "" {
		return 0, false
	}
	switch t.Datatype {
	case XSDInteger, XSDDecimal, XSDDouble, "":
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool returns the boolean value of an xsd:boolean literal
func (t Term) Bool() (bool, bool) {
	if t.Kind != Literal || t.Datatype != XSDBoolean {
		return false, false
	}
	b, err := strconv.ParseBool(t.Value)
	if err != nil {
		return false, false
	}
	return b, true
}

// String renders the term in the N-Triples-like encoding read by ParseTerm
func (t Term) String() string {
	switch t.Kind {
	case URI:
		return "<" + t.Value + ">"
	case Blank:
		return "_:" + t.Value
	case Variable:
		return "?" + t.Value
	case Literal:
		s := strconv.Quote(t.Value)
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return fmt.Sprintf("<invalid term kind %d>", t.Kind)
	}
}

// ParseTerm reads a term in the encoding produced by Term.String. Bare
// integers, decimals and booleans are accepted as typed literals.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Term{}, fmt.Errorf("empty term")
	}

	switch {
	case s[0] == '?' || s[0] == '$':
		if len(s) == 1 {
			return Term{}, fmt.Errorf("variable without name: %q", s)
		}
		return NewVar(s), nil
	case s[0] == '<':
		if !strings.HasSuffix(s, ">") {
			return Term{}, fmt.Errorf("unterminated URI: %q", s)
		}
		return NewURI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		return NewBlank(s[2:]), nil
	case s[0] == '"':
		quoted, err := strconv.QuotedPrefix(s)
		if err != nil {
			return Term{}, fmt.Errorf("bad literal %q: %w", s, err)
		}
		lexical, err := strconv.Unquote(quoted)
		if err != nil {
			return Term{}, fmt.Errorf("bad literal %q: %w", s, err)
		}
		rest := s[len(quoted):]
		switch {
		case rest == "":
			return NewLiteral(lexical), nil
		case strings.HasPrefix(rest, "@"):
			return NewLangLiteral(lexical, rest[1:]), nil
		case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
			return NewTypedLiteral(lexical, rest[3:len(rest)-1]), nil
		}
		return Term{}, fmt.Errorf("bad literal suffix %q", rest)
	case s == "true" || s == "false":
		return NewTypedLiteral(s, XSDBoolean), nil
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewTypedLiteral(s, XSDInteger), nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return NewTypedLiteral(s, XSDDecimal), nil
	}
	return Term{}, fmt.Errorf("cannot parse term %q", s)
}

// MustParseTerm is ParseTerm for literals known to be valid
func MustParseTerm(s string) Term {
	t, err := ParseTerm(s)
	if err != nil {
		panic(err)
	}
	return t
}
