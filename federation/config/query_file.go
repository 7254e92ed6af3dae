package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/plan"
	"github.com/wbrown/janus-federation/federation/query"
	"github.com/wbrown/janus-federation/federation/source/httpsource"
)

// QueryFile is an operator tree written in YAML. Each node names exactly
// one operator and may carry modifiers:
//
//	root:
//	  conjunction:
//	    - query:
//	        source: people
//	        triples:
//	          - ["?x", "<knows>", "?y"]
//	    - query:
//	        source: ages
//	        triples:
//	          - ["?y", "<age>", "?a"]
//	  filters:
//	    - op: ">"
//	      args: [{term: "?a"}, {term: "30"}]
//	  projection: [x, a]
type QueryFile struct {
	Root NodeSpec `yaml:"root"`
}

// NodeSpec is one operator with its modifiers
type NodeSpec struct {
	Query       *LeafSpec  `yaml:"query,omitempty"`
	Join        []NodeSpec `yaml:"join,omitempty"`
	Union       []NodeSpec `yaml:"union,omitempty"`
	Cartesian   []NodeSpec `yaml:"cartesian,omitempty"`
	Conjunction []NodeSpec `yaml:"conjunction,omitempty"`
	Pipe        *NodeSpec  `yaml:"pipe,omitempty"`
	Empty       []string   `yaml:"empty,omitempty"` // Variables of an empty leaf

	// Lock keeps the node in place during planning
	Lock bool `yaml:"lock,omitempty"`

	ModifierSpec `yaml:",inline"`
}

// LeafSpec is a conjunctive query sent to one source
type LeafSpec struct {
	Source  string      `yaml:"source"`
	Triples [][3]string `yaml:"triples"`
}

// ModifierSpec lists the modifiers of a node
type ModifierSpec struct {
	Values     []ValuesSpec           `yaml:"values,omitempty"`
	Filters    []*httpsource.ExprJSON `yaml:"filters,omitempty"`
	Projection []string               `yaml:"projection,omitempty"`
	Distinct   bool                   `yaml:"distinct,omitempty"`
	Limit      *int                   `yaml:"limit,omitempty"`
	Ask        bool                   `yaml:"ask,omitempty"`
	Optional   bool                   `yaml:"optional,omitempty"`
}

// ValuesSpec is an inline table; null cells leave the variable unbound
type ValuesSpec struct {
	Vars []string    `yaml:"vars"`
	Rows [][]*string `yaml:"rows"`
}

// LoadQuery reads a query file
func LoadQuery(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return ParseQuery(data)
}

// ParseQuery decodes a query file, rejecting unknown fields
func ParseQuery(data []byte) (*QueryFile, error) {
	var qf QueryFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&qf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &qf, nil
}

// Build creates the operator tree, resolving leaf sources in srcs
func (qf *QueryFile) Build(srcs *Sources) (*plan.Tree, error) {
	t := plan.NewTree()
	root, err := buildNode(t, &qf.Root, srcs, "root")
	if err != nil {
		return nil, err
	}
	t.SetRoot(root)
	return t, nil
}

func buildNode(t *plan.Tree, n *NodeSpec, srcs *Sources, path string) (plan.NodeID, error) {
	operators := 0
	for _, set := range []bool{n.Query != nil, n.Join != nil, n.Union != nil, n.Cartesian != nil,
		n.Conjunction != nil, n.Pipe != nil, n.Empty != nil} {
		if set {
			operators++
		}
	}
	if operators != 1 {
		return plan.NoNode, fmt.Errorf("%s: a node names exactly one operator, found %d", path, operators)
	}

	children := func(specs []NodeSpec, kind string) ([]plan.NodeID, error) {
		ids := make([]plan.NodeID, len(specs))
		for i := range specs {
			id, err := buildNode(t, &specs[i], srcs, fmt.Sprintf("%s.%s[%d]", path, kind, i))
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return ids, nil
	}

	var (
		id  plan.NodeID
		err error
	)
	switch {
	case n.Query != nil:
		id, err = buildLeaf(t, n.Query, srcs, path)
	case n.Join != nil:
		var kids []plan.NodeID
		if kids, err = children(n.Join, "join"); err == nil {
			if len(kids) != 2 {
				return plan.NoNode, fmt.Errorf("%s: join takes two children: %w", path, plan.ErrArity)
			}
			id, err = t.NewJoin(kids[0], kids[1])
		}
	case n.Union != nil:
		var kids []plan.NodeID
		if kids, err = children(n.Union, "union"); err == nil {
			id = t.NewUnion(kids...)
		}
	case n.Cartesian != nil:
		var kids []plan.NodeID
		if kids, err = children(n.Cartesian, "cartesian"); err == nil {
			id = t.NewCartesian(kids...)
		}
	case n.Conjunction != nil:
		var kids []plan.NodeID
		if kids, err = children(n.Conjunction, "conjunction"); err == nil {
			id = t.NewConjunction(kids...)
		}
	case n.Pipe != nil:
		var child plan.NodeID
		if child, err = buildNode(t, n.Pipe, srcs, path+".pipe"); err == nil {
			id = t.NewPipe(child)
		}
	case n.Empty != nil:
		id = t.NewEmpty(federation.NewVarSet(n.Empty...))
	}
	if err != nil {
		return plan.NoNode, err
	}

	mods, err := n.ModifierSpec.modifiers()
	if err != nil {
		return plan.NoNode, fmt.Errorf("%s: %w", path, err)
	}
	for _, m := range mods {
		t.AddModifier(id, m)
	}
	if n.Lock {
		t.Lock(id)
	}
	return id, nil
}

func buildLeaf(t *plan.Tree, leaf *LeafSpec, srcs *Sources, path string) (plan.NodeID, error) {
	src, ok := srcs.Get(leaf.Source)
	if !ok {
		return plan.NoNode, fmt.Errorf("%s: unknown source %q", path, leaf.Source)
	}
	triples := make([]federation.Triple, len(leaf.Triples))
	for i, tr := range leaf.Triples {
		var terms [3]federation.Term
		for j, s := range tr {
			term, err := federation.ParseTerm(s)
			if err != nil {
				return plan.NoNode, fmt.Errorf("%s: triple %d: %w", path, i, err)
			}
			terms[j] = term
		}
		triples[i] = federation.NewTriple(terms[0], terms[1], terms[2])
	}
	return t.NewQuery(query.NewCQuery(triples), src), nil
}

func (m ModifierSpec) modifiers() ([]query.Modifier, error) {
	var mods []query.Modifier
	for _, v := range m.Values {
		rows := make([]federation.Solution, len(v.Rows))
		for i, row := range v.Rows {
			if len(row) != len(v.Vars) {
				return nil, fmt.Errorf("values row %d has %d cells for %d vars", i, len(row), len(v.Vars))
			}
			sol := make(federation.Solution)
			for j, cell := range row {
				if cell == nil {
					continue
				}
				term, err := federation.ParseTerm(*cell)
				if err != nil {
					return nil, fmt.Errorf("values row %d: %w", i, err)
				}
				sol[v.Vars[j]] = term
			}
			rows[i] = sol
		}
		mods = append(mods, query.Values{Vars: v.Vars, Rows: rows})
	}
	for i, f := range m.Filters {
		e, err := f.Expr()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		mods = append(mods, query.NewFilter(e))
	}
	if m.Projection != nil {
		mods = append(mods, query.Projection{Vars: m.Projection})
	}
	if m.Distinct {
		mods = append(mods, query.Distinct{})
	}
	if m.Limit != nil {
		mods = append(mods, query.Limit{N: *m.Limit})
	}
	if m.Ask {
		mods = append(mods, query.Ask{})
	}
	if m.Optional {
		mods = append(mods, query.Optional{})
	}
	return mods, nil
}
