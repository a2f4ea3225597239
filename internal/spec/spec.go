// Package spec holds the annotation model: the contract a function states
// in its doc comment, resolved against the function signature and the
// storage layout.
package spec

import (
	"fmt"
	"strings"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/builtins"
	"kanso-verify/internal/logic"
)

// OldValue names the placeholder for the pre-state value of the updated
// map in an @update clause.
const OldValue = "old#"

// Binding is a typed name visible to formulas: a parameter, a result field
// or a logical variable.
type Binding struct {
	Name string
	Type string
	Pos  ast.Position
}

func (b Binding) Sort() logic.Sort {
	if b.Type == string(builtins.Bool) {
		return logic.BoolSort
	}
	return logic.IntSort
}

func (b Binding) Var() *logic.Var {
	return &logic.Var{Name: b.Name, Kind: b.Sort()}
}

// RangeAxiom constrains the binding's variable to its type's range.
func (b Binding) RangeAxiom() logic.Term {
	lo, hi, ok := builtins.Range(b.Type)
	if !ok {
		return logic.True
	}
	return logic.InRange(b.Var(), lo, hi)
}

// Clause is one @requires or @ensures formula.
type Clause struct {
	Text    string
	Pos     ast.Position
	Formula logic.Term
}

// Update is an @update clause: Storage[Keys] == Value in the post-state,
// every other key unchanged. Value may mention OldValue and pre-state
// storage applications.
type Update struct {
	Storage string
	Keys    []logic.Term
	Value   logic.Term
	Text    string
	Pos     ast.Position
}

func (u *Update) String() string {
	sel := logic.NewSelect(u.Storage, u.Keys, logic.Current)
	return fmt.Sprintf("%s == %s", sel, u.Value)
}

type FunctionSpec struct {
	Signature *Signature
	Logicals  []Binding
	Requires  []Clause
	Ensures   []Clause
	Updates   []*Update
}

// IsEmpty reports whether the function states no contract at all. Such
// functions are inlined into their callers.
func (s *FunctionSpec) IsEmpty() bool {
	return len(s.Logicals) == 0 && len(s.Requires) == 0 && len(s.Ensures) == 0 && len(s.Updates) == 0
}

func (s *FunctionSpec) Pre() logic.Term {
	return conjoin(s.Requires)
}

func (s *FunctionSpec) Post() logic.Term {
	return conjoin(s.Ensures)
}

// UpdateFor returns the update clause for a storage variable, if any.
func (s *FunctionSpec) UpdateFor(storage string) (*Update, bool) {
	for _, u := range s.Updates {
		if u.Storage == storage {
			return u, true
		}
	}
	return nil, false
}

// String renders the resolved contract canonically; it feeds verdict
// fingerprints.
func (s *FunctionSpec) String() string {
	var b strings.Builder
	b.WriteString(s.Signature.String())
	for _, l := range s.Logicals {
		fmt.Fprintf(&b, "\n@decl %s: %s", l.Name, l.Type)
	}
	for _, c := range s.Requires {
		fmt.Fprintf(&b, "\n@requires %s", c.Formula)
	}
	for _, c := range s.Ensures {
		fmt.Fprintf(&b, "\n@ensures %s", c.Formula)
	}
	for _, u := range s.Updates {
		fmt.Fprintf(&b, "\n@update %s", u)
	}
	return b.String()
}

func conjoin(cs []Clause) logic.Term {
	ts := make([]logic.Term, len(cs))
	for i, c := range cs {
		ts[i] = c.Formula
	}
	return logic.And(ts...)
}
