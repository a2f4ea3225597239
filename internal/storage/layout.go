// Package storage models the contract's persistent state: one independent
// key-indexed map per field of a #[storage] struct.
package storage

import (
	"fmt"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/builtins"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/logic"
)

// Variable is one storage map. Scalars have no keys.
type Variable struct {
	Name      string // qualified, e.g. "State.balances"
	KeyTypes  []string
	ValueType string
	Pos       ast.Position
}

func (v *Variable) Arity() int { return len(v.KeyTypes) }

func (v *Variable) String() string {
	if v.Arity() == 0 {
		return fmt.Sprintf("%s: %s", v.Name, v.ValueType)
	}
	return fmt.Sprintf("%s: %v -> %s", v.Name, v.KeyTypes, v.ValueType)
}

type Layout struct {
	vars    map[string]*Variable
	order   []string
	structs map[string]bool
}

// NewLayout collects the storage variables declared by the contract's
// #[storage] structs.
func NewLayout(contract *ast.Contract) (*Layout, []errors.CompilerError) {
	l := &Layout{vars: map[string]*Variable{}, structs: map[string]bool{}}
	var errs []errors.CompilerError

	for _, s := range contract.StorageStructs() {
		l.structs[s.Name.Value] = true
		for _, field := range s.Fields() {
			v, err := newVariable(s.Name.Value, field)
			if err != nil {
				errs = append(errs, *err)
				continue
			}
			if _, dup := l.vars[v.Name]; dup {
				errs = append(errs, errors.DuplicateDeclaration(v.Name, field.Pos))
				continue
			}
			l.vars[v.Name] = v
			l.order = append(l.order, v.Name)
		}
	}

	return l, errs
}

func newVariable(structName string, field *ast.StructField) (*Variable, *errors.CompilerError) {
	v := &Variable{Name: structName + "." + field.Name.Value, Pos: field.Pos}
	typ := field.VariableType

	if typ.Name.Value == string(builtins.Slots) {
		if len(typ.Generics) != 2 {
			err := errors.UnsupportedConstruct("Slots takes a key type and a value type", typ.Pos)
			return nil, &err
		}
		keys := typ.Generics[0].TupleElements
		if len(keys) == 0 {
			keys = []*ast.VariableType{typ.Generics[0]}
		}
		for _, k := range keys {
			if err := checkScalar(k); err != nil {
				return nil, err
			}
			v.KeyTypes = append(v.KeyTypes, k.Name.Value)
		}
		typ = typ.Generics[1]
	}

	if err := checkScalar(typ); err != nil {
		return nil, err
	}
	v.ValueType = typ.Name.Value
	return v, nil
}

func checkScalar(t *ast.VariableType) *errors.CompilerError {
	if len(t.TupleElements) > 0 || len(t.Generics) > 0 {
		err := errors.UnsupportedConstruct("nested storage type "+t.String(), t.Pos)
		return &err
	}
	if !builtins.IsBuiltinType(t.Name.Value) {
		err := errors.UnknownType(t.Name.Value, t.Pos)
		return &err
	}
	if !builtins.IsIntegerType(t.Name.Value) {
		err := errors.UnsupportedConstruct("storage of non-integer type "+t.Name.Value, t.Pos)
		return &err
	}
	return nil
}

func (l *Layout) Lookup(name string) (*Variable, bool) {
	v, ok := l.vars[name]
	return v, ok
}

// Variables returns the storage variables in declaration order.
func (l *Layout) Variables() []*Variable {
	out := make([]*Variable, len(l.order))
	for i, name := range l.order {
		out[i] = l.vars[name]
	}
	return out
}

func (l *Layout) Names() []string {
	return append([]string(nil), l.order...)
}

// IsStorageRoot reports whether name is a #[storage] struct.
func (l *Layout) IsStorageRoot(name string) bool {
	return l.structs[name]
}

// Access is a syntactic storage reference `State.f` or `State.f[k]`.
type Access struct {
	Var  *Variable
	Keys []ast.Expr
	Pos  ast.Position
}

// Resolve recognises storage references. ok is false when expr is not
// rooted at a storage struct; err is set when it is but does not match
// the layout.
func (l *Layout) Resolve(expr ast.Expr) (acc *Access, ok bool, err *errors.CompilerError) {
	var keys []ast.Expr
	indexed := false
	target := expr

	if idx, isIndex := expr.(*ast.IndexExpr); isIndex {
		indexed = true
		target = idx.Target
		if tuple, isTuple := idx.Index.(*ast.TupleExpr); isTuple {
			keys = tuple.Elements
		} else {
			keys = []ast.Expr{idx.Index}
		}
	}

	field, isField := target.(*ast.FieldAccessExpr)
	if !isField {
		return nil, false, nil
	}
	root, isIdent := field.Target.(*ast.IdentExpr)
	if !isIdent || !l.structs[root.Name] {
		return nil, false, nil
	}

	name := root.Name + "." + field.Field
	v, found := l.vars[name]
	if !found {
		e := errors.UnknownStorageVariable(name, field.Pos, l.order)
		return nil, true, &e
	}
	if v.Arity() != len(keys) || (indexed && v.Arity() == 0) {
		e := errors.KeyArityMismatch(name, v.Arity(), len(keys), expr.NodePos())
		return nil, true, &e
	}

	return &Access{Var: v, Keys: keys, Pos: expr.NodePos()}, true, nil
}

// RangeAxioms constrains every non-current storage application in the
// terms to its value type's range.
func (l *Layout) RangeAxioms(terms ...logic.Term) logic.Term {
	var conj []logic.Term
	for _, s := range logic.Selects(terms...) {
		if s.Label == logic.Current {
			continue
		}
		v, ok := l.vars[s.Storage]
		if !ok {
			continue
		}
		if lo, hi, ok := builtins.Range(v.ValueType); ok {
			conj = append(conj, logic.InRange(s, lo, hi))
		}
	}
	return logic.And(conj...)
}
