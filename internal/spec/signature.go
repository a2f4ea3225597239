package spec

import (
	"strconv"
	"strings"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/builtins"
	"kanso-verify/internal/errors"
)

// ResultVar is the name of the single unnamed result.
const ResultVar = "return"

// Signature is the typed interface of a function. Results carry their
// canonical names: "return" for a single result, "return.<name>" for named
// tuple fields and "return.<i>" for unnamed ones.
type Signature struct {
	Name    string
	Params  []Binding
	Results []Binding
	Pos     ast.Position
}

func NewSignature(fn *ast.Function) (*Signature, []errors.CompilerError) {
	sig := &Signature{Name: fn.Name.Value, Pos: fn.Name.Pos}
	var errs []errors.CompilerError

	seen := map[string]bool{}
	for _, p := range fn.Params {
		if seen[p.Name.Value] {
			errs = append(errs, errors.DuplicateDeclaration(p.Name.Value, p.Name.Pos))
			continue
		}
		seen[p.Name.Value] = true
		if err := checkScalarType(p.Type); err != nil {
			errs = append(errs, *err)
			continue
		}
		sig.Params = append(sig.Params, Binding{Name: p.Name.Value, Type: p.Type.Name.Value, Pos: p.Pos})
	}

	if fn.Return == nil {
		return sig, errs
	}

	if len(fn.Return.TupleElements) == 0 {
		if err := checkScalarType(fn.Return); err != nil {
			errs = append(errs, *err)
		} else {
			sig.Results = []Binding{{Name: ResultVar, Type: fn.Return.Name.Value, Pos: fn.Return.Pos}}
		}
		return sig, errs
	}

	for i, elem := range fn.Return.TupleElements {
		if err := checkScalarType(elem); err != nil {
			errs = append(errs, *err)
			continue
		}
		field := strconv.Itoa(i)
		if i < len(fn.ReturnNames) && fn.ReturnNames[i].Value != "" {
			field = fn.ReturnNames[i].Value
		}
		sig.Results = append(sig.Results, Binding{Name: ResultVar + "." + field, Type: elem.Name.Value, Pos: elem.Pos})
	}

	return sig, errs
}

func checkScalarType(t *ast.VariableType) *errors.CompilerError {
	if len(t.TupleElements) > 0 || len(t.Generics) > 0 {
		err := errors.UnsupportedConstruct("compound type "+t.String(), t.Pos)
		return &err
	}
	if !builtins.IsBuiltinType(t.Name.Value) || t.Name.Value == string(builtins.Slots) {
		err := errors.UnknownType(t.Name.Value, t.Pos)
		return &err
	}
	return nil
}

func (s *Signature) Param(name string) (Binding, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Binding{}, false
}

// Result resolves a result selector field, by name or by position.
func (s *Signature) Result(field string) (Binding, bool) {
	for _, r := range s.Results {
		if r.Name == ResultVar+"."+field {
			return r, true
		}
	}
	if i, err := strconv.Atoi(field); err == nil && i >= 0 && i < len(s.Results) && len(s.Results) > 1 {
		return s.Results[i], true
	}
	return Binding{}, false
}

func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString("fn ")
	b.WriteString(s.Name)
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name + ": " + p.Type)
	}
	b.WriteString(")")
	if len(s.Results) > 0 {
		b.WriteString(" -> (")
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Name + ": " + r.Type)
		}
		b.WriteString(")")
	}
	return b.String()
}
