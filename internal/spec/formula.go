package spec

import (
	"math/big"
	"strings"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/storage"
)

const (
	labelCurrent = logic.Current
	labelPre     = logic.Pre
)

// scope translates one clause formula into a logic term. Formulas use
// mathematical integers.
type scope struct {
	clause   string
	sig      *Signature
	layout   *storage.Layout
	logicals map[string]Binding
	label    string // state read by storage applications
	results  bool   // `return` selectors allowed
	oldCall  bool   // old(...) allowed
	oldVar   bool   // bare `old` names the updated map's pre-state value
	errs     *[]errors.CompilerError
	before   int
}

func (s *scope) ok() bool { return len(*s.errs) == s.before }

func (s *scope) fail(err errors.CompilerError) {
	*s.errs = append(*s.errs, err)
}

func (s *scope) boolTerm(e ast.Expr) logic.Term {
	t := s.term(e)
	if t.Sort() != logic.BoolSort {
		s.fail(errors.SortMismatch("Bool", t.Sort().String(), e.NodePos()))
		return logic.True
	}
	return t
}

func (s *scope) intTerm(e ast.Expr) logic.Term {
	t := s.term(e)
	if t.Sort() != logic.IntSort {
		s.fail(errors.SortMismatch("Int", t.Sort().String(), e.NodePos()))
		return logic.Int(0)
	}
	return t
}

func (s *scope) term(e ast.Expr) logic.Term {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return s.term(x.Value)
	case *ast.LiteralExpr:
		t, err := Literal(x)
		if err != nil {
			s.fail(*err)
			return logic.Int(0)
		}
		return t
	case *ast.IdentExpr:
		return s.ident(x)
	case *ast.UnaryExpr:
		if x.Op == "!" {
			return logic.Not(s.boolTerm(x.Value))
		}
		return logic.Neg(s.intTerm(x.Value))
	case *ast.BinaryExpr:
		return s.binary(x)
	case *ast.FieldAccessExpr, *ast.IndexExpr:
		return s.access(e)
	case *ast.CallExpr:
		return s.call(x)
	}
	s.fail(errors.UnsupportedConstruct(e.NodeType().String()+" `"+e.String()+"` in @"+s.clause, e.NodePos()))
	return logic.Int(0)
}

func (s *scope) ident(x *ast.IdentExpr) logic.Term {
	if strings.HasPrefix(x.Name, "$") {
		if b, ok := s.logicals[x.Name]; ok {
			return b.Var()
		}
		s.fail(errors.UnknownIdentifier(x.Name, x.Pos, s.names()))
		return logic.Int(0)
	}
	if x.Name == ResultVar {
		return s.result(x, "")
	}
	if s.oldVar && x.Name == "old" {
		return logic.IntVar(OldValue)
	}
	if b, ok := s.sig.Param(x.Name); ok {
		return b.Var()
	}
	s.fail(errors.UnknownIdentifier(x.Name, x.Pos, s.names()))
	return logic.Int(0)
}

func (s *scope) result(e ast.Expr, field string) logic.Term {
	if !s.results {
		s.fail(errors.MisplacedSelector(ResultVar, s.clause, e.NodePos()))
		return logic.Int(0)
	}
	if field == "" {
		if len(s.sig.Results) == 1 && s.sig.Results[0].Name == ResultVar {
			return s.sig.Results[0].Var()
		}
		s.fail(errors.MalformedClause("`return` needs a field selector for this function's results", e.NodePos()))
		return logic.Int(0)
	}
	if b, ok := s.sig.Result(field); ok {
		return b.Var()
	}
	s.fail(errors.UnknownIdentifier(ResultVar+"."+field, e.NodePos(), s.names()))
	return logic.Int(0)
}

func (s *scope) access(e ast.Expr) logic.Term {
	if fa, ok := e.(*ast.FieldAccessExpr); ok {
		if id, ok := fa.Target.(*ast.IdentExpr); ok && id.Name == ResultVar {
			return s.result(e, fa.Field)
		}
	}

	acc, isStorage, err := s.layout.Resolve(e)
	if err != nil {
		s.fail(*err)
		return logic.Int(0)
	}
	if !isStorage {
		s.fail(errors.UnsupportedConstruct("field access in @"+s.clause, e.NodePos()))
		return logic.Int(0)
	}
	keys := make([]logic.Term, len(acc.Keys))
	for i, k := range acc.Keys {
		keys[i] = s.intTerm(k)
	}
	return logic.NewSelect(acc.Var.Name, keys, s.label)
}

func (s *scope) call(x *ast.CallExpr) logic.Term {
	id, ok := x.Callee.(*ast.IdentExpr)
	if !ok || id.Name != "old" {
		s.fail(errors.UnsupportedConstruct("function call in @"+s.clause, x.Pos))
		return logic.Int(0)
	}
	if !s.oldCall {
		s.fail(errors.MisplacedSelector("old", s.clause, x.Pos))
		return logic.Int(0)
	}
	if len(x.Args) != 1 {
		s.fail(errors.ArityMismatch("old", 1, len(x.Args), x.Pos))
		return logic.Int(0)
	}

	saved := s.label
	s.label = labelPre
	t := s.term(x.Args[0])
	s.label = saved
	return t
}

func (s *scope) binary(x *ast.BinaryExpr) logic.Term {
	switch x.Op {
	case "&&":
		return logic.And(s.boolTerm(x.Left), s.boolTerm(x.Right))
	case "||":
		return logic.Or(s.boolTerm(x.Left), s.boolTerm(x.Right))
	case "==", "!=":
		l, r := s.term(x.Left), s.term(x.Right)
		if l.Sort() != r.Sort() {
			s.fail(errors.SortMismatch(l.Sort().String(), r.Sort().String(), x.Right.NodePos()))
			return logic.True
		}
		if x.Op == "!=" {
			return logic.Ne(l, r)
		}
		return logic.Eq(l, r)
	}

	l, r := s.intTerm(x.Left), s.intTerm(x.Right)
	switch x.Op {
	case "+":
		return logic.Add(l, r)
	case "-":
		return logic.Sub(l, r)
	case "*":
		return logic.Mul(l, r)
	case "/":
		return logic.Div(l, r)
	case "%":
		return logic.Mod(l, r)
	case "<":
		return logic.Lt(l, r)
	case "<=":
		return logic.Le(l, r)
	case ">":
		return logic.Gt(l, r)
	case ">=":
		return logic.Ge(l, r)
	}
	s.fail(errors.UnsupportedConstruct("operator "+x.Op, x.Pos))
	return logic.Int(0)
}

func (s *scope) names() []string {
	var out []string
	for _, p := range s.sig.Params {
		out = append(out, p.Name)
	}
	for name := range s.logicals {
		out = append(out, name)
	}
	if s.results {
		for _, r := range s.sig.Results {
			out = append(out, r.Name)
		}
	}
	return out
}

// Literal converts an integer or boolean literal. Hex literals and `_`
// digit separators are accepted.
func Literal(x *ast.LiteralExpr) (logic.Term, *errors.CompilerError) {
	switch x.Value {
	case "true":
		return logic.True, nil
	case "false":
		return logic.False, nil
	}
	digits := strings.ReplaceAll(x.Value, "_", "")
	n, ok := new(big.Int).SetString(digits, 0)
	if !ok {
		err := errors.UnsupportedConstruct("literal "+x.Value, x.Pos)
		return nil, &err
	}
	return logic.BigInt(n), nil
}
