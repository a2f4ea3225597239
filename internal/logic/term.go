// Package logic holds the first-order terms verification conditions are
// built from: integer and boolean variables, arithmetic, comparisons,
// connectives, if-then-else, storage applications and existentials.
//
// Constructors simplify eagerly (constant folding, unit laws, syntactic
// equality), so substitutions that resolve a read-after-write to the same
// key collapse without a solver round trip.
package logic

import (
	"fmt"
	"math/big"
	"strings"
)

type Sort int

const (
	IntSort Sort = iota
	BoolSort
)

func (s Sort) String() string {
	if s == BoolSort {
		return "Bool"
	}
	return "Int"
}

// Labels identify which storage state a Select reads.
const (
	// Current is the state at the program point being transformed.
	Current = ""
	// Pre is the state on function entry.
	Pre = "pre"
)

type Term interface {
	Sort() Sort
	String() string
	isTerm()
}

type Var struct {
	Name string
	Kind Sort
}

type IntLit struct {
	Value *big.Int
}

type BoolLit struct {
	Value bool
}

type Op string

const (
	OpAdd     Op = "+"
	OpSub     Op = "-"
	OpMul     Op = "*"
	OpDiv     Op = "div"
	OpMod     Op = "mod"
	OpNeg     Op = "neg"
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpEq      Op = "="
	OpAnd     Op = "and"
	OpOr      Op = "or"
	OpNot     Op = "not"
	OpImplies Op = "=>"
)

type App struct {
	Op   Op
	Args []Term
}

type Ite struct {
	Cond Term
	Then Term
	Else Term
}

// Select is the value of a storage variable at the given keys in the
// state named by Label.
type Select struct {
	Storage string
	Keys    []Term
	Label   string
}

type Exists struct {
	Vars []*Var
	Body Term
}

func (*Var) isTerm()     {}
func (*IntLit) isTerm()  {}
func (*BoolLit) isTerm() {}
func (*App) isTerm()     {}
func (*Ite) isTerm()     {}
func (*Select) isTerm()  {}
func (*Exists) isTerm()  {}

func (v *Var) Sort() Sort   { return v.Kind }
func (*IntLit) Sort() Sort  { return IntSort }
func (*BoolLit) Sort() Sort { return BoolSort }
func (*Select) Sort() Sort  { return IntSort }
func (*Exists) Sort() Sort  { return BoolSort }
func (i *Ite) Sort() Sort   { return i.Then.Sort() }

func (a *App) Sort() Sort {
	switch a.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg:
		return IntSort
	default:
		return BoolSort
	}
}

func (v *Var) String() string     { return v.Name }
func (i *IntLit) String() string  { return i.Value.String() }
func (b *BoolLit) String() string { return fmt.Sprintf("%t", b.Value) }

func (a *App) String() string {
	switch a.Op {
	case OpNeg:
		return "(-" + a.Args[0].String() + ")"
	case OpNot:
		return "!" + a.Args[0].String()
	}
	op := string(a.Op)
	switch a.Op {
	case OpDiv:
		op = "/"
	case OpMod:
		op = "%"
	case OpEq:
		op = "=="
	case OpAnd:
		op = "&&"
	case OpOr:
		op = "||"
	case OpImplies:
		op = "==>"
	}
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		parts[i] = arg.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

func (i *Ite) String() string {
	return fmt.Sprintf("ite(%s, %s, %s)", i.Cond, i.Then, i.Else)
}

func (s *Select) String() string {
	var b strings.Builder
	b.WriteString(s.Storage)
	if s.Label != Current {
		b.WriteString("@")
		b.WriteString(s.Label)
	}
	if len(s.Keys) > 0 {
		b.WriteString("[")
		for i, k := range s.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k.String())
		}
		b.WriteString("]")
	}
	return b.String()
}

func (e *Exists) String() string {
	names := make([]string, len(e.Vars))
	for i, v := range e.Vars {
		names[i] = v.Name
	}
	return fmt.Sprintf("(exists %s. %s)", strings.Join(names, ", "), e.Body)
}

// Literals and variables

var (
	True  Term = &BoolLit{Value: true}
	False Term = &BoolLit{Value: false}
)

func IntVar(name string) *Var  { return &Var{Name: name, Kind: IntSort} }
func BoolVar(name string) *Var { return &Var{Name: name, Kind: BoolSort} }

func Int(v int64) Term { return &IntLit{Value: big.NewInt(v)} }

func BigInt(v *big.Int) Term { return &IntLit{Value: new(big.Int).Set(v)} }

func Bool(v bool) Term {
	if v {
		return True
	}
	return False
}

func NewSelect(storage string, keys []Term, label string) *Select {
	return &Select{Storage: storage, Keys: keys, Label: label}
}

// Equal reports structural equality.
func Equal(a, b Term) bool {
	switch x := a.(type) {
	case *Var:
		y, ok := b.(*Var)
		return ok && x.Name == y.Name
	case *IntLit:
		y, ok := b.(*IntLit)
		return ok && x.Value.Cmp(y.Value) == 0
	case *BoolLit:
		y, ok := b.(*BoolLit)
		return ok && x.Value == y.Value
	case *App:
		y, ok := b.(*App)
		return ok && x.Op == y.Op && equalAll(x.Args, y.Args)
	case *Ite:
		y, ok := b.(*Ite)
		return ok && Equal(x.Cond, y.Cond) && Equal(x.Then, y.Then) && Equal(x.Else, y.Else)
	case *Select:
		y, ok := b.(*Select)
		return ok && x.Storage == y.Storage && x.Label == y.Label && equalAll(x.Keys, y.Keys)
	case *Exists:
		y, ok := b.(*Exists)
		if !ok || len(x.Vars) != len(y.Vars) {
			return false
		}
		for i := range x.Vars {
			if x.Vars[i].Name != y.Vars[i].Name {
				return false
			}
		}
		return Equal(x.Body, y.Body)
	}
	return false
}

func equalAll(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func asInt(t Term) (*big.Int, bool) {
	if l, ok := t.(*IntLit); ok {
		return l.Value, true
	}
	return nil, false
}

func asBool(t Term) (bool, bool) {
	if l, ok := t.(*BoolLit); ok {
		return l.Value, true
	}
	return false, false
}

func isInt(t Term, v int64) bool {
	n, ok := asInt(t)
	return ok && n.IsInt64() && n.Int64() == v
}
