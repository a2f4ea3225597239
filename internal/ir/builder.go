package ir

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/tliron/commonlog"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/builtins"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/spec"
	"kanso-verify/internal/storage"
)

var log = commonlog.GetLogger("kanso.verify.ir")

// Arithmetic selects how program arithmetic treats the range of its type.
type Arithmetic string

const (
	// Checked reverts on overflow and on division by zero.
	Checked Arithmetic = "checked"
	// Wrapping reduces results modulo 2^bits; x/0 and x%0 are 0.
	Wrapping Arithmetic = "wrapping"
	// Unbounded uses mathematical integers; x/0 and x%0 are 0.
	Unbounded Arithmetic = "unbounded"
)

type Options struct {
	Arithmetic Arithmetic
}

// Assume origins.
const (
	OriginRequire  = "require"
	OriginOverflow = "overflow"
	OriginDivision = "division"
)

// Builder lowers one function body into a program tree
type Builder struct {
	fn     *ast.Function
	sig    *spec.Signature
	layout *storage.Layout
	sigs   map[string]*spec.Signature
	opts   Options

	// Scoping: source name -> unique name, innermost scope last
	scopes []map[string]local
	used   map[string]int
	temps  int

	out   *[]Node    // sequence currently being filled
	guard logic.Term // set while lowering the right operand of && or ||

	calls []CallSite
	errs  []errors.CompilerError
}

type local struct {
	name string
	typ  string
}

// value is a lowered expression. Untyped integer literals have typ "".
type value struct {
	term  logic.Term
	typ   string
	multi bool
	tuple []value
}

// NewBuilder creates a builder for fn. sigs holds the signatures of every
// function in the contract; they resolve call sites.
func NewBuilder(fn *ast.Function, sig *spec.Signature, layout *storage.Layout, sigs map[string]*spec.Signature, opts Options) *Builder {
	if opts.Arithmetic == "" {
		opts.Arithmetic = Checked
	}
	return &Builder{
		fn:     fn,
		sig:    sig,
		layout: layout,
		sigs:   sigs,
		opts:   opts,
		used:   map[string]int{},
	}
}

// Build lowers fn. Diagnostics are returned alongside the (possibly partial)
// result; callers must not verify a function that produced any.
func Build(fn *ast.Function, sig *spec.Signature, layout *storage.Layout, sigs map[string]*spec.Signature, opts Options) (*Function, []errors.CompilerError) {
	b := NewBuilder(fn, sig, layout, sigs, opts)
	body := b.lower()
	log.Debugf("lowered %s: %d call sites, %d errors", sig.Name, len(b.calls), len(b.errs))
	return &Function{
		Name:      sig.Name,
		Signature: sig,
		Body:      body,
		Calls:     b.calls,
		Pos:       fn.Pos,
	}, b.errs
}

func (b *Builder) lower() Node {
	b.push()
	for _, p := range b.sig.Params {
		b.scopes[0][p.Name] = local{name: p.Name, typ: p.Type}
		b.used[p.Name] = 1
	}
	body := b.block(b.fn.Body, true)
	b.pop()

	if !terminates(body) {
		if len(b.sig.Results) > 0 {
			b.fail(errors.UnsupportedConstruct("a path reaches the end of "+b.sig.Name+" without returning a value", b.fn.Body.EndPos))
		} else {
			body.Nodes = append(body.Nodes, &Return{Pos: b.fn.Body.EndPos})
		}
	}
	return body
}

// Scopes and names

func (b *Builder) push() { b.scopes = append(b.scopes, map[string]local{}) }
func (b *Builder) pop()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *Builder) declare(name, typ string) string {
	n := b.used[name]
	b.used[name] = n + 1
	unique := name
	if n > 0 {
		unique = fmt.Sprintf("%s.%d", name, n)
	}
	b.scopes[len(b.scopes)-1][name] = local{name: unique, typ: typ}
	return unique
}

func (b *Builder) lookup(name string) (local, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if l, ok := b.scopes[i][name]; ok {
			return l, true
		}
	}
	return local{}, false
}

func (b *Builder) visibleNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range b.scopes {
		for name := range s {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (b *Builder) temp() string {
	b.temps++
	return fmt.Sprintf("t#%d", b.temps)
}

func (b *Builder) fail(err errors.CompilerError) {
	b.errs = append(b.errs, err)
}

func (b *Builder) emit(n Node) {
	if a, ok := n.(*Assume); ok {
		if a.Cond == logic.True {
			return
		}
		if b.guard != nil {
			a.Cond = logic.Implies(b.guard, a.Cond)
		}
	}
	*b.out = append(*b.out, n)
}

func varOf(name, typ string) logic.Term {
	if typ == string(builtins.Bool) {
		return logic.BoolVar(name)
	}
	return logic.IntVar(name)
}

func sortOf(typ string) logic.Sort {
	if typ == string(builtins.Bool) {
		return logic.BoolSort
	}
	return logic.IntSort
}

// Statements

func (b *Builder) block(blk *ast.FunctionBlock, tail bool) *Seq {
	seq := &Seq{Pos: blk.Pos}
	saved := b.out
	b.out = &seq.Nodes
	b.push()
	defer func() {
		b.pop()
		b.out = saved
	}()

	last := -1
	for i, item := range blk.Items {
		switch item.(type) {
		case *ast.Comment:
		default:
			last = i
		}
	}

	for i, item := range blk.Items {
		if b.stmt(item, tail && i == last && blk.TailExpr == nil) {
			return seq
		}
	}

	if blk.TailExpr != nil {
		if tail {
			b.ret(blk.TailExpr.Expr, blk.TailExpr.Pos)
		} else {
			b.expr(blk.TailExpr.Expr)
		}
	}
	return seq
}

// stmt lowers one statement and reports whether it ends the block.
func (b *Builder) stmt(item ast.FunctionBlockItem, tail bool) bool {
	switch x := item.(type) {
	case *ast.Comment:
	case *ast.LetStmt:
		b.let(x)
	case *ast.AssignStmt:
		b.assign(x)
	case *ast.ReturnStmt:
		b.ret(x.Value, x.Pos)
		return true
	case *ast.RequireStmt:
		if len(x.Args) == 0 {
			b.fail(errors.ArityMismatch("require!", 1, 0, x.Pos))
			return false
		}
		b.emit(&Assume{Cond: b.cond(x.Args[0]), Origin: OriginRequire, Pos: x.Pos})
	case *ast.AssertStmt:
		if len(x.Args) == 0 {
			b.fail(errors.ArityMismatch("assert!", 1, 0, x.Pos))
			return false
		}
		b.emit(&Assert{Cond: b.cond(x.Args[0]), Pos: x.Pos})
	case *ast.IfStmt:
		b.ifStmt(x, tail)
	case *ast.ExprStmt:
		b.expr(x.Expr)
	default:
		b.fail(errors.UnsupportedConstruct(item.NodeType().String(), item.NodePos()))
	}
	return false
}

func (b *Builder) ifStmt(x *ast.IfStmt, tail bool) {
	cond := b.cond(x.Condition)
	then := b.block(x.ThenBlock, tail)
	var els Node = &Seq{Pos: x.EndPos}
	if x.ElseBlock != nil {
		els = b.block(x.ElseBlock, tail)
	}
	b.emit(&If{Cond: cond, Then: then, Else: els, Pos: x.Pos})
}

func (b *Builder) let(x *ast.LetStmt) {
	v := b.expr(x.Expr)

	if len(x.Destructure) > 0 {
		if !v.multi || len(v.tuple) != len(x.Destructure) {
			b.fail(errors.ArityMismatch("destructuring let", len(x.Destructure), width(v), x.Pos))
			return
		}
		// all right-hand values are lowered before any name is bound
		for i, id := range x.Destructure {
			if id.Value == "_" {
				continue
			}
			name := b.declare(id.Value, defaultType(v.tuple[i].typ))
			b.emit(&Assign{Name: name, Value: v.tuple[i].term, Pos: id.Pos})
		}
		return
	}

	if v.multi {
		b.fail(errors.ArityMismatch("let", 1, len(v.tuple), x.Pos))
		return
	}

	typ := defaultType(v.typ)
	if x.Type != nil {
		typ = x.Type.Name.Value
		if !builtins.IsBuiltinType(typ) {
			b.fail(errors.UnknownType(typ, x.Type.Pos))
			return
		}
		if sortOf(typ) != v.term.Sort() {
			b.fail(errors.SortMismatch(typ, v.term.Sort().String(), x.Expr.NodePos()))
			return
		}
	}

	name := b.declare(x.Name.Value, typ)
	b.emit(&Assign{Name: name, Value: v.term, Pos: x.Pos})
}

func width(v value) int {
	if v.multi {
		return len(v.tuple)
	}
	return 1
}

func defaultType(typ string) string {
	if typ == "" {
		return string(builtins.U256)
	}
	return typ
}

func (b *Builder) assign(x *ast.AssignStmt) {
	op := x.Operator.BinaryOp()

	acc, isStorage, err := b.layout.Resolve(x.Target)
	if err != nil {
		b.fail(*err)
		return
	}
	if isStorage {
		keys := b.keys(acc.Keys)
		var v value
		if op == "" {
			v = b.intExpr(x.Value)
			if v.typ != acc.Var.ValueType {
				v = value{term: b.fit(v.term, acc.Var.ValueType, x.Pos), typ: acc.Var.ValueType}
			}
		} else {
			cur := b.read(acc.Var, keys, x.Target.NodePos())
			v = b.arith(op, cur, b.intExpr(x.Value), x.Pos)
		}
		b.emit(&Write{Storage: acc.Var.Name, Keys: keys, Value: v.term, Pos: x.Pos})
		return
	}

	id, ok := x.Target.(*ast.IdentExpr)
	if !ok {
		b.fail(errors.UnsupportedConstruct("assignment to "+x.Target.String(), x.Target.NodePos()))
		return
	}
	l, ok := b.lookup(id.Name)
	if !ok {
		b.fail(errors.UnknownIdentifier(id.Name, id.Pos, b.visibleNames()))
		return
	}
	// contract clauses name parameters by their entry value
	if _, isParam := b.sig.Param(l.name); isParam {
		b.fail(errors.UnsupportedConstruct("assignment to parameter "+id.Name, id.Pos))
		return
	}

	v := b.expr(x.Value)
	if op != "" {
		v = b.arith(op, value{term: varOf(l.name, l.typ), typ: l.typ}, b.asInt(v, x.Value), x.Pos)
	}
	if v.multi || v.term.Sort() != sortOf(l.typ) {
		b.fail(errors.SortMismatch(l.typ, describe(v), x.Value.NodePos()))
		return
	}
	b.emit(&Assign{Name: l.name, Value: v.term, Pos: x.Pos})
}

func describe(v value) string {
	if v.multi {
		return fmt.Sprintf("tuple of %d", len(v.tuple))
	}
	return v.term.Sort().String()
}

func (b *Builder) ret(e ast.Expr, pos ast.Position) {
	var vals []value
	if e != nil {
		v := b.expr(e)
		if v.multi {
			vals = v.tuple
		} else {
			vals = []value{v}
		}
	}

	if len(vals) != len(b.sig.Results) {
		b.fail(errors.ArityMismatch("return values", len(b.sig.Results), len(vals), pos))
		return
	}

	ret := &Return{Pos: pos}
	for i, v := range vals {
		r := b.sig.Results[i]
		if v.term.Sort() != r.Sort() {
			b.fail(errors.SortMismatch(r.Type, v.term.Sort().String(), pos))
			return
		}
		ret.Values = append(ret.Values, v.term)
		ret.Fields = append(ret.Fields, r.Name)
	}
	b.emit(ret)
}

// Expressions

func (b *Builder) cond(e ast.Expr) logic.Term {
	v := b.expr(e)
	if v.multi || v.term.Sort() != logic.BoolSort {
		b.fail(errors.SortMismatch("Bool", describe(v), e.NodePos()))
		return logic.True
	}
	return v.term
}

func (b *Builder) intExpr(e ast.Expr) value {
	return b.asInt(b.expr(e), e)
}

func (b *Builder) asInt(v value, e ast.Expr) value {
	if v.multi || v.term.Sort() != logic.IntSort {
		b.fail(errors.SortMismatch("integer", describe(v), e.NodePos()))
		return value{term: logic.Int(0)}
	}
	return v
}

func (b *Builder) keys(exprs []ast.Expr) []logic.Term {
	keys := make([]logic.Term, len(exprs))
	for i, k := range exprs {
		keys[i] = b.intExpr(k).term
	}
	return keys
}

func (b *Builder) expr(e ast.Expr) value {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return b.expr(x.Value)

	case *ast.LiteralExpr:
		t, err := spec.Literal(x)
		if err != nil {
			b.fail(*err)
			return value{term: logic.Int(0)}
		}
		if t.Sort() == logic.BoolSort {
			return value{term: t, typ: string(builtins.Bool)}
		}
		return value{term: t}

	case *ast.IdentExpr:
		l, ok := b.lookup(x.Name)
		if !ok {
			b.fail(errors.UnknownIdentifier(x.Name, x.Pos, b.visibleNames()))
			return value{term: logic.Int(0)}
		}
		return value{term: varOf(l.name, l.typ), typ: l.typ}

	case *ast.TupleExpr:
		v := value{multi: true, tuple: []value{}}
		for _, elem := range x.Elements {
			ev := b.expr(elem)
			if ev.multi {
				b.fail(errors.UnsupportedConstruct("nested tuple", elem.NodePos()))
				continue
			}
			v.tuple = append(v.tuple, ev)
		}
		return v

	case *ast.UnaryExpr:
		if x.Op == "!" {
			return value{term: logic.Not(b.cond(x.Value)), typ: string(builtins.Bool)}
		}
		v := b.intExpr(x.Value)
		return value{term: b.fit(logic.Neg(v.term), v.typ, x.Pos), typ: v.typ}

	case *ast.BinaryExpr:
		return b.binary(x)

	case *ast.FieldAccessExpr, *ast.IndexExpr:
		acc, isStorage, err := b.layout.Resolve(e)
		if err != nil {
			b.fail(*err)
			return value{term: logic.Int(0)}
		}
		if !isStorage {
			b.fail(errors.UnsupportedConstruct(e.String(), e.NodePos()))
			return value{term: logic.Int(0)}
		}
		return b.read(acc.Var, b.keys(acc.Keys), e.NodePos())

	case *ast.CallExpr:
		return b.call(x)
	}

	b.fail(errors.UnsupportedConstruct(e.String(), e.NodePos()))
	return value{term: logic.Int(0)}
}

func (b *Builder) read(v *storage.Variable, keys []logic.Term, pos ast.Position) value {
	name := b.temp()
	b.emit(&Read{Name: name, Storage: v.Name, Keys: keys, Pos: pos})
	return value{term: logic.IntVar(name), typ: v.ValueType}
}

func (b *Builder) binary(x *ast.BinaryExpr) value {
	boolean := string(builtins.Bool)

	switch x.Op {
	case "&&", "||":
		left := b.cond(x.Left)
		guard := left
		if x.Op == "||" {
			guard = logic.Not(left)
		}
		right := b.guarded(guard, x.Right)
		if x.Op == "&&" {
			return value{term: logic.And(left, right), typ: boolean}
		}
		return value{term: logic.Or(left, right), typ: boolean}

	case "==", "!=":
		l, r := b.expr(x.Left), b.expr(x.Right)
		if l.multi || r.multi || l.term.Sort() != r.term.Sort() {
			b.fail(errors.SortMismatch(describe(l), describe(r), x.Right.NodePos()))
			return value{term: logic.True, typ: boolean}
		}
		if x.Op == "!=" {
			return value{term: logic.Ne(l.term, r.term), typ: boolean}
		}
		return value{term: logic.Eq(l.term, r.term), typ: boolean}
	}

	l, r := b.intExpr(x.Left), b.intExpr(x.Right)
	switch x.Op {
	case "<":
		return value{term: logic.Lt(l.term, r.term), typ: boolean}
	case "<=":
		return value{term: logic.Le(l.term, r.term), typ: boolean}
	case ">":
		return value{term: logic.Gt(l.term, r.term), typ: boolean}
	case ">=":
		return value{term: logic.Ge(l.term, r.term), typ: boolean}
	case "+", "-", "*", "/", "%":
		return b.arith(x.Op, l, r, x.Pos)
	}

	b.fail(errors.UnsupportedConstruct("operator "+x.Op, x.Pos))
	return value{term: logic.Int(0)}
}

// guarded lowers the right operand of a short-circuit operator. Hoisted
// reads are pure and stay as they are; assumptions only hold when the
// operand is actually evaluated.
func (b *Builder) guarded(guard logic.Term, e ast.Expr) logic.Term {
	savedGuard := b.guard
	if b.guard != nil {
		guard = logic.And(b.guard, guard)
	}
	b.guard = guard
	t := b.cond(e)
	b.guard = savedGuard
	return t
}

func (b *Builder) arith(op string, l, r value, pos ast.Position) value {
	typ := l.typ
	if typ == "" {
		typ = r.typ
	}

	var t logic.Term
	switch op {
	case "+":
		t = logic.Add(l.term, r.term)
	case "-":
		t = logic.Sub(l.term, r.term)
	case "*":
		t = logic.Mul(l.term, r.term)
	case "/", "%":
		signed := typ == "" || builtins.IsSigned(typ)
		if b.opts.Arithmetic == Checked {
			b.emit(&Assume{Cond: logic.Ne(r.term, logic.Int(0)), Origin: OriginDivision, Pos: pos})
			t = divmod(op, l.term, r.term, signed)
		} else {
			t = logic.IteT(logic.Eq(r.term, logic.Int(0)), logic.Int(0), divmod(op, l.term, r.term, signed))
		}
	}

	return value{term: b.fit(t, typ, pos), typ: typ}
}

// divmod lowers program division. Formulas divide Euclidean; signed and
// untyped program division truncates toward zero, so -7 / 2 == -3 and
// -7 % 2 == -1.
func divmod(op string, a, b logic.Term, signed bool) logic.Term {
	if !signed {
		if op == "/" {
			return logic.Div(a, b)
		}
		return logic.Mod(a, b)
	}
	zero := logic.Int(0)
	absA := logic.IteT(logic.Lt(a, zero), logic.Neg(a), a)
	absB := logic.IteT(logic.Lt(b, zero), logic.Neg(b), b)
	if op == "/" {
		q := logic.Div(absA, absB)
		differ := logic.Or(
			logic.And(logic.Lt(a, zero), logic.Ge(b, zero)),
			logic.And(logic.Ge(a, zero), logic.Lt(b, zero)),
		)
		return logic.IteT(differ, logic.Neg(q), q)
	}
	r := logic.Mod(absA, absB)
	return logic.IteT(logic.Lt(a, zero), logic.Neg(r), r)
}

// fit applies the arithmetic mode to a result of type typ.
func (b *Builder) fit(t logic.Term, typ string, pos ast.Position) logic.Term {
	lo, hi, ok := builtins.Range(typ)
	if !ok {
		return t
	}
	switch b.opts.Arithmetic {
	case Checked:
		if cond := logic.InRange(t, lo, hi); cond != logic.True {
			b.emit(&Assume{Cond: cond, Origin: OriginOverflow, Pos: pos})
		}
		return t
	case Wrapping:
		return Wrap(t, typ)
	}
	return t
}

// Wrap reduces t into the range of typ modulo 2^bits, two's complement for
// signed types.
func Wrap(t logic.Term, typ string) logic.Term {
	bits := builtins.Bits(typ)
	modulus := logic.BigInt(new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	if !builtins.IsSigned(typ) {
		return logic.Mod(t, modulus)
	}
	half := logic.BigInt(new(big.Int).Lsh(big.NewInt(1), uint(bits-1)))
	return logic.Sub(logic.Mod(logic.Add(t, half), modulus), half)
}

func (b *Builder) call(x *ast.CallExpr) value {
	id, ok := x.Callee.(*ast.IdentExpr)
	if !ok {
		b.fail(errors.UnsupportedConstruct("call to "+x.Callee.String(), x.Pos))
		return value{term: logic.Int(0)}
	}
	if b.guard != nil {
		b.fail(errors.UnsupportedConstruct("call in the right operand of && or ||", x.Pos))
		return value{term: logic.Int(0)}
	}

	callee, ok := b.sigs[id.Name]
	if !ok {
		names := make([]string, 0, len(b.sigs))
		for name := range b.sigs {
			names = append(names, name)
		}
		sort.Strings(names)
		b.fail(errors.UnknownCallee(id.Name, id.Pos, names))
		return value{term: logic.Int(0)}
	}

	if len(x.Args) != len(callee.Params) {
		b.fail(errors.ArityMismatch("arguments to "+id.Name, len(callee.Params), len(x.Args), x.Pos))
		return value{term: logic.Int(0)}
	}

	node := &Call{Callee: id.Name, Pos: x.Pos}
	for i, arg := range x.Args {
		v := b.expr(arg)
		if v.multi || v.term.Sort() != callee.Params[i].Sort() {
			b.fail(errors.SortMismatch(callee.Params[i].Type, describe(v), arg.NodePos()))
			return value{term: logic.Int(0)}
		}
		node.Args = append(node.Args, v.term)
	}

	var results []value
	for _, r := range callee.Results {
		name := b.temp()
		node.Results = append(node.Results, name)
		results = append(results, value{term: varOf(name, r.Type), typ: r.Type})
	}

	b.calls = append(b.calls, CallSite{Callee: id.Name, Pos: x.Pos})
	b.emit(node)

	if len(results) == 1 {
		return results[0]
	}
	return value{multi: true, tuple: results}
}

// terminates reports whether every path through n ends in a return.
func terminates(n Node) bool {
	switch x := n.(type) {
	case *Return:
		return true
	case *Seq:
		return len(x.Nodes) > 0 && terminates(x.Nodes[len(x.Nodes)-1])
	case *If:
		return terminates(x.Then) && terminates(x.Else)
	case *Assume:
		return x.Cond == logic.False
	}
	return false
}
