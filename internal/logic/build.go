package logic

import "math/big"

// Arithmetic

func Add(a, b Term) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return &IntLit{Value: new(big.Int).Add(x, y)}
		}
	}
	if isInt(a, 0) {
		return b
	}
	if isInt(b, 0) {
		return a
	}
	return &App{Op: OpAdd, Args: []Term{a, b}}
}

func Sub(a, b Term) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return &IntLit{Value: new(big.Int).Sub(x, y)}
		}
	}
	if isInt(b, 0) {
		return a
	}
	if Equal(a, b) {
		return Int(0)
	}
	return &App{Op: OpSub, Args: []Term{a, b}}
}

func Mul(a, b Term) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return &IntLit{Value: new(big.Int).Mul(x, y)}
		}
	}
	if isInt(a, 0) || isInt(b, 0) {
		return Int(0)
	}
	if isInt(a, 1) {
		return b
	}
	if isInt(b, 1) {
		return a
	}
	return &App{Op: OpMul, Args: []Term{a, b}}
}

// Div is Euclidean division. Division by a literal zero is left
// uninterpreted, matching SMT-LIB.
func Div(a, b Term) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok && y.Sign() != 0 {
			return &IntLit{Value: new(big.Int).Div(x, y)}
		}
	}
	if isInt(b, 1) {
		return a
	}
	return &App{Op: OpDiv, Args: []Term{a, b}}
}

// Mod is the Euclidean remainder, always non-negative for a non-zero divisor.
func Mod(a, b Term) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok && y.Sign() != 0 {
			return &IntLit{Value: new(big.Int).Mod(x, y)}
		}
	}
	if isInt(b, 1) {
		return Int(0)
	}
	return &App{Op: OpMod, Args: []Term{a, b}}
}

func Neg(a Term) Term {
	if x, ok := asInt(a); ok {
		return &IntLit{Value: new(big.Int).Neg(x)}
	}
	if app, ok := a.(*App); ok && app.Op == OpNeg {
		return app.Args[0]
	}
	return &App{Op: OpNeg, Args: []Term{a}}
}

// Comparisons

func compare(op Op, a, b Term, fold func(int) bool, reflexive bool) Term {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return Bool(fold(x.Cmp(y)))
		}
	}
	if Equal(a, b) {
		return Bool(reflexive)
	}
	return &App{Op: op, Args: []Term{a, b}}
}

func Lt(a, b Term) Term { return compare(OpLt, a, b, func(c int) bool { return c < 0 }, false) }
func Le(a, b Term) Term { return compare(OpLe, a, b, func(c int) bool { return c <= 0 }, true) }
func Gt(a, b Term) Term { return compare(OpGt, a, b, func(c int) bool { return c > 0 }, false) }
func Ge(a, b Term) Term { return compare(OpGe, a, b, func(c int) bool { return c >= 0 }, true) }

func Eq(a, b Term) Term {
	if x, ok := asBool(a); ok {
		if y, ok := asBool(b); ok {
			return Bool(x == y)
		}
		if x {
			return b
		}
		return Not(b)
	}
	if y, ok := asBool(b); ok {
		if y {
			return a
		}
		return Not(a)
	}
	return compare(OpEq, a, b, func(c int) bool { return c == 0 }, true)
}

func Ne(a, b Term) Term { return Not(Eq(a, b)) }

// Connectives

func And(ts ...Term) Term {
	var args []Term
	for _, t := range ts {
		if v, ok := asBool(t); ok {
			if !v {
				return False
			}
			continue
		}
		if app, ok := t.(*App); ok && app.Op == OpAnd {
			args = append(args, app.Args...)
			continue
		}
		args = append(args, t)
	}
	switch len(args) {
	case 0:
		return True
	case 1:
		return args[0]
	}
	return &App{Op: OpAnd, Args: args}
}

func Or(ts ...Term) Term {
	var args []Term
	for _, t := range ts {
		if v, ok := asBool(t); ok {
			if v {
				return True
			}
			continue
		}
		if app, ok := t.(*App); ok && app.Op == OpOr {
			args = append(args, app.Args...)
			continue
		}
		args = append(args, t)
	}
	switch len(args) {
	case 0:
		return False
	case 1:
		return args[0]
	}
	return &App{Op: OpOr, Args: args}
}

func Not(a Term) Term {
	if v, ok := asBool(a); ok {
		return Bool(!v)
	}
	if app, ok := a.(*App); ok && app.Op == OpNot {
		return app.Args[0]
	}
	return &App{Op: OpNot, Args: []Term{a}}
}

func Implies(a, b Term) Term {
	if v, ok := asBool(a); ok {
		if v {
			return b
		}
		return True
	}
	if v, ok := asBool(b); ok {
		if v {
			return True
		}
		return Not(a)
	}
	if Equal(a, b) {
		return True
	}
	return &App{Op: OpImplies, Args: []Term{a, b}}
}

func IteT(c, a, b Term) Term {
	if v, ok := asBool(c); ok {
		if v {
			return a
		}
		return b
	}
	if Equal(a, b) {
		return a
	}
	return &Ite{Cond: c, Then: a, Else: b}
}

func NewExists(vars []*Var, body Term) Term {
	if len(vars) == 0 {
		return body
	}
	if _, ok := asBool(body); ok {
		return body
	}
	return &Exists{Vars: vars, Body: body}
}

// Apply builds an application through the simplifying constructor for op.
func Apply(op Op, args ...Term) Term {
	switch op {
	case OpAdd:
		return Add(args[0], args[1])
	case OpSub:
		return Sub(args[0], args[1])
	case OpMul:
		return Mul(args[0], args[1])
	case OpDiv:
		return Div(args[0], args[1])
	case OpMod:
		return Mod(args[0], args[1])
	case OpNeg:
		return Neg(args[0])
	case OpLt:
		return Lt(args[0], args[1])
	case OpLe:
		return Le(args[0], args[1])
	case OpGt:
		return Gt(args[0], args[1])
	case OpGe:
		return Ge(args[0], args[1])
	case OpEq:
		return Eq(args[0], args[1])
	case OpAnd:
		return And(args...)
	case OpOr:
		return Or(args...)
	case OpNot:
		return Not(args[0])
	case OpImplies:
		return Implies(args[0], args[1])
	}
	return &App{Op: op, Args: args}
}

// KeysEqual is the conjunction of pairwise key equalities.
func KeysEqual(a, b []Term) Term {
	conj := make([]Term, 0, len(a))
	for i := range a {
		conj = append(conj, Eq(a[i], b[i]))
	}
	return And(conj...)
}

// InRange constrains t to [lo, hi].
func InRange(t Term, lo, hi *big.Int) Term {
	return And(Le(BigInt(lo), t), Le(t, BigInt(hi)))
}

// Conjuncts splits a term on top-level conjunction.
func Conjuncts(t Term) []Term {
	if app, ok := t.(*App); ok && app.Op == OpAnd {
		return app.Args
	}
	if v, ok := asBool(t); ok && v {
		return nil
	}
	return []Term{t}
}
