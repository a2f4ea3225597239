package solver

import (
	"fmt"
	"strings"

	"kanso-verify/internal/logic"
)

// Script is the SMT-LIB2 encoding of a query.
type Script struct {
	// Text declares every symbol, asserts the negated formula and ends
	// with (check-sat).
	Text string
	// Observables are the display names of the terms in GetValue, in order.
	Observables []string
	// GetValue asks for the model values of the free variables and ground
	// storage applications. Empty when there are none.
	GetValue string
}

// Encode renders q as an SMT-LIB2 script. Storage variables become
// uninterpreted functions, one per state label, from their keys to Int.
func Encode(q *Query) *Script {
	var b strings.Builder
	if q.Name != "" {
		fmt.Fprintf(&b, "; %s\n", q.Name)
	}
	b.WriteString("(set-option :produce-models true)\n")
	b.WriteString("(set-logic ALL)\n")

	vars := logic.FreeVars(q.Formula)
	for _, v := range vars {
		fmt.Fprintf(&b, "(declare-const %s %s)\n", quote(v.Name), v.Kind)
	}
	for _, u := range logic.Storages(q.Formula) {
		args := strings.TrimSpace(strings.Repeat("Int ", u.Arity))
		fmt.Fprintf(&b, "(declare-fun %s (%s) Int)\n", quote(storageSymbol(u.Storage, u.Label)), args)
	}
	fmt.Fprintf(&b, "(assert (not %s))\n", smt(q.Formula))
	b.WriteString("(check-sat)\n")

	s := &Script{Text: b.String()}
	var terms []string
	for _, v := range vars {
		s.Observables = append(s.Observables, v.Name)
		terms = append(terms, quote(v.Name))
	}
	for _, sel := range logic.Selects(q.Formula) {
		s.Observables = append(s.Observables, sel.String())
		terms = append(terms, smt(sel))
	}
	if len(terms) > 0 {
		s.GetValue = "(get-value (" + strings.Join(terms, " ") + "))\n"
	}
	return s
}

func quote(name string) string {
	return "|" + name + "|"
}

func storageSymbol(storage, label string) string {
	if label == logic.Current {
		return storage
	}
	return storage + "@" + label
}

func smt(t logic.Term) string {
	switch x := t.(type) {
	case *logic.Var:
		return quote(x.Name)
	case *logic.IntLit:
		if x.Value.Sign() < 0 {
			return "(- " + x.Value.String()[1:] + ")"
		}
		return x.Value.String()
	case *logic.BoolLit:
		return fmt.Sprintf("%t", x.Value)
	case *logic.App:
		op := string(x.Op)
		if x.Op == logic.OpNeg {
			op = "-"
		}
		parts := make([]string, len(x.Args))
		for i, a := range x.Args {
			parts[i] = smt(a)
		}
		return "(" + op + " " + strings.Join(parts, " ") + ")"
	case *logic.Ite:
		return fmt.Sprintf("(ite %s %s %s)", smt(x.Cond), smt(x.Then), smt(x.Else))
	case *logic.Select:
		fn := quote(storageSymbol(x.Storage, x.Label))
		if len(x.Keys) == 0 {
			return fn
		}
		parts := make([]string, len(x.Keys))
		for i, k := range x.Keys {
			parts[i] = smt(k)
		}
		return "(" + fn + " " + strings.Join(parts, " ") + ")"
	case *logic.Exists:
		decls := make([]string, len(x.Vars))
		for i, v := range x.Vars {
			decls[i] = fmt.Sprintf("(%s %s)", quote(v.Name), v.Kind)
		}
		return fmt.Sprintf("(exists (%s) %s)", strings.Join(decls, " "), smt(x.Body))
	}
	panic(fmt.Sprintf("unexpected term %T", t))
}
