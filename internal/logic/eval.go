package logic

import (
	"fmt"
	"math/big"
	"strings"
)

// Model supplies concrete values for free variables and storage applications.
type Model interface {
	Var(name string) (any, bool)
	Select(storage, label string, keys []*big.Int) (*big.Int, bool)
}

// MapModel is a Model backed by maps. Store keys are "storage@label[k1,k2]".
type MapModel struct {
	Vars  map[string]any
	Store map[string]*big.Int
	// Default, when set, answers storage applications missing from Store.
	Default func(storage, label string, keys []*big.Int) *big.Int
}

func (m *MapModel) Var(name string) (any, bool) {
	v, ok := m.Vars[name]
	return v, ok
}

func (m *MapModel) Select(storage, label string, keys []*big.Int) (*big.Int, bool) {
	if v, ok := m.Store[StoreKey(storage, label, keys)]; ok {
		return v, true
	}
	if m.Default != nil {
		return m.Default(storage, label, keys), true
	}
	return nil, false
}

func StoreKey(storage, label string, keys []*big.Int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%s@%s[%s]", storage, label, strings.Join(parts, ","))
}

// Eval computes the value of a closed term under m: *big.Int for integer
// terms, bool for formulas. Existentials and division by zero are errors.
func Eval(t Term, m Model) (any, error) {
	switch x := t.(type) {
	case *IntLit:
		return x.Value, nil
	case *BoolLit:
		return x.Value, nil
	case *Var:
		v, ok := m.Var(x.Name)
		if !ok {
			return nil, fmt.Errorf("no value for %s", x.Name)
		}
		if n, ok := v.(int); ok {
			return big.NewInt(int64(n)), nil
		}
		return v, nil
	case *Select:
		keys := make([]*big.Int, len(x.Keys))
		for i, k := range x.Keys {
			v, err := evalInt(k, m)
			if err != nil {
				return nil, err
			}
			keys[i] = v
		}
		v, ok := m.Select(x.Storage, x.Label, keys)
		if !ok {
			return nil, fmt.Errorf("no value for %s", x)
		}
		return v, nil
	case *Ite:
		c, err := evalBool(x.Cond, m)
		if err != nil {
			return nil, err
		}
		if c {
			return Eval(x.Then, m)
		}
		return Eval(x.Else, m)
	case *Exists:
		return nil, fmt.Errorf("cannot evaluate quantified term %s", x)
	case *App:
		return evalApp(x, m)
	}
	return nil, fmt.Errorf("unknown term %T", t)
}

func evalApp(x *App, m Model) (any, error) {
	switch x.Op {
	case OpAnd:
		for _, a := range x.Args {
			v, err := evalBool(a, m)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, a := range x.Args {
			v, err := evalBool(a, m)
			if err != nil || v {
				return v, err
			}
		}
		return false, nil
	case OpNot:
		v, err := evalBool(x.Args[0], m)
		return !v, err
	case OpImplies:
		a, err := evalBool(x.Args[0], m)
		if err != nil || !a {
			return true, err
		}
		return evalBool(x.Args[1], m)
	case OpNeg:
		v, err := evalInt(x.Args[0], m)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(v), nil
	case OpEq:
		if x.Args[0].Sort() == BoolSort {
			a, err := evalBool(x.Args[0], m)
			if err != nil {
				return nil, err
			}
			b, err := evalBool(x.Args[1], m)
			return a == b, err
		}
	}

	a, err := evalInt(x.Args[0], m)
	if err != nil {
		return nil, err
	}
	b, err := evalInt(x.Args[1], m)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case OpAdd:
		return new(big.Int).Add(a, b), nil
	case OpSub:
		return new(big.Int).Sub(a, b), nil
	case OpMul:
		return new(big.Int).Mul(a, b), nil
	case OpDiv, OpMod:
		if b.Sign() == 0 {
			return nil, fmt.Errorf("division by zero in %s", x)
		}
		if x.Op == OpDiv {
			return new(big.Int).Div(a, b), nil
		}
		return new(big.Int).Mod(a, b), nil
	case OpLt:
		return a.Cmp(b) < 0, nil
	case OpLe:
		return a.Cmp(b) <= 0, nil
	case OpGt:
		return a.Cmp(b) > 0, nil
	case OpGe:
		return a.Cmp(b) >= 0, nil
	case OpEq:
		return a.Cmp(b) == 0, nil
	}
	return nil, fmt.Errorf("unknown operator %s", x.Op)
}

func evalInt(t Term, m Model) (*big.Int, error) {
	v, err := Eval(t, m)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s is not an integer", t)
	}
	return n, nil
}

func evalBool(t Term, m Model) (bool, error) {
	v, err := Eval(t, m)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s is not a formula", t)
	}
	return b, nil
}
