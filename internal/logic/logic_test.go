package logic

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantFolding(t *testing.T) {
	assert.Equal(t, "7", Add(Int(3), Int(4)).String())
	assert.Equal(t, "-2", Sub(Int(3), Int(5)).String())
	assert.Equal(t, "-3", Div(Int(-7), Int(3)).String(), "Euclidean division rounds towards negative infinity for positive divisors")
	assert.Equal(t, "2", Mod(Int(-7), Int(3)).String())
	assert.Equal(t, "2", Mod(Int(-7), Int(-3)).String(), "remainder is non-negative")

	x := IntVar("x")
	assert.Same(t, Term(x), Add(x, Int(0)))
	assert.Same(t, Term(x), Mul(Int(1), x))
	assert.Equal(t, "0", Mul(x, Int(0)).String())
	assert.Equal(t, "0", Sub(x, x).String())
	assert.Equal(t, "(x / 0)", Div(x, Int(0)).String())
}

func TestBooleanSimplification(t *testing.T) {
	x, y := IntVar("x"), IntVar("y")
	p := Lt(x, y)

	assert.Equal(t, True, Eq(x, x))
	assert.Equal(t, True, Le(x, x))
	assert.Equal(t, False, Lt(x, x))
	assert.Equal(t, p, And(True, p))
	assert.Equal(t, False, And(p, False))
	assert.Equal(t, True, Or(p, True))
	assert.Equal(t, p, Not(Not(p)))
	assert.Equal(t, True, Implies(False, p))
	assert.Equal(t, True, Implies(p, p))
	assert.Equal(t, "!(x < y)", Implies(p, False).String())

	nested := And(p, And(Gt(x, Int(0)), Ge(y, Int(1))))
	assert.Len(t, Conjuncts(nested), 3)
}

func TestIteFoldsReadAfterWrite(t *testing.T) {
	k := IntVar("k")
	v := IntVar("v")
	read := NewSelect("State.balances", []Term{k}, Current)

	// write State.balances[k] := v, then read the same key
	written := SubstSelects(Eq(read, v), func(s *Select) Term {
		return IteT(KeysEqual(s.Keys, []Term{k}), v, s)
	})
	assert.Equal(t, True, written)
}

func TestSubstIsSimultaneous(t *testing.T) {
	x, y := IntVar("x"), IntVar("y")
	swapped := Subst(Sub(x, y), map[string]Term{"x": y, "y": x})
	assert.Equal(t, "(y - x)", swapped.String())
}

func TestSubstRespectsBinders(t *testing.T) {
	l, a := IntVar("$l"), IntVar("a")
	ex := NewExists([]*Var{l}, Eq(l, a))
	out := Subst(ex, map[string]Term{"$l": Int(1), "a": Int(2)})
	assert.Equal(t, "(exists $l. ($l == 2))", out.String())
}

func TestRelabelAndSelects(t *testing.T) {
	k := IntVar("k")
	cur := NewSelect("State.balances", []Term{k}, Current)
	pre := NewSelect("State.balances", []Term{k}, Pre)
	term := Eq(cur, Add(pre, Int(1)))

	relabeled := Relabel(term, Current, Pre)
	assert.Equal(t, "(State.balances@pre[k] == (State.balances@pre[k] + 1))", relabeled.String())

	sels := Selects(term)
	require.Len(t, sels, 2)
	assert.Equal(t, "State.balances@pre[k]", sels[0].String())
	assert.Equal(t, "State.balances[k]", sels[1].String())

	uses := Storages(term)
	require.Len(t, uses, 2)
	assert.Equal(t, StorageUse{Storage: "State.balances", Label: Current, Arity: 1}, uses[0])
}

func TestFreeVars(t *testing.T) {
	a, b, l := IntVar("a"), IntVar("b"), IntVar("$l")
	term := And(Lt(a, b), NewExists([]*Var{l}, Eq(l, NewSelect("S", []Term{a}, Pre))))
	vars := FreeVars(term)
	require.Len(t, vars, 2)
	assert.Equal(t, "a", vars[0].Name)
	assert.Equal(t, "b", vars[1].Name)
	assert.True(t, Mentions(term, "a"))
	assert.False(t, Mentions(term, "$l"))
}

func TestEval(t *testing.T) {
	a, b := IntVar("a"), IntVar("b")
	sel := NewSelect("State.balances", []Term{a}, Pre)
	term := Implies(Gt(b, Int(0)), Eq(Add(Mul(Div(sel, b), b), Mod(sel, b)), sel))

	m := &MapModel{
		Vars: map[string]any{"a": 3, "b": big.NewInt(7)},
		Store: map[string]*big.Int{
			StoreKey("State.balances", Pre, []*big.Int{big.NewInt(3)}): big.NewInt(100),
		},
	}
	v, err := Eval(term, m)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = Eval(Div(a, Int(0)), m)
	assert.Error(t, err)

	_, err = Eval(IntVar("missing"), m)
	assert.Error(t, err)
}
