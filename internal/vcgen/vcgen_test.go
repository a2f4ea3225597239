package vcgen

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso-verify/internal/ir"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/solver"
	"kanso-verify/internal/spec"
	"kanso-verify/internal/storage"
)

// ============================================================================
// Helpers
// ============================================================================

const header = `contract Test {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
        total: U256,
    }
`

func generate(t *testing.T, body, name string, opts Options) (*Result, error) {
	t.Helper()
	contract, parseErrs, scanErrs := parser.ParseSource("test.ka", header+body+"\n}")
	require.Empty(t, parseErrs)
	require.Empty(t, scanErrs)

	layout, layoutErrs := storage.NewLayout(contract)
	require.Empty(t, layoutErrs)

	sigs := map[string]*spec.Signature{}
	specs := map[string]*spec.FunctionSpec{}
	for _, fn := range contract.Functions() {
		sig, sigErrs := spec.NewSignature(fn)
		require.Empty(t, sigErrs)
		sigs[fn.Name.Value] = sig
		s, specErrs := spec.Parse(fn, sig, layout)
		require.Empty(t, specErrs)
		specs[fn.Name.Value] = s
	}

	fns := map[string]*ir.Function{}
	for _, fn := range contract.Functions() {
		lowered, errs := ir.Build(fn, sigs[fn.Name.Value], layout, sigs, ir.Options{Arithmetic: opts.Arithmetic})
		require.Empty(t, errs)
		fns[fn.Name.Value] = lowered
	}

	contracted := func(n string) bool { return !specs[n].IsEmpty() }
	summaries := map[string]*spec.FunctionSpec{}
	for n, s := range specs {
		if n != name && contracted(n) {
			summaries[n] = s
		}
	}

	fn, err := ir.NewInliner(fns, contracted, 0).Inline(fns[name])
	require.NoError(t, err)
	return Generate(fn, specs[name], layout, summaries, opts)
}

func mustGenerate(t *testing.T, body, name string) *Result {
	t.Helper()
	res, err := generate(t, body, name, Options{})
	require.NoError(t, err)
	return res
}

// refuted samples each obligation and returns the first with a counterexample.
func refuted(t *testing.T, res *Result) *Obligation {
	t.Helper()
	s := solver.NewSampler()
	for _, ob := range res.Obligations {
		r, err := s.Check(context.Background(), &solver.Query{Name: ob.String(), Formula: ob.Formula})
		require.NoError(t, err)
		if r.Status == solver.Sat {
			return ob
		}
	}
	return nil
}

func kinds(res *Result) []Kind {
	var out []Kind
	for _, ob := range res.Obligations {
		out = append(out, ob.Kind)
	}
	return out
}

// ============================================================================
// Straight-line code
// ============================================================================

func TestBalanceLookupIsTriviallyValid(t *testing.T) {
	res := mustGenerate(t, `
    /// @ensures return == State.balances[owner]
    fn balance(owner: Address) -> U256 {
        State.balances[owner]
    }`, "balance")

	assert.Equal(t, 1, res.Paths)
	assert.Nil(t, res.Unannotated)
	assert.Empty(t, res.Obligations)
}

func TestBalanceUpdate(t *testing.T) {
	res := mustGenerate(t, `
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        State.balances[to] += amount;
    }`, "deposit")

	assert.Nil(t, res.Unannotated)
	assert.Nil(t, refuted(t, res))
}

func TestBalanceUpdateOffByOne(t *testing.T) {
	res := mustGenerate(t, `
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        State.balances[to] = State.balances[to] + amount + 1;
    }`, "deposit")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindUpdate, ob.Kind)
	assert.Equal(t, "State.balances", ob.Storage)
	assert.Equal(t, "single path", ob.Path)
}

func TestUpdateAtWrongKeyIsRefuted(t *testing.T) {
	res := mustGenerate(t, `
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, from: Address, amount: U256) writes(State) {
        State.balances[from] += amount;
    }`, "deposit")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindUpdate, ob.Kind)
}

func TestUnannotatedWrite(t *testing.T) {
	res := mustGenerate(t, `
    /// @update State.balances[to] == old + amount
    fn mint(to: Address, amount: U256) writes(State) {
        State.balances[to] += amount;
        State.total += amount;
    }`, "mint")

	require.NotNil(t, res.Unannotated)
	assert.Equal(t, KindUnannotatedWrite, res.Unannotated.Kind)
	assert.Equal(t, "State.total", res.Unannotated.Storage)
	assert.Empty(t, res.Obligations)
}

func TestPostconditionWithScalarUpdate(t *testing.T) {
	res := mustGenerate(t, `
    /// @requires State.total < 100
    /// @ensures return > old(State.total)
    /// @update State.total == old + 1
    fn bump() -> U256 writes(State) {
        State.total += 1;
        State.total
    }`, "bump")

	assert.Nil(t, refuted(t, res))
	assert.Contains(t, kinds(res), KindPostcondition)
}

// ============================================================================
// Branches and assertions
// ============================================================================

func TestBranchesForkPaths(t *testing.T) {
	res := mustGenerate(t, `
    /// @ensures return >= a && return >= b
    fn max(a: U256, b: U256) -> U256 {
        if a > b {
            return a;
        }
        b
    }`, "max")

	assert.Equal(t, 2, res.Paths)
	assert.Nil(t, refuted(t, res))
}

func TestWrongBranchIsAttributedToItsPath(t *testing.T) {
	res := mustGenerate(t, `
    /// @ensures return >= a && return >= b
    fn max(a: U256, b: U256) -> U256 {
        if a > b {
            return b;
        }
        b
    }`, "max")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindPostcondition, ob.Kind)
	assert.True(t, strings.HasSuffix(ob.Path, ": then"), ob.Path)
}

func TestRequireMakesFailedPathsVacuous(t *testing.T) {
	res := mustGenerate(t, `
    /// @ensures return > 0
    fn positive(a: U256) -> U256 {
        require!(a > 0);
        a
    }`, "positive")

	assert.Nil(t, refuted(t, res))
}

func TestAssertions(t *testing.T) {
	res := mustGenerate(t, `
    /// @requires x < 3
    fn ok(x: U256) {
        assert!(x < 5);
    }

    /// @requires x < 10
    fn bad(x: U256) {
        assert!(x < 5);
    }`, "bad")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindAssertion, ob.Kind)

	res = mustGenerate(t, `
    /// @requires x < 3
    fn ok(x: U256) {
        assert!(x < 5);
    }`, "ok")
	assert.Nil(t, refuted(t, res))
}

func TestPathLimit(t *testing.T) {
	_, err := generate(t, `
    /// @ensures true
    fn branchy(a: U256, b: U256, c: U256) -> U256 {
        let mut r = 0;
        if a > 1 { r = 1; }
        if b > 1 { r = 2; }
        if c > 1 { r = 3; }
        r
    }`, "branchy", Options{MaxPaths: 4})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathLimit))
}

// ============================================================================
// Calls
// ============================================================================

const getter = `
    /// @ensures return == State.balances[a]
    fn get(a: Address) -> U256 {
        State.balances[a]
    }
`

func TestTwoCallSitesGetIndependentNames(t *testing.T) {
	res := mustGenerate(t, getter+`
    /// @requires State.balances[x] < 100 && State.balances[y] < 100
    /// @ensures return == State.balances[x] + State.balances[y]
    fn sum(x: Address, y: Address) -> U256 {
        get(x) + get(y)
    }`, "sum")

	require.NotEmpty(t, res.Obligations)
	vc := res.VC().String()
	assert.Contains(t, vc, "get@1.return")
	assert.Contains(t, vc, "get@2.return")
	assert.Nil(t, refuted(t, res))
}

func TestSummaryMisuseIsRefuted(t *testing.T) {
	res := mustGenerate(t, getter+`
    /// @requires State.balances[x] < 100
    /// @ensures return == State.balances[x] * 2
    fn sum(x: Address, y: Address) -> U256 {
        get(x) + get(y)
    }`, "sum")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindPostcondition, ob.Kind)
}

func TestCalleePrecondition(t *testing.T) {
	body := `
    /// @requires a > 0
    /// @ensures return == a - 1
    fn pred(a: U256) -> U256 {
        a - 1
    }

    /// @ensures true
    fn caller(x: U256) -> U256 {
        pred(x)
    }`
	res := mustGenerate(t, body, "caller")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindCalleePrecondition, ob.Kind)
	assert.Equal(t, "pred", ob.Callee)

	res = mustGenerate(t, strings.Replace(body, "/// @ensures true", "/// @requires x > 2\n    /// @ensures return > 1", 1), "caller")
	assert.Nil(t, refuted(t, res))
}

func TestCalleeLogicalsDefinedByEquality(t *testing.T) {
	res := mustGenerate(t, `
    /// @decl $b: U256
    /// @requires State.balances[a] == $b
    /// @ensures return == $b
    fn get(a: Address) -> U256 {
        State.balances[a]
    }

    /// @ensures return == State.balances[x]
    fn caller(x: Address) -> U256 {
        get(x)
    }`, "caller")

	assert.NotContains(t, res.VC().String(), "exists")
	assert.Nil(t, refuted(t, res))
}

func TestCalleeLogicalsWithoutDefinitionAreWitnessed(t *testing.T) {
	res := mustGenerate(t, `
    /// @decl $m: U256
    /// @requires a < $m && $m < 4
    /// @ensures return < $m
    fn below(a: U256) -> U256 {
        a
    }

    /// @requires x < 7
    /// @ensures return < 7
    fn caller(x: U256) -> U256 {
        below(x)
    }`, "caller")

	var pre *Obligation
	for _, ob := range res.Obligations {
		if ob.Kind == KindCalleePrecondition {
			pre = ob
		}
	}
	require.NotNil(t, pre)
	assert.Contains(t, pre.Formula.String(), "exists below@1.$m")

	// x = 3 leaves no room for $m, but a pool search cannot tell that
	// apart from a witness it never tried
	assert.Nil(t, refuted(t, res))
	r, err := solver.NewSampler().Check(context.Background(), &solver.Query{Formula: pre.Formula})
	require.NoError(t, err)
	assert.Equal(t, solver.Unknown, r.Status)
	assert.Contains(t, r.Reason, "existential witness")
}

func TestCalleeLogicalOutsideThePoolIsNotRefuted(t *testing.T) {
	res := mustGenerate(t, `
    /// @decl $half: U256
    /// @requires x == $half * 2 && $half > 10
    /// @ensures return == x
    fn id(x: U256) -> U256 {
        x
    }

    /// @ensures return == 40
    fn caller() -> U256 {
        id(40)
    }`, "caller")

	assert.Nil(t, refuted(t, res))
}

func TestUnboundedCallResultsHaveNoRange(t *testing.T) {
	body := `
    /// @ensures return == x + 1
    fn inc(x: U8) -> U8 {
        x + 1
    }

    /// @ensures return < 256
    fn caller() -> U8 {
        inc(255)
    }`

	// the callee result is the only free name; 256 breaks the postcondition
	// unless a range axiom rules it out
	falsifiedBy256 := func(res *Result) bool {
		for _, ob := range res.Obligations {
			if ob.Kind != KindPostcondition {
				continue
			}
			m := &logic.MapModel{Vars: map[string]any{}}
			for _, v := range logic.FreeVars(ob.Formula) {
				m.Vars[v.Name] = big.NewInt(256)
			}
			v, err := logic.Eval(ob.Formula, m)
			require.NoError(t, err)
			return !v.(bool)
		}
		return false
	}

	unbounded, err := generate(t, body, "caller", Options{Arithmetic: ir.Unbounded})
	require.NoError(t, err)
	assert.True(t, falsifiedBy256(unbounded))

	checked, err := generate(t, body, "caller", Options{Arithmetic: ir.Checked})
	require.NoError(t, err)
	assert.False(t, falsifiedBy256(checked))
}

func TestCalleeUpdatesApplyInOrder(t *testing.T) {
	callee := `
    /// @update State.balances[a] == old + n
    fn credit(a: Address, n: U256) writes(State) {
        State.balances[a] += n;
    }
`
	res := mustGenerate(t, callee+`
    /// @update State.balances[a] == old + n * 2
    fn twice(a: Address, n: U256) writes(State) {
        credit(a, n);
        credit(a, n);
    }`, "twice")
	assert.Nil(t, res.Unannotated)
	assert.Nil(t, refuted(t, res))

	res = mustGenerate(t, callee+`
    /// @update State.balances[a] == old + n
    fn twice(a: Address, n: U256) writes(State) {
        credit(a, n);
        credit(a, n);
    }`, "twice")
	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindUpdate, ob.Kind)
}

func TestCalleeUpdateWithoutCallerClauseIsUnannotated(t *testing.T) {
	res := mustGenerate(t, `
    /// @update State.total == old + 1
    fn bump() writes(State) {
        State.total += 1;
    }

    /// @ensures true
    fn caller() writes(State) {
        bump();
    }`, "caller")

	require.NotNil(t, res.Unannotated)
	assert.Equal(t, "State.total", res.Unannotated.Storage)
	assert.Equal(t, "bump", res.Unannotated.Callee)
}

func TestInlinedHelperWritesCount(t *testing.T) {
	res := mustGenerate(t, `
    fn helper(a: Address) writes(State) {
        State.balances[a] = 0;
    }

    /// @ensures true
    fn caller(a: Address) writes(State) {
        helper(a);
    }`, "caller")

	require.NotNil(t, res.Unannotated)
	assert.Equal(t, "State.balances", res.Unannotated.Storage)
}

func TestGenerateIsDeterministic(t *testing.T) {
	body := getter + `
    /// @requires State.balances[x] < 100 && State.balances[y] < 100
    /// @ensures return == State.balances[x] + State.balances[y]
    fn sum(x: Address, y: Address) -> U256 {
        if x == y {
            return get(x) * 2;
        }
        get(x) + get(y)
    }`
	a := mustGenerate(t, body, "sum")
	b := mustGenerate(t, body, "sum")
	assert.Equal(t, a.VC().String(), b.VC().String())
}

// ============================================================================
// Swap and known limitations
// ============================================================================

const swap = `
    /// @decl $old_from: U256
    /// @decl $old_to: U256
    /// @requires amount > 0 && amount < 1000
    /// @requires State.balances[from] == $old_from && $old_from < 1000
    /// @requires State.balances[to] == $old_to && $old_to < 1000
    /// @ensures $old_to * amount == return.out * ($old_from + amount) + return.rem
    fn swap(from: Address, to: Address, amount: U256) -> (out: U256, rem: U256) {
        let x = State.balances[from];
        let y = State.balances[to];
        let q = y * amount / (x + amount);
        let r = y * amount % (x + amount);
        return (q, r);
    }`

func TestSwap(t *testing.T) {
	res := mustGenerate(t, swap, "swap")
	require.NotEmpty(t, res.Obligations)
	assert.Nil(t, refuted(t, res))

	if !solver.Available(solver.DefaultCommand) {
		t.Skip("z3 not on PATH")
	}
	r, err := solver.NewZ3(30*time.Second).Check(context.Background(), &solver.Query{Name: "swap", Formula: res.VC()})
	require.NoError(t, err)
	assert.NotEqual(t, solver.Sat, r.Status)
}

func TestSwapWrongRemainder(t *testing.T) {
	res := mustGenerate(t, strings.Replace(swap, "return (q, r);", "return (q, r + 1);", 1), "swap")

	ob := refuted(t, res)
	require.NotNil(t, ob)
	assert.Equal(t, KindPostcondition, ob.Kind)
}

// The checker is sound relative to the contract as written: a body that
// reads the wrong key is caught only when the contract names the intended
// one.
func TestArgumentMixUpFollowsContract(t *testing.T) {
	mixed := `
    fn balance(owner: Address, other: Address) -> U256 {
        State.balances[other]
    }`

	intended := mustGenerate(t, "\n    /// @ensures return == State.balances[owner]"+mixed, "balance")
	require.NotNil(t, refuted(t, intended))

	consistent := mustGenerate(t, "\n    /// @ensures return == State.balances[other]"+mixed, "balance")
	assert.Nil(t, refuted(t, consistent))
}
