package compose

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso-verify/internal/ast"
	kerrors "kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/report"
	"kanso-verify/internal/solver"
)

// ============================================================================
// Helpers
// ============================================================================

const header = `contract Token {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
        total: U256,
    }
`

// oracle answers from a bounded search: a formula the sampler cannot
// refute counts as valid. Good enough for the small contracts below.
type oracle struct {
	sampler *solver.Sampler
	calls   atomic.Int64
}

func newOracle() *oracle {
	return &oracle{sampler: solver.NewSampler()}
}

func (o *oracle) Check(ctx context.Context, q *solver.Query) (*solver.Result, error) {
	o.calls.Add(1)
	res, err := o.sampler.Check(ctx, q)
	if err != nil {
		return nil, err
	}
	if res.Status == solver.Unknown && ctx.Err() == nil {
		return &solver.Result{Status: solver.Unsat}, nil
	}
	return res, nil
}

// undecided never settles a query.
type undecided struct{}

func (undecided) Check(context.Context, *solver.Query) (*solver.Result, error) {
	return &solver.Result{Status: solver.Unknown, Reason: "incomplete"}, nil
}

func contract(t *testing.T, body string) *ast.Contract {
	t.Helper()
	c, parseErrs, scanErrs := parser.ParseSource("token.ka", header+body+"\n}")
	require.Empty(t, parseErrs)
	require.Empty(t, scanErrs)
	return c
}

func verify(t *testing.T, body string, opts Options) *report.Reporter {
	t.Helper()
	return New(newOracle(), opts).Verify(context.Background(), contract(t, body))
}

func result(t *testing.T, rep *report.Reporter, name string) *report.Result {
	t.Helper()
	for _, r := range rep.Results() {
		if r.Function == name {
			return r
		}
	}
	require.Failf(t, "missing result", "no result for %s", name)
	return nil
}

const increment = `
    /// @ensures return > a
    fn inc(a: U256) -> U256 {
        a + 1
    }
`

const deposit = `
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        State.balances[to] += amount;
    }
`

// ============================================================================
// Single functions
// ============================================================================

func TestBalanceLookupVerifies(t *testing.T) {
	rep := verify(t, `
    /// @ensures return == State.balances[owner]
    fn balance(owner: Address) -> U256 {
        State.balances[owner]
    }`, Options{})

	assert.Equal(t, []string{"balance", "Verified"}, rep.Lines())
	assert.Equal(t, 0, rep.ExitCode())
}

func TestBalanceUpdate(t *testing.T) {
	rep := verify(t, deposit, Options{})
	assert.Equal(t, []string{"deposit", "Verified"}, rep.Lines())

	rep = verify(t, `
    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        State.balances[to] = State.balances[to] + amount + 1;
    }`, Options{})

	res := result(t, rep, "deposit")
	require.Equal(t, report.Falsified, res.Verdict.Kind)
	require.NotNil(t, res.Verdict.Witness)
	assert.Equal(t, "storage-update", res.Verdict.Witness.Kind)
	assert.Equal(t, "State.balances", res.Verdict.Witness.Storage)
	assert.NotEmpty(t, res.Verdict.Witness.Assignments)
	assert.Equal(t, 1, rep.ExitCode())
}

func TestUnannotatedWriteIsFalsified(t *testing.T) {
	rep := verify(t, `
    /// @update State.balances[to] == old + amount
    fn mint(to: Address, amount: U256) writes(State) {
        State.balances[to] += amount;
        State.total += amount;
    }`, Options{})

	res := result(t, rep, "mint")
	require.Equal(t, report.Falsified, res.Verdict.Kind)
	assert.Equal(t, "unannotated-write", res.Verdict.Witness.Kind)
	assert.Equal(t, "State.total", res.Verdict.Witness.Storage)
}

func TestFailingClauseIsAttributed(t *testing.T) {
	rep := verify(t, `
    /// @ensures return >= a
    /// @ensures return >= b
    fn max(a: U256, b: U256) -> U256 {
        a
    }`, Options{})

	res := result(t, rep, "max")
	require.Equal(t, report.Falsified, res.Verdict.Kind)
	assert.Equal(t, "postcondition", res.Verdict.Witness.Kind)
	assert.Equal(t, "return >= b", res.Verdict.Witness.Clause)
}

func TestUncalledFunctionWithoutContract(t *testing.T) {
	rep := verify(t, `
    fn noop(a: U256) -> U256 {
        a
    }`, Options{})

	assert.Equal(t, []string{"noop", "Verified"}, rep.Lines())
	diags := result(t, rep, "noop").Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, kerrors.WarningUncontractedRoot, diags[0].Code)
}

func TestPathLimitIsAnError(t *testing.T) {
	rep := verify(t, `
    /// @ensures true
    fn branches(a: U256, b: U256, c: U256) -> U256 {
        let mut r = 0;
        if a > 1 { r = 1; }
        if b > 1 { r = 2; }
        if c > 1 { r = 3; }
        r
    }`, Options{MaxPaths: 4})

	res := result(t, rep, "branches")
	assert.Equal(t, report.Error, res.Verdict.Kind)
	assert.Equal(t, "path limit exceeded", res.Verdict.Reason)
	assert.Equal(t, 2, rep.ExitCode())
}

func TestUndecidedQueryIsAnError(t *testing.T) {
	rep := New(undecided{}, Options{}).Verify(context.Background(), contract(t, increment))

	res := result(t, rep, "inc")
	assert.Equal(t, report.Error, res.Verdict.Kind)
	assert.Equal(t, "undecided", res.Verdict.Reason)
	assert.Equal(t, "incomplete", res.Verdict.Detail)
	assert.Equal(t, 2, rep.ExitCode())
}

func TestMalformedClauseFailsOnlyItsFunction(t *testing.T) {
	rep := verify(t, deposit+`
    /// @ensures return ==
    fn broken() -> U256 {
        0
    }`, Options{})

	assert.Equal(t, report.Verified, result(t, rep, "deposit").Verdict.Kind)
	broken := result(t, rep, "broken")
	assert.Equal(t, report.Error, broken.Verdict.Kind)
	require.NotEmpty(t, broken.Diagnostics)
	assert.Equal(t, kerrors.Error, broken.Diagnostics[0].Level)
}

// ============================================================================
// Composition
// ============================================================================

const getter = `
    /// @ensures return == State.balances[a]
    fn get(a: Address) -> U256 {
        State.balances[a]
    }
`

func TestCalleesAreReportedFirst(t *testing.T) {
	rep := verify(t, `
    /// @requires State.balances[x] < 100 && State.balances[y] < 100
    /// @ensures return == State.balances[x] + State.balances[y]
    fn sum(x: Address, y: Address) -> U256 {
        get(x) + get(y)
    }
`+getter, Options{})

	assert.Equal(t, []string{"get", "Verified", "sum", "Verified"}, rep.Lines())
}

func TestFalsifiedCalleeBlocksCaller(t *testing.T) {
	rep := verify(t, `
    /// @ensures return == State.balances[a] + 1
    fn get(a: Address) -> U256 {
        State.balances[a]
    }

    /// @ensures true
    fn caller(a: Address) -> U256 {
        get(a)
    }`, Options{})

	assert.Equal(t, []string{"get", "Falsified", "caller", "Error"}, rep.Lines())
	assert.Equal(t, "blocked: callee get is Falsified", result(t, rep, "caller").Verdict.Reason)
	assert.Equal(t, 2, rep.ExitCode())
}

func TestCalleeLogicalOutsideSamplePool(t *testing.T) {
	rep := New(solver.NewSampler(), Options{}).Verify(context.Background(), contract(t, `
    /// @decl $half: U256
    /// @requires x == $half * 2 && $half > 10
    /// @ensures return == x
    fn id(x: U256) -> U256 {
        x
    }

    /// @ensures return == 40
    fn caller() -> U256 {
        id(40)
    }`))

	assert.Equal(t, []string{"id", "Verified", "caller", "Error"}, rep.Lines())
	assert.Equal(t, "undecided", result(t, rep, "caller").Verdict.Reason)
}

func TestCyclesAreErrors(t *testing.T) {
	rep := verify(t, `
    /// @ensures true
    fn a(x: U256) -> U256 {
        b(x)
    }

    /// @ensures true
    fn b(x: U256) -> U256 {
        a(x)
    }

    /// @ensures true
    fn c(x: U256) -> U256 {
        a(x)
    }`, Options{})

	assert.Equal(t, "cyclic call graph: a -> b -> a", result(t, rep, "a").Verdict.Reason)
	assert.Equal(t, kerrors.ErrorCyclicCallGraph, result(t, rep, "a").Diagnostics[0].Code)
	assert.Equal(t, "cyclic call graph: b -> a -> b", result(t, rep, "b").Verdict.Reason)
	assert.Equal(t, "blocked: callee a is Error", result(t, rep, "c").Verdict.Reason)
}

func TestHelperIsReportedWithItsCaller(t *testing.T) {
	rep := verify(t, `
    fn credit(a: Address, amount: U256) writes(State) {
        State.balances[a] += amount;
    }

    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        credit(to, amount);
    }`, Options{})

	assert.Equal(t, []string{
		"credit [inlined into deposit]", "Verified",
		"deposit", "Verified",
	}, rep.Lines())
}

func TestHelperSharesItsCallersFailure(t *testing.T) {
	rep := verify(t, `
    fn credit(a: Address, amount: U256) writes(State) {
        State.balances[a] += amount + 1;
    }

    /// @update State.balances[to] == old + amount
    fn deposit(to: Address, amount: U256) writes(State) {
        credit(to, amount);
    }`, Options{})

	assert.Equal(t, report.Falsified, result(t, rep, "credit").Verdict.Kind)
	assert.Equal(t, "deposit", result(t, rep, "credit").InlinedInto)
}

// ============================================================================
// Runs
// ============================================================================

const ledger = getter + deposit + `
    /// @requires State.balances[x] < 100 && State.balances[y] < 100
    /// @ensures return == State.balances[x] + State.balances[y]
    fn sum(x: Address, y: Address) -> U256 {
        get(x) + get(y)
    }

    /// @ensures return == State.balances[a] * 2
    fn twice(a: Address) -> U256 {
        get(a) + get(a) + 1
    }
`

func TestParallelRunsAgree(t *testing.T) {
	serial := verify(t, ledger, Options{Jobs: 1})
	parallel := verify(t, ledger, Options{Jobs: 4})

	assert.Equal(t, serial.Lines(), parallel.Lines())
	assert.Equal(t, report.Falsified, result(t, parallel, "twice").Verdict.Kind)
}

func TestRepeatedRunsAreIdentical(t *testing.T) {
	c := New(newOracle(), Options{Jobs: 2})
	src := contract(t, ledger)

	first := c.Verify(context.Background(), src)
	second := c.Verify(context.Background(), src)

	assert.Equal(t, first.Lines(), second.Lines())
	assert.Equal(t, first.Details(), second.Details())
}

func TestCachedVerdictsAreReused(t *testing.T) {
	cache, err := OpenMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	o := newOracle()
	c := New(o, Options{}).WithCache(cache)
	first := c.Verify(context.Background(), contract(t, ledger))
	calls := o.calls.Load()
	require.Positive(t, calls)

	second := c.Verify(context.Background(), contract(t, ledger))
	assert.Equal(t, calls, o.calls.Load())
	assert.Equal(t, first.Lines(), second.Lines())
	assert.True(t, result(t, second, "sum").Cached)

	w := result(t, second, "twice").Verdict.Witness
	require.NotNil(t, w)
	assert.Equal(t, "postcondition", w.Kind)
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := New(newOracle(), Options{}).Verify(ctx, contract(t, ledger))
	for _, res := range rep.Results() {
		assert.Equal(t, report.Error, res.Verdict.Kind, res.Function)
		assert.Equal(t, "cancelled", res.Verdict.Reason, res.Function)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestDumpSMT(t *testing.T) {
	var out syncBuffer
	verify(t, `
    /// @requires State.balances[a] < 100
    /// @ensures return > State.balances[a]
    fn bump(a: Address) -> U256 {
        State.balances[a] + 1
    }`, Options{DumpSMT: &out})

	assert.Contains(t, out.buf.String(), "(check-sat)")
	assert.Contains(t, out.buf.String(), "State.balances")
}

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	New(newOracle(), Options{}).WithMetrics(m).Verify(context.Background(), contract(t, ledger))

	path := filepath.Join(t.TempDir(), "verify.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `kanso_verify_verdicts_total{verdict="Verified"} 3`)
	assert.Contains(t, text, `kanso_verify_verdicts_total{verdict="Falsified"} 1`)
	assert.Contains(t, text, "kanso_verify_obligations_total")
	assert.Contains(t, text, "kanso_verify_task_duration_seconds_count 4")
}
