package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/storage"
)

func parseSpecs(t *testing.T, source string) (map[string]*FunctionSpec, map[string][]errors.CompilerError) {
	t.Helper()
	contract, parseErrs, scanErrs := parser.ParseSource("test.ka", source)
	require.Empty(t, parseErrs)
	require.Empty(t, scanErrs)

	layout, layoutErrs := storage.NewLayout(contract)
	require.Empty(t, layoutErrs)

	specs := map[string]*FunctionSpec{}
	errs := map[string][]errors.CompilerError{}
	for _, fn := range contract.Functions() {
		sig, sigErrs := NewSignature(fn)
		require.Empty(t, sigErrs)
		s, e := Parse(fn, sig, layout)
		specs[fn.Name.Value] = s
		errs[fn.Name.Value] = e
	}
	return specs, errs
}

const swapSource = `contract Dex {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
        allowances: Slots<(Address, Address), U256>,
    }

    /// Swap tokens.
    /// @decl $old_from: U256
    /// @decl $old_to: U256
    /// @requires amount > 0 && amount < 1000
    /// @requires State.balances[from] == $old_from
    /// @requires State.balances[to] == $old_to
    /// @ensures $old_to * amount == return.out * ($old_from + amount) + return.1
    /// @update State.balances[from] == old + amount
    ext fn swap(from: Address, to: Address, amount: U256) -> (out: U256, U256) writes(State) {
        (0, 0)
    }

    fn plain(a: U256) -> U256 {
        a
    }
}`

func TestParseSwapSpec(t *testing.T) {
	specs, errs := parseSpecs(t, swapSource)
	require.Empty(t, errs["swap"])

	swap := specs["swap"]
	require.False(t, swap.IsEmpty())
	require.Len(t, swap.Logicals, 2)
	assert.Equal(t, "$old_from", swap.Logicals[0].Name)
	assert.Equal(t, "U256", swap.Logicals[0].Type)

	require.Len(t, swap.Requires, 3)
	assert.Equal(t, "((amount > 0) && (amount < 1000))", swap.Requires[0].Formula.String())
	assert.Equal(t, "(State.balances[from] == $old_from)", swap.Requires[1].Formula.String())

	require.Len(t, swap.Ensures, 1)
	assert.Equal(t, "(($old_to * amount) == ((return.out * ($old_from + amount)) + return.1))", swap.Ensures[0].Formula.String())

	require.Len(t, swap.Updates, 1)
	u := swap.Updates[0]
	assert.Equal(t, "State.balances", u.Storage)
	assert.Equal(t, "State.balances[from] == (old# + amount)", u.String())

	_, ok := swap.UpdateFor("State.allowances")
	assert.False(t, ok)

	assert.True(t, specs["plain"].IsEmpty())
}

func TestClausePositions(t *testing.T) {
	specs, _ := parseSpecs(t, swapSource)
	req := specs["swap"].Requires[0]
	assert.Equal(t, 11, req.Pos.Line)
	assert.Equal(t, 9, req.Pos.Column)
	assert.Equal(t, "amount > 0 && amount < 1000", req.Text)
}

func TestClauseSites(t *testing.T) {
	contract, _, _ := parser.ParseSource("test.ka", swapSource)
	sites := Clauses(contract.Functions()[0])
	require.Len(t, sites, 7)
	assert.Equal(t, "decl", sites[0].Keyword)
	assert.Equal(t, "$old_from: U256", sites[0].Body)
	assert.Equal(t, "update", sites[6].Keyword)
	assert.Equal(t, 11, sites[2].Pos.Line)
	assert.Equal(t, 9, sites[2].Pos.Column)
	assert.Equal(t, 19, sites[2].BodyPos.Column)

	assert.Empty(t, Clauses(contract.Functions()[1]))
}

func TestBlockCommentClauseSites(t *testing.T) {
	source := `contract T {
    /**
     * @requires a > 0
     * @ensures return == a
     */
    fn f(a: U256) -> U256 {
        a
    }
}`
	contract, parseErrs, scanErrs := parser.ParseSource("test.ka", source)
	require.Empty(t, parseErrs)
	require.Empty(t, scanErrs)

	sites := Clauses(contract.Functions()[0])
	require.Len(t, sites, 2)
	assert.Equal(t, "a > 0", sites[0].Body)
	assert.Equal(t, 3, sites[0].Pos.Line)
	assert.Equal(t, 8, sites[0].Pos.Column)
	assert.Equal(t, "return == a", sites[1].Body)
	assert.Equal(t, 4, sites[1].Pos.Line)
}

func TestSignatureResults(t *testing.T) {
	contract, _, _ := parser.ParseSource("test.ka", swapSource)
	sig, errs := NewSignature(contract.Functions()[0])
	require.Empty(t, errs)
	require.Len(t, sig.Results, 2)
	assert.Equal(t, "return.out", sig.Results[0].Name)
	assert.Equal(t, "return.1", sig.Results[1].Name)

	r, ok := sig.Result("0")
	require.True(t, ok)
	assert.Equal(t, "return.out", r.Name)

	single, _ := NewSignature(contract.Functions()[1])
	assert.Equal(t, "return", single.Results[0].Name)
	_, ok = single.Result("0")
	assert.False(t, ok)
}

func TestOldAndReturnSelectors(t *testing.T) {
	source := `contract T {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
    }

    /// @ensures State.balances[a] == old(State.balances[a]) + return
    fn f(a: Address) -> U256 {
        0
    }
}`
	specs, errs := parseSpecs(t, source)
	require.Empty(t, errs["f"])
	assert.Equal(t, "(State.balances[a] == (State.balances@pre[a] + return))", specs["f"].Post().String())
}

func TestClauseErrors(t *testing.T) {
	tests := []struct {
		name   string
		clause string
		code   string
	}{
		{"unknown logical", "@requires $x > 0", errors.ErrorUnknownIdentifier},
		{"unknown param", "@requires amont > 0", errors.ErrorUnknownIdentifier},
		{"malformed", "@requires a >", errors.ErrorMalformedClause},
		{"empty", "@ensures", errors.ErrorMalformedClause},
		{"unknown keyword", "@invariant a > 0", errors.ErrorUnknownClauseKeyword},
		{"return in requires", "@requires return > 0", errors.ErrorMisplacedSelector},
		{"old in requires", "@requires old(a) > 0", errors.ErrorMisplacedSelector},
		{"not a formula", "@requires a + 1", errors.ErrorSortMismatch},
		{"bool arithmetic", "@requires (a > 0) + 1 > 0", errors.ErrorSortMismatch},
		{"unknown storage", "@requires State.balance[a] > 0", errors.ErrorUnknownStorageVariable},
		{"key arity", "@requires State.balances > 0", errors.ErrorKeyArityMismatch},
		{"update not equation", "@update State.balances[a]", errors.ErrorMalformedClause},
		{"decl without dollar", "@decl x: U256", errors.ErrorMalformedClause},
		{"decl unknown type", "@decl $x: Money", errors.ErrorUnknownType},
		{"unknown result field", "@ensures return.foo > 0", errors.ErrorUnknownIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := `contract T {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
    }

    /// ` + tt.clause + `
    fn f(a: Address) -> U256 {
        0
    }
}`
			_, errs := parseSpecs(t, source)
			require.NotEmpty(t, errs["f"])
			assert.Equal(t, tt.code, errs["f"][0].Code)
		})
	}
}

func TestDuplicates(t *testing.T) {
	source := `contract T {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
    }

    /// @decl $x: U256
    /// @decl $x: U64
    /// @update State.balances[a] == old + 1
    /// @update State.balances[a] == old + 2
    fn f(a: Address) {
    }
}`
	specs, errs := parseSpecs(t, source)
	require.Len(t, errs["f"], 2)
	assert.Equal(t, errors.ErrorDuplicateDeclaration, errs["f"][0].Code)
	assert.Equal(t, errors.ErrorDuplicateUpdateClause, errs["f"][1].Code)
	assert.Len(t, specs["f"].Updates, 1)
}

func TestUpdateReadsPreState(t *testing.T) {
	source := `contract T {
    #[storage]
    struct State {
        balances: Slots<Address, U256>,
        total: U256,
    }

    /// @update State.balances[a] == old + State.total
    fn f(a: Address) {
    }
}`
	specs, errs := parseSpecs(t, source)
	require.Empty(t, errs["f"])
	assert.Equal(t, "(old# + State.total@pre)", specs["f"].Updates[0].Value.String())
}

func TestLiteral(t *testing.T) {
	term, err := Literal(&ast.LiteralExpr{Value: "0x10"})
	require.Nil(t, err)
	assert.Equal(t, "16", term.String())

	term, err = Literal(&ast.LiteralExpr{Value: "1_000"})
	require.Nil(t, err)
	assert.Equal(t, "1000", term.String())

	_, err = Literal(&ast.LiteralExpr{Value: "\"str\""})
	assert.NotNil(t, err)
}
