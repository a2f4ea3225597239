package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractString(t *testing.T) {
	contract := &Contract{
		Name: Ident{Value: "TestContract"},
		Items: []ContractItem{
			&Function{
				Name: Ident{Value: "test"},
				Body: &FunctionBlock{},
			},
		},
		LeadingComments: []ContractItem{},
	}

	expected := "contract TestContract {\n  fn test() {\n  }\n}"
	assert.Equal(t, expected, contract.String())
}

func TestContractStringWithLeadingComments(t *testing.T) {
	contract := &Contract{
		Name: Ident{Value: "TestContract"},
		LeadingComments: []ContractItem{
			&Comment{Text: "// License comment"},
			&DocComment{Text: "/// Documentation"},
		},
	}

	result := contract.String()

	assert.Contains(t, result, "/// Documentation")
	assert.Less(t, strings.Index(result, "// License comment"), strings.Index(result, "contract TestContract"))
}

func TestLetStmtString(t *testing.T) {
	letStmt := &LetStmt{
		Name: Ident{Value: "balance"},
		Expr: &LiteralExpr{Value: "100"},
	}
	assert.Equal(t, "let balance = 100;", letStmt.String())

	letStmt.Mut = true
	assert.Equal(t, "let mut balance = 100;", letStmt.String())

	destructure := &LetStmt{
		Destructure: []Ident{{Value: "q"}, {Value: "r"}},
		Expr: &CallExpr{
			Callee: &IdentExpr{Name: "divmod"},
			Args:   []Expr{&IdentExpr{Name: "a"}, &IdentExpr{Name: "b"}},
		},
	}
	assert.Equal(t, "let (q, r) = divmod(a, b);", destructure.String())
}

func TestAssignStmtString(t *testing.T) {
	target := &IndexExpr{
		Target: &FieldAccessExpr{Target: &IdentExpr{Name: "State"}, Field: "balances"},
		Index:  &IdentExpr{Name: "owner"},
	}
	tests := []struct {
		op       AssignType
		expected string
	}{
		{ASSIGN, "State.balances[owner] = amount;"},
		{PLUS_ASSIGN, "State.balances[owner] += amount;"},
		{PERCENT_ASSIGN, "State.balances[owner] %= amount;"},
	}
	for _, tt := range tests {
		stmt := &AssignStmt{Target: target, Operator: tt.op, Value: &IdentExpr{Name: "amount"}}
		assert.Equal(t, tt.expected, stmt.String())
	}
	assert.Equal(t, "%", PERCENT_ASSIGN.BinaryOp())
	assert.Equal(t, "", ASSIGN.BinaryOp())
}

func TestFunctionStringWithNamedReturns(t *testing.T) {
	fn := &Function{
		External: true,
		Name:     Ident{Value: "swap"},
		Params: []*FunctionParam{
			{Name: Ident{Value: "amount"}, Type: &VariableType{Name: Ident{Value: "U256"}}},
		},
		Return: &VariableType{TupleElements: []*VariableType{
			{Name: Ident{Value: "U256"}},
			{Name: Ident{Value: "U256"}},
		}},
		ReturnNames: []Ident{{Value: "out"}, {Value: "rem"}},
		Reads:       []Ident{{Value: "State"}},
		Body: &FunctionBlock{
			Items: []FunctionBlockItem{
				&RequireStmt{Args: []Expr{&BinaryExpr{Op: ">", Left: &IdentExpr{Name: "amount"}, Right: &LiteralExpr{Value: "0"}}}},
			},
		},
	}

	result := fn.String()
	assert.Contains(t, result, "ext fn swap(amount: U256) -> (out: U256, rem: U256) reads(State) {")
	assert.Contains(t, result, "require!((amount > 0));")
}

func TestIfStmtString(t *testing.T) {
	stmt := &IfStmt{
		Condition: &IdentExpr{Name: "flag"},
		ThenBlock: &FunctionBlock{Items: []FunctionBlockItem{
			&AssertStmt{Args: []Expr{&IdentExpr{Name: "flag"}}},
		}},
		ElseBlock: &FunctionBlock{TailExpr: &ExprStmt{Expr: &LiteralExpr{Value: "0"}}},
	}
	assert.Equal(t, "if flag {\n  assert!(flag);\n} else {\n  0\n}", stmt.String())
}

func TestContractHelpers(t *testing.T) {
	state := &Struct{
		Attribute: &Attribute{Name: "storage"},
		Name:      Ident{Value: "State"},
		Items: []StructItem{
			&Comment{Text: "// balances"},
			&StructField{Name: Ident{Value: "balances"}, VariableType: &VariableType{Name: Ident{Value: "U256"}}},
		},
	}
	plain := &Struct{Name: Ident{Value: "Pair"}}
	fn := &Function{Name: Ident{Value: "f"}}
	contract := &Contract{Items: []ContractItem{state, plain, fn}}

	assert.Equal(t, []*Struct{state}, contract.StorageStructs())
	assert.Equal(t, []*Function{fn}, contract.Functions())
	assert.Len(t, state.Fields(), 1)
}

func TestNodeTypeNames(t *testing.T) {
	assert.Equal(t, "tuple", (&TupleExpr{}).NodeType().String())
	assert.Equal(t, "require!", (&RequireStmt{}).NodeType().String())
	assert.Equal(t, "illegal node", NodeType(-1).String())
	assert.Equal(t, "illegal node", NodeType(1000).String())
}
