package ast

// Contract represents a Kanso contract (the entire source file)
// Example: "contract Dex { #[storage] struct State { ... } ext fn swap(...) { ... } }"
type Contract struct {
	Pos             Position
	EndPos          Position
	LeadingComments []ContractItem // Comments before the contract declaration
	Name            Ident
	Items           []ContractItem // Items inside the contract block
}

// Position tracks location information for error reporting and tooling
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

// Ident represents any identifier like variable names, type names, etc.
// Example: "Dex", "balances", "owner", "$old_balance"
type Ident struct {
	Pos    Position
	EndPos Position
	Value  string
}

// BadContractItem represents parse errors in contract-level items
type BadContractItem struct {
	Bad BadNode
}

// BadExpr represents parse errors in expressions
type BadExpr struct {
	Bad BadNode
}

// BadNode contains error information for failed parsing
type BadNode struct {
	Pos     Position
	EndPos  Position
	Message string
}

// DocComment represents documentation comments. Verification clauses live here.
// Example: "/// @requires amount > 0"
type DocComment struct {
	Pos    Position
	EndPos Position
	Text   string
}

// Comment represents regular comments
// Example: "// This is a comment"
type Comment struct {
	Pos    Position
	EndPos Position
	Text   string
}

// Attribute represents attributes like #[storage], #[create]
type Attribute struct {
	Pos    Position
	EndPos Position
	Name   string
}

// Use represents import statements
// Example: "use std::evm::{sender, emit};"
type Use struct {
	Pos     Position
	EndPos  Position
	Path    []Ident
	Imports []Ident
}

// Struct represents struct declarations
// Example: "struct State { balances: Slots<Address, U256>, total_supply: U256 }"
type Struct struct {
	Pos         Position
	EndPos      Position
	Attribute   *Attribute
	DocComments []*DocComment
	Name        Ident
	Items       []StructItem
}

// StructField represents individual fields within a struct
// Example: "balances: Slots<Address, U256>", "total_supply: U256"
type StructField struct {
	Pos          Position
	EndPos       Position
	Name         Ident
	VariableType *VariableType
}

// VariableType represents type specifications
// Example: "U256", "Address", "Slots<Address, U256>", "(Address, U256)"
type VariableType struct {
	Pos           Position
	EndPos        Position
	Name          Ident
	Generics      []*VariableType
	TupleElements []*VariableType // For tuple types like (Address, U256)
}

// Function represents function declarations
// Example: "ext fn swap(amount: U256) -> (out: U256, rem: U256) reads(State) { ... }"
type Function struct {
	Pos         Position
	EndPos      Position
	Attribute   *Attribute
	DocComments []*DocComment
	External    bool
	Name        Ident
	Params      []*FunctionParam
	Return      *VariableType
	ReturnNames []Ident // parallel to Return.TupleElements; empty Value for unnamed results
	Reads       []Ident
	Writes      []Ident
	Body        *FunctionBlock
}

// FunctionParam represents function parameters
// Example: "owner: Address", "amount: U256"
type FunctionParam struct {
	Pos    Position
	EndPos Position
	Name   Ident
	Type   *VariableType
}

// FunctionBlock represents the body of a function or branch
// Example: "{ let balance = State.balances[owner]; balance }"
type FunctionBlock struct {
	Pos      Position
	EndPos   Position
	Items    []FunctionBlockItem
	TailExpr *ExprStmt // optional final expr without semicolon
}

// ExprStmt represents expression statements
// Example: "do_transfer(from, to, amount);", "State.balances[owner]"
type ExprStmt struct {
	Pos       Position
	EndPos    Position
	Expr      Expr
	Semicolon bool // true if a `;` was present
}

// ReturnStmt represents return statements
// Example: "return balance;", "return (q, r);", "return;"
type ReturnStmt struct {
	Pos    Position
	EndPos Position
	Value  Expr // nil if plain `return;`
}

// LetStmt represents variable declarations
// Example: "let balance = State.balances[owner];", "let (q, r) = divmod(a, b);"
type LetStmt struct {
	Pos         Position
	EndPos      Position
	Mut         bool // true for "let mut"
	Name        Ident
	Destructure []Ident       // non-empty for tuple patterns; Name is then unused
	Type        *VariableType // optional annotation, "let x: U64 = ..."
	Expr        Expr
}

// AssignStmt represents assignment statements
// Example: "State.balances[owner] = amount;", "total += amount;"
type AssignStmt struct {
	Pos      Position
	EndPos   Position
	Target   Expr
	Operator AssignType
	Value    Expr
}

// RequireStmt represents reverting guards
// Example: "require!(amount > 0, errors::InvalidAmount);"
type RequireStmt struct {
	Pos    Position
	EndPos Position
	Args   []Expr
}

// AssertStmt represents in-body proof obligations
// Example: "assert!(balance >= amount);"
type AssertStmt struct {
	Pos    Position
	EndPos Position
	Args   []Expr
}

// IfStmt represents conditional branches; "else if" is an ElseBlock holding a single IfStmt
type IfStmt struct {
	Pos       Position
	EndPos    Position
	Condition Expr
	ThenBlock *FunctionBlock
	ElseBlock *FunctionBlock
}

// BinaryExpr represents binary operations
// Example: "amount + fee", "balance >= amount"
type BinaryExpr struct {
	Pos    Position
	EndPos Position
	Op     string
	Left   Expr
	Right  Expr
}

// UnaryExpr represents unary operations
// Example: "-amount", "!condition"
type UnaryExpr struct {
	Pos    Position
	EndPos Position
	Op     string
	Value  Expr
}

// CallExpr represents function calls
// Example: "do_transfer(from, to, amount)", "old(State.balances[a])"
type CallExpr struct {
	Pos    Position
	EndPos Position
	Callee Expr
	Args   []Expr
}

// FieldAccessExpr represents field access
// Example: "State.balances", "return.amount", "return.0"
type FieldAccessExpr struct {
	Pos    Position
	EndPos Position
	Target Expr
	Field  string
}

// IndexExpr represents map indexing
// Example: "State.balances[owner]", "State.allowances[(from, spender)]"
type IndexExpr struct {
	Pos    Position
	EndPos Position
	Target Expr
	Index  Expr
}

// LiteralExpr represents literal values
// Example: "100", "0x42", "true"
type LiteralExpr struct {
	Pos    Position
	EndPos Position
	Value  string
}

// IdentExpr represents simple identifiers, including `$` logical variables
// Example: "amount", "State", "$old_balance", "return"
type IdentExpr struct {
	Pos    Position
	EndPos Position
	Name   string
}

// CalleePath represents module paths and qualified names
// Example: "errors::InvalidAmount", "std::evm::sender"
type CalleePath struct {
	Pos    Position
	EndPos Position
	Parts  []Ident
}

// ParenExpr represents parenthesized expressions
// Example: "(amount + fee)"
type ParenExpr struct {
	Pos    Position
	EndPos Position
	Value  Expr
}

// TupleExpr represents tuple expressions
// Example: "(from, spender)", "(q, r)"
type TupleExpr struct {
	Pos      Position
	EndPos   Position
	Elements []Expr
}

// Functions returns the functions declared in the contract in source order.
func (c *Contract) Functions() []*Function {
	var fns []*Function
	for _, item := range c.Items {
		if fn, ok := item.(*Function); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// StorageStructs returns the structs carrying the #[storage] attribute.
func (c *Contract) StorageStructs() []*Struct {
	var out []*Struct
	for _, item := range c.Items {
		if s, ok := item.(*Struct); ok && s.Attribute != nil && s.Attribute.Name == "storage" {
			out = append(out, s)
		}
	}
	return out
}

// Fields returns the struct's fields, skipping comments.
func (s *Struct) Fields() []*StructField {
	var out []*StructField
	for _, item := range s.Items {
		if f, ok := item.(*StructField); ok {
			out = append(out, f)
		}
	}
	return out
}
