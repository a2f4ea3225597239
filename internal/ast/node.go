package ast

// Node is implemented by every syntax tree element.
type Node interface {
	NodePos() Position
	NodeEndPos() Position
	NodeType() NodeType
	String() string
}

// ContractItem is anything that may appear at contract level.
type ContractItem interface {
	Node
	isContractItem()
}

// StructItem is a struct field or a comment between fields.
type StructItem interface {
	Node
	isStructItem()
}

// FunctionBlockItem is a statement, or a comment between statements.
type FunctionBlockItem interface {
	Node
	isBlockItem()
}

type Expr interface {
	Node
	isExpr()
}

type NodeType int

const (
	ILLEGAL NodeType = iota
	BAD_CONTRACT_ITEM
	BAD_EXPR
	DOC_COMMENT
	COMMENT
	ATTRIBUTE
	USE
	STRUCT
	STRUCT_FIELD
	TYPE
	IDENT
	FUNCTION
	FUNCTION_PARAM
	FUNCTION_BLOCK
	EXPR_STMT
	RETURN_STMT
	LET_STMT
	ASSIGN_STMT
	REQUIRE_STMT
	ASSERT_STMT
	IF_STMT
	BINARY_EXPR
	UNARY_EXPR
	CALL_EXPR
	FIELD_ACCESS_EXPR
	INDEX_EXPR
	LITERAL_EXPR
	IDENT_EXPR
	CALLEE_PATH
	PAREN_EXPR
	TUPLE_EXPR
)

var nodeTypeNames = [...]string{
	ILLEGAL:           "illegal node",
	BAD_CONTRACT_ITEM: "malformed item",
	BAD_EXPR:          "malformed expression",
	DOC_COMMENT:       "doc comment",
	COMMENT:           "comment",
	ATTRIBUTE:         "attribute",
	USE:               "use declaration",
	STRUCT:            "struct",
	STRUCT_FIELD:      "struct field",
	TYPE:              "type",
	IDENT:             "identifier",
	FUNCTION:          "function",
	FUNCTION_PARAM:    "parameter",
	FUNCTION_BLOCK:    "block",
	EXPR_STMT:         "expression statement",
	RETURN_STMT:       "return statement",
	LET_STMT:          "let statement",
	ASSIGN_STMT:       "assignment",
	REQUIRE_STMT:      "require!",
	ASSERT_STMT:       "assert!",
	IF_STMT:           "if statement",
	BINARY_EXPR:       "binary expression",
	UNARY_EXPR:        "unary expression",
	CALL_EXPR:         "call",
	FIELD_ACCESS_EXPR: "field access",
	INDEX_EXPR:        "index expression",
	LITERAL_EXPR:      "literal",
	IDENT_EXPR:        "identifier",
	CALLEE_PATH:       "path",
	PAREN_EXPR:        "parenthesized expression",
	TUPLE_EXPR:        "tuple",
}

// String names the node kind for diagnostics, e.g. "tuple".
func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return nodeTypeNames[ILLEGAL]
}

func (*BadContractItem) isContractItem() {}
func (*DocComment) isContractItem()      {}
func (*Comment) isContractItem()         {}
func (*Use) isContractItem()             {}
func (*Struct) isContractItem()          {}
func (*Function) isContractItem()        {}

func (*Comment) isStructItem()     {}
func (*StructField) isStructItem() {}

func (*LetStmt) isBlockItem()     {}
func (*AssignStmt) isBlockItem()  {}
func (*RequireStmt) isBlockItem() {}
func (*AssertStmt) isBlockItem()  {}
func (*IfStmt) isBlockItem()      {}
func (*ReturnStmt) isBlockItem()  {}
func (*ExprStmt) isBlockItem()    {}
func (*Comment) isBlockItem()     {}

func (*BadExpr) isExpr()         {}
func (*BinaryExpr) isExpr()      {}
func (*UnaryExpr) isExpr()       {}
func (*CallExpr) isExpr()        {}
func (*FieldAccessExpr) isExpr() {}
func (*IndexExpr) isExpr()       {}
func (*LiteralExpr) isExpr()     {}
func (*IdentExpr) isExpr()       {}
func (*CalleePath) isExpr()      {}
func (*ParenExpr) isExpr()       {}
func (*TupleExpr) isExpr()       {}

func (bci *BadContractItem) NodePos() Position    { return bci.Bad.Pos }
func (bci *BadContractItem) NodeEndPos() Position { return bci.Bad.EndPos }
func (*BadContractItem) NodeType() NodeType       { return BAD_CONTRACT_ITEM }

func (be *BadExpr) NodePos() Position    { return be.Bad.Pos }
func (be *BadExpr) NodeEndPos() Position { return be.Bad.EndPos }
func (*BadExpr) NodeType() NodeType      { return BAD_EXPR }

func (i *Ident) NodePos() Position    { return i.Pos }
func (i *Ident) NodeEndPos() Position { return i.EndPos }
func (*Ident) NodeType() NodeType     { return IDENT }

func (dc *DocComment) NodePos() Position    { return dc.Pos }
func (dc *DocComment) NodeEndPos() Position { return dc.EndPos }
func (*DocComment) NodeType() NodeType      { return DOC_COMMENT }

func (c *Comment) NodePos() Position    { return c.Pos }
func (c *Comment) NodeEndPos() Position { return c.EndPos }
func (*Comment) NodeType() NodeType     { return COMMENT }

func (a *Attribute) NodePos() Position    { return a.Pos }
func (a *Attribute) NodeEndPos() Position { return a.EndPos }
func (*Attribute) NodeType() NodeType     { return ATTRIBUTE }

func (u *Use) NodePos() Position    { return u.Pos }
func (u *Use) NodeEndPos() Position { return u.EndPos }
func (*Use) NodeType() NodeType     { return USE }

func (s *Struct) NodePos() Position    { return s.Pos }
func (s *Struct) NodeEndPos() Position { return s.EndPos }
func (*Struct) NodeType() NodeType     { return STRUCT }

func (sf *StructField) NodePos() Position    { return sf.Pos }
func (sf *StructField) NodeEndPos() Position { return sf.EndPos }
func (*StructField) NodeType() NodeType      { return STRUCT_FIELD }

func (t *VariableType) NodePos() Position    { return t.Pos }
func (t *VariableType) NodeEndPos() Position { return t.EndPos }
func (*VariableType) NodeType() NodeType     { return TYPE }

func (f *Function) NodePos() Position    { return f.Pos }
func (f *Function) NodeEndPos() Position { return f.EndPos }
func (*Function) NodeType() NodeType     { return FUNCTION }

func (fp *FunctionParam) NodePos() Position    { return fp.Pos }
func (fp *FunctionParam) NodeEndPos() Position { return fp.EndPos }
func (*FunctionParam) NodeType() NodeType      { return FUNCTION_PARAM }

func (b *FunctionBlock) NodePos() Position    { return b.Pos }
func (b *FunctionBlock) NodeEndPos() Position { return b.EndPos }
func (*FunctionBlock) NodeType() NodeType     { return FUNCTION_BLOCK }

func (e *ExprStmt) NodePos() Position    { return e.Pos }
func (e *ExprStmt) NodeEndPos() Position { return e.EndPos }
func (*ExprStmt) NodeType() NodeType     { return EXPR_STMT }

func (r *ReturnStmt) NodePos() Position    { return r.Pos }
func (r *ReturnStmt) NodeEndPos() Position { return r.EndPos }
func (*ReturnStmt) NodeType() NodeType     { return RETURN_STMT }

func (l *LetStmt) NodePos() Position    { return l.Pos }
func (l *LetStmt) NodeEndPos() Position { return l.EndPos }
func (*LetStmt) NodeType() NodeType     { return LET_STMT }

func (a *AssignStmt) NodePos() Position    { return a.Pos }
func (a *AssignStmt) NodeEndPos() Position { return a.EndPos }
func (*AssignStmt) NodeType() NodeType     { return ASSIGN_STMT }

func (r *RequireStmt) NodePos() Position    { return r.Pos }
func (r *RequireStmt) NodeEndPos() Position { return r.EndPos }
func (*RequireStmt) NodeType() NodeType     { return REQUIRE_STMT }

func (a *AssertStmt) NodePos() Position    { return a.Pos }
func (a *AssertStmt) NodeEndPos() Position { return a.EndPos }
func (*AssertStmt) NodeType() NodeType     { return ASSERT_STMT }

func (i *IfStmt) NodePos() Position    { return i.Pos }
func (i *IfStmt) NodeEndPos() Position { return i.EndPos }
func (*IfStmt) NodeType() NodeType     { return IF_STMT }

func (b *BinaryExpr) NodePos() Position    { return b.Pos }
func (b *BinaryExpr) NodeEndPos() Position { return b.EndPos }
func (*BinaryExpr) NodeType() NodeType     { return BINARY_EXPR }

func (u *UnaryExpr) NodePos() Position    { return u.Pos }
func (u *UnaryExpr) NodeEndPos() Position { return u.EndPos }
func (*UnaryExpr) NodeType() NodeType     { return UNARY_EXPR }

func (c *CallExpr) NodePos() Position    { return c.Pos }
func (c *CallExpr) NodeEndPos() Position { return c.EndPos }
func (*CallExpr) NodeType() NodeType     { return CALL_EXPR }

func (f *FieldAccessExpr) NodePos() Position    { return f.Pos }
func (f *FieldAccessExpr) NodeEndPos() Position { return f.EndPos }
func (*FieldAccessExpr) NodeType() NodeType     { return FIELD_ACCESS_EXPR }

func (i *IndexExpr) NodePos() Position    { return i.Pos }
func (i *IndexExpr) NodeEndPos() Position { return i.EndPos }
func (*IndexExpr) NodeType() NodeType     { return INDEX_EXPR }

func (l *LiteralExpr) NodePos() Position    { return l.Pos }
func (l *LiteralExpr) NodeEndPos() Position { return l.EndPos }
func (*LiteralExpr) NodeType() NodeType     { return LITERAL_EXPR }

func (i *IdentExpr) NodePos() Position    { return i.Pos }
func (i *IdentExpr) NodeEndPos() Position { return i.EndPos }
func (*IdentExpr) NodeType() NodeType     { return IDENT_EXPR }

func (c *CalleePath) NodePos() Position    { return c.Pos }
func (c *CalleePath) NodeEndPos() Position { return c.EndPos }
func (*CalleePath) NodeType() NodeType     { return CALLEE_PATH }

func (p *ParenExpr) NodePos() Position    { return p.Pos }
func (p *ParenExpr) NodeEndPos() Position { return p.EndPos }
func (*ParenExpr) NodeType() NodeType     { return PAREN_EXPR }

func (t *TupleExpr) NodePos() Position    { return t.Pos }
func (t *TupleExpr) NodeEndPos() Position { return t.EndPos }
func (*TupleExpr) NodeType() NodeType     { return TUPLE_EXPR }
