// Package ir lowers function bodies into a small tree-shaped program model
// for verification: assignments, branches, sequences, storage reads and
// writes, calls and returns. Expressions are logic terms.
package ir

import (
	"kanso-verify/internal/ast"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/spec"
)

// Node is one program tree node.
type Node interface {
	NodePos() ast.Position
	isNode()
}

// Assign binds a local to a value.
type Assign struct {
	Name  string
	Value logic.Term
	Pos   ast.Position
}

// If forks execution on a Bool condition. Else is never nil.
type If struct {
	Cond logic.Term
	Then Node
	Else Node
	Pos  ast.Position
}

type Seq struct {
	Nodes []Node
	Pos   ast.Position
}

// Read binds Name to the current value of Storage at Keys.
type Read struct {
	Name    string
	Storage string
	Keys    []logic.Term
	Pos     ast.Position
}

// Write is a point update of Storage at Keys.
type Write struct {
	Storage string
	Keys    []logic.Term
	Value   logic.Term
	Pos     ast.Position
}

// Call invokes a contracted function. Results are bound positionally.
type Call struct {
	Callee  string
	Args    []logic.Term
	Results []string
	Pos     ast.Position
}

// Return leaves the frame it belongs to. Frame is empty for the function
// being verified and the inline frame id otherwise.
type Return struct {
	Values []logic.Term
	Fields []string
	Frame  string
	Pos    ast.Position
}

// Assume restricts the continuing path. Origin says where it came from:
// "require", "overflow" or "division".
type Assume struct {
	Cond   logic.Term
	Origin string
	Pos    ast.Position
}

// Assert is an in-body proof obligation.
type Assert struct {
	Cond logic.Term
	Pos  ast.Position
}

// Inline is the expanded body of a call to a function without a contract.
// Returns in Body tagged with Frame bind Results and resume after the node.
type Inline struct {
	Callee  string
	Frame   string
	Body    Node
	Results []string
	Pos     ast.Position
}

func (n *Assign) NodePos() ast.Position { return n.Pos }
func (n *If) NodePos() ast.Position     { return n.Pos }
func (n *Seq) NodePos() ast.Position    { return n.Pos }
func (n *Read) NodePos() ast.Position   { return n.Pos }
func (n *Write) NodePos() ast.Position  { return n.Pos }
func (n *Call) NodePos() ast.Position   { return n.Pos }
func (n *Return) NodePos() ast.Position { return n.Pos }
func (n *Assume) NodePos() ast.Position { return n.Pos }
func (n *Assert) NodePos() ast.Position { return n.Pos }
func (n *Inline) NodePos() ast.Position { return n.Pos }

func (*Assign) isNode() {}
func (*If) isNode()     {}
func (*Seq) isNode()    {}
func (*Read) isNode()   {}
func (*Write) isNode()  {}
func (*Call) isNode()   {}
func (*Return) isNode() {}
func (*Assume) isNode() {}
func (*Assert) isNode() {}
func (*Inline) isNode() {}

// CallSite is one syntactic call edge, contracted or not.
type CallSite struct {
	Callee string
	Pos    ast.Position
}

// Function is the lowered body of one function.
type Function struct {
	Name      string
	Signature *spec.Signature
	Body      Node
	Calls     []CallSite // source order
	Pos       ast.Position
}
