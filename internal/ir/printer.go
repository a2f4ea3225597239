package ir

import (
	"fmt"
	"strings"

	"kanso-verify/internal/logic"
)

// Printer provides pretty-printing for program trees
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

func (fn *Function) String() string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printFunction(fn *Function) {
	p.writeLine("%s", fn.Signature)
	p.indent++
	p.printNode(fn.Body)
	p.indent--
}

func (p *Printer) printNode(n Node) {
	switch x := n.(type) {
	case *Seq:
		for _, c := range x.Nodes {
			p.printNode(c)
		}
	case *Assign:
		p.writeLine("%s := %s", x.Name, x.Value)
	case *If:
		p.writeLine("if %s", x.Cond)
		p.indent++
		p.printNode(x.Then)
		p.indent--
		if s, ok := x.Else.(*Seq); !ok || len(s.Nodes) > 0 {
			p.writeLine("else")
			p.indent++
			p.printNode(x.Else)
			p.indent--
		}
	case *Read:
		p.writeLine("read %s = %s", x.Name, logic.NewSelect(x.Storage, x.Keys, logic.Current))
	case *Write:
		p.writeLine("write %s = %s", logic.NewSelect(x.Storage, x.Keys, logic.Current), x.Value)
	case *Call:
		p.writeLine("call %s = %s(%s)", tuple(x.Results), x.Callee, joinTerms(x.Args))
	case *Return:
		if x.Frame == "" {
			p.writeLine("return %s", joinTerms(x.Values))
		} else {
			p.writeLine("return@%s %s", x.Frame, joinTerms(x.Values))
		}
	case *Assume:
		p.writeLine("assume %s [%s]", x.Cond, x.Origin)
	case *Assert:
		p.writeLine("assert %s", x.Cond)
	case *Inline:
		p.writeLine("inline %s = %s", tuple(x.Results), x.Frame)
		p.indent++
		p.printNode(x.Body)
		p.indent--
	}
}

func tuple(names []string) string {
	return "(" + strings.Join(names, ", ") + ")"
}

func joinTerms(ts []logic.Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
