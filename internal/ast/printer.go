package ast

import (
	"fmt"
	"strings"
)

func (c *Contract) String() string {
	var b strings.Builder

	// Output leading comments first (before contract declaration)
	for _, comment := range c.LeadingComments {
		b.WriteString(comment.String())
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("contract %s {\n", c.Name.Value))
	for _, item := range c.Items {
		b.WriteString("  " + strings.ReplaceAll(item.String(), "\n", "\n  ") + "\n")
	}
	b.WriteString("}")

	return b.String()
}

func (dc *DocComment) String() string {
	return dc.Text
}

func (c *Comment) String() string {
	return c.Text
}

func (bci *BadContractItem) String() string {
	return fmt.Sprintf("BadContractItem: %s", bci.Bad.Message)
}

func (be *BadExpr) String() string {
	return fmt.Sprintf("BadExpr: %s", be.Bad.Message)
}

func (a *Attribute) String() string {
	return fmt.Sprintf("#[%s]", a.Name)
}

func (u *Use) String() string {
	var b strings.Builder

	b.WriteString("use ")
	b.WriteString(joinIdents(u.Path, "::"))
	if len(u.Imports) > 0 {
		b.WriteString("::{")
		b.WriteString(joinIdents(u.Imports, ", "))
		b.WriteString("}")
	}

	return b.String() + ";"
}

func (s *Struct) String() string {
	var b strings.Builder

	if s.Attribute != nil {
		b.WriteString(s.Attribute.String())
		b.WriteString("\n")
	}

	for _, dc := range s.DocComments {
		b.WriteString(dc.String())
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("struct %s {", s.Name.Value))
	for i, field := range s.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(field.String())
	}
	b.WriteString("}")
	return b.String()
}

func (sf *StructField) String() string {
	return fmt.Sprintf("%s: %s", sf.Name.Value, sf.VariableType.String())
}

func (f *Function) String() string {
	var b strings.Builder

	if f.Attribute != nil {
		b.WriteString(f.Attribute.String())
		b.WriteString("\n")
	}

	for _, dc := range f.DocComments {
		b.WriteString(dc.String())
		b.WriteString("\n")
	}

	if f.External {
		b.WriteString("ext ")
	}

	b.WriteString("fn ")
	b.WriteString(f.Name.Value)
	b.WriteString("(")
	for i, param := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(param.String())
	}
	b.WriteString(")")

	if f.Return != nil {
		b.WriteString(" -> ")
		b.WriteString(f.returnString())
	}

	if len(f.Reads) > 0 {
		b.WriteString(" reads(" + joinIdents(f.Reads, ", ") + ")")
	}

	if len(f.Writes) > 0 {
		b.WriteString(" writes(" + joinIdents(f.Writes, ", ") + ")")
	}

	b.WriteString(" {\n")
	if f.Body != nil {
		b.WriteString(f.Body.String())
	}
	b.WriteString("}")
	return b.String()
}

func (f *Function) returnString() string {
	if len(f.ReturnNames) == 0 || len(f.ReturnNames) != len(f.Return.TupleElements) {
		return f.Return.String()
	}
	parts := make([]string, len(f.ReturnNames))
	for i, name := range f.ReturnNames {
		if name.Value == "" {
			parts[i] = f.Return.TupleElements[i].String()
			continue
		}
		parts[i] = name.Value + ": " + f.Return.TupleElements[i].String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (fp *FunctionParam) String() string {
	return fmt.Sprintf("%s: %s", fp.Name.Value, fp.Type.String())
}

func (vt *VariableType) String() string {
	var b strings.Builder
	if len(vt.TupleElements) > 0 {
		// Handle tuple types like (Address, U256)
		b.WriteString("(")
		for i, element := range vt.TupleElements {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(element.String())
		}
		b.WriteString(")")
	} else {
		b.WriteString(vt.Name.Value)
		if len(vt.Generics) > 0 {
			b.WriteString("<")
			for i, g := range vt.Generics {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(g.String())
			}
			b.WriteString(">")
		}
	}
	return b.String()
}

func (b *FunctionBlock) String() string {
	return b.StringIndented("  ")
}

func (b *FunctionBlock) StringIndented(indent string) string {
	var out strings.Builder
	for _, item := range b.Items {
		out.WriteString(indent)
		out.WriteString(strings.ReplaceAll(item.String(), "\n", "\n"+indent))
		out.WriteByte('\n')
	}
	if b.TailExpr != nil {
		out.WriteString(indent)
		out.WriteString(b.TailExpr.String())
		out.WriteByte('\n')
	}
	return out.String()
}

func (e *ExprStmt) String() string {
	s := e.Expr.String()
	if e.Semicolon {
		return s + ";"
	}
	return s
}

func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "return;"
	}
	return fmt.Sprintf("return %s;", r.Value.String())
}

func (l *LetStmt) String() string {
	name := l.Name.Value
	if len(l.Destructure) > 0 {
		name = "(" + joinIdents(l.Destructure, ", ") + ")"
	}
	if l.Type != nil {
		name += ": " + l.Type.String()
	}
	if l.Mut {
		return fmt.Sprintf("let mut %s = %s;", name, l.Expr.String())
	}
	return fmt.Sprintf("let %s = %s;", name, l.Expr.String())
}

func (a *AssignStmt) String() string {
	return fmt.Sprintf("%s %s %s;", a.Target.String(), a.Operator.String(), a.Value.String())
}

func (r *RequireStmt) String() string {
	return fmt.Sprintf("require!(%s);", joinExprs(r.Args))
}

func (a *AssertStmt) String() string {
	return fmt.Sprintf("assert!(%s);", joinExprs(a.Args))
}

func (i *IfStmt) String() string {
	var result strings.Builder

	// Format: if condition {\n  statements\n}
	result.WriteString(fmt.Sprintf("if %s {\n", i.Condition.String()))
	result.WriteString(i.ThenBlock.StringIndented("  "))
	result.WriteString("}")

	if i.ElseBlock != nil {
		result.WriteString(" else {\n")
		result.WriteString(i.ElseBlock.StringIndented("  "))
		result.WriteString("}")
	}

	return result.String()
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}

func (u *UnaryExpr) String() string {
	return fmt.Sprintf("(%s%s)", u.Op, u.Value.String())
}

func (c *CallExpr) String() string {
	return fmt.Sprintf("%s(%s)", c.Callee.String(), joinExprs(c.Args))
}

func (f *FieldAccessExpr) String() string {
	return fmt.Sprintf("%s.%s", f.Target.String(), f.Field)
}

func (i *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", i.Target.String(), i.Index.String())
}

func (l *LiteralExpr) String() string {
	return l.Value
}

func (i *IdentExpr) String() string {
	return i.Name
}

func (c *CalleePath) String() string {
	return joinIdents(c.Parts, "::")
}

func (p *ParenExpr) String() string {
	return fmt.Sprintf("(%s)", p.Value.String())
}

func (t *TupleExpr) String() string {
	return "(" + joinExprs(t.Elements) + ")"
}

func (i *Ident) String() string {
	return i.Value
}

func joinIdents(ids []Ident, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.Value
	}
	return strings.Join(parts, sep)
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
