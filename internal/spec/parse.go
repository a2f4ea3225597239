package spec

import (
	"strings"

	"github.com/tliron/commonlog"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/storage"
)

var log = commonlog.GetLogger("kanso.verify.spec")

// rawClause is one `@keyword body` line lifted out of a doc comment.
type rawClause struct {
	keyword string
	body    string
	pos     ast.Position // of the keyword's '@'
	origin  ast.Position // of the first byte of body
}

// Parse reads the contract clauses from the function's doc comments. It is
// pure; every problem is returned as a diagnostic and the partial spec is
// still returned.
func Parse(fn *ast.Function, sig *Signature, layout *storage.Layout) (*FunctionSpec, []errors.CompilerError) {
	p := &specParser{
		spec:     &FunctionSpec{Signature: sig},
		layout:   layout,
		logicals: map[string]Binding{},
	}

	clauses := extractClauses(fn.DocComments)

	// Declarations first so that clause order inside the block does not matter.
	for _, c := range clauses {
		if c.keyword == "decl" {
			p.parseDecl(c)
		}
	}

	for _, c := range clauses {
		switch c.keyword {
		case "decl":
		case "requires":
			p.parseRequires(c)
		case "ensures":
			p.parseEnsures(c)
		case "update":
			p.parseUpdate(c)
		default:
			p.errs = append(p.errs, errors.UnknownClauseKeyword(c.keyword, c.pos))
		}
	}

	log.Debugf("%s: %d clauses, %d errors", sig.Name, len(clauses), len(p.errs))
	return p.spec, p.errs
}

// ClauseSite locates one annotation line in a doc comment, whether or not
// it parses.
type ClauseSite struct {
	Keyword string
	Body    string
	Pos     ast.Position // of the '@'
	BodyPos ast.Position
}

// Clauses lists the annotation lines of fn in source order.
func Clauses(fn *ast.Function) []ClauseSite {
	raw := extractClauses(fn.DocComments)
	out := make([]ClauseSite, len(raw))
	for i, c := range raw {
		out[i] = ClauseSite{Keyword: c.keyword, Body: c.body, Pos: c.pos, BodyPos: c.origin}
	}
	return out
}

func extractClauses(docs []*ast.DocComment) []rawClause {
	var out []rawClause
	for _, doc := range docs {
		lineStart := 0
		for i, line := range strings.Split(doc.Text, "\n") {
			if c, ok := clauseInLine(doc, line, i, lineStart); ok {
				out = append(out, c)
			}
			lineStart += len(line) + 1
		}
	}
	return out
}

func clauseInLine(doc *ast.DocComment, line string, lineIndex, lineStart int) (rawClause, bool) {
	at := strings.IndexByte(line, '@')
	if at < 0 || strings.TrimLeft(line[:at], " \t/*") != "" {
		return rawClause{}, false
	}

	end := at + 1
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	bodyStart := end
	for bodyStart < len(line) && (line[bodyStart] == ' ' || line[bodyStart] == '\t') {
		bodyStart++
	}
	body := strings.TrimRight(line[bodyStart:], " \t\r")
	if lineIndex > 0 || strings.HasPrefix(doc.Text, "/**") {
		body = strings.TrimSuffix(strings.TrimRight(body, " \t"), "*/")
	}

	return rawClause{
		keyword: line[at+1 : end],
		body:    strings.TrimSpace(body),
		pos:     docPosition(doc, lineIndex, lineStart, at),
		origin:  docPosition(doc, lineIndex, lineStart, bodyStart),
	}, true
}

func docPosition(doc *ast.DocComment, lineIndex, lineStart, col int) ast.Position {
	pos := ast.Position{
		Filename: doc.Pos.Filename,
		Offset:   doc.Pos.Offset + lineStart + col,
		Line:     doc.Pos.Line + lineIndex,
		Column:   col + 1,
	}
	if lineIndex == 0 {
		pos.Column = doc.Pos.Column + col
	}
	return pos
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

type specParser struct {
	spec     *FunctionSpec
	layout   *storage.Layout
	logicals map[string]Binding
	errs     []errors.CompilerError
}

func (p *specParser) parseDecl(c rawClause) {
	name, typ, parseErrs, scanErrs := parser.ParseDecl(c.origin.Filename, c.body, c.origin)
	if p.syntaxErrors(c, parseErrs, scanErrs) {
		return
	}
	if !strings.HasPrefix(name.Value, "$") {
		p.errs = append(p.errs, errors.MalformedClause("logical variable names start with '$': "+name.Value, name.Pos))
		return
	}
	if _, dup := p.logicals[name.Value]; dup {
		p.errs = append(p.errs, errors.DuplicateDeclaration(name.Value, name.Pos))
		return
	}
	if err := checkScalarType(typ); err != nil {
		p.errs = append(p.errs, *err)
		return
	}

	b := Binding{Name: name.Value, Type: typ.Name.Value, Pos: name.Pos}
	p.logicals[b.Name] = b
	p.spec.Logicals = append(p.spec.Logicals, b)
}

func (p *specParser) parseRequires(c rawClause) {
	expr, ok := p.parseFormula(c)
	if !ok {
		return
	}
	s := p.scope("requires")
	formula := s.boolTerm(expr)
	if s.ok() {
		p.spec.Requires = append(p.spec.Requires, Clause{Text: c.body, Pos: c.pos, Formula: formula})
	}
}

func (p *specParser) parseEnsures(c rawClause) {
	expr, ok := p.parseFormula(c)
	if !ok {
		return
	}
	s := p.scope("ensures")
	s.results = true
	s.oldCall = true
	formula := s.boolTerm(expr)
	if s.ok() {
		p.spec.Ensures = append(p.spec.Ensures, Clause{Text: c.body, Pos: c.pos, Formula: formula})
	}
}

func (p *specParser) parseUpdate(c rawClause) {
	expr, ok := p.parseFormula(c)
	if !ok {
		return
	}

	eq, isEq := expr.(*ast.BinaryExpr)
	if !isEq || eq.Op != "==" {
		p.errs = append(p.errs, errors.MalformedClause("expected `State.field[keys] == expr`", c.origin))
		return
	}
	acc, isStorage, err := p.layout.Resolve(eq.Left)
	if err != nil {
		p.errs = append(p.errs, *err)
		return
	}
	if !isStorage {
		p.errs = append(p.errs, errors.MalformedClause("left side of @update must be a storage application", eq.Left.NodePos()))
		return
	}
	if _, dup := p.spec.UpdateFor(acc.Var.Name); dup {
		p.errs = append(p.errs, errors.DuplicateUpdateClause(acc.Var.Name, c.pos))
		return
	}

	s := p.scope("update")
	s.label = labelPre
	s.oldVar = true
	s.oldCall = true
	u := &Update{Storage: acc.Var.Name, Text: c.body, Pos: c.pos}
	for _, k := range acc.Keys {
		u.Keys = append(u.Keys, s.intTerm(k))
	}
	u.Value = s.intTerm(eq.Right)
	if s.ok() {
		p.spec.Updates = append(p.spec.Updates, u)
	}
}

func (p *specParser) parseFormula(c rawClause) (ast.Expr, bool) {
	if c.body == "" {
		p.errs = append(p.errs, errors.MalformedClause("empty @"+c.keyword+" clause", c.pos))
		return nil, false
	}
	expr, parseErrs, scanErrs := parser.ParseFormula(c.origin.Filename, c.body, c.origin)
	if p.syntaxErrors(c, parseErrs, scanErrs) {
		return nil, false
	}
	return expr, true
}

func (p *specParser) syntaxErrors(c rawClause, parseErrs []parser.ParseError, scanErrs []parser.ScanError) bool {
	for _, e := range scanErrs {
		pos := relocate(c.origin, e.Position)
		p.errs = append(p.errs, errors.MalformedClause(e.Message, pos))
	}
	for _, e := range parseErrs {
		pos := ast.Position{Filename: c.origin.Filename, Line: e.Position.Line, Column: e.Position.Column, Offset: e.Position.Offset}
		p.errs = append(p.errs, errors.MalformedClause(e.Message, pos))
	}
	return len(scanErrs) > 0 || len(parseErrs) > 0
}

// relocate maps a scanner position inside a clause body to the file.
func relocate(origin ast.Position, pos parser.Position) ast.Position {
	out := ast.Position{Filename: origin.Filename, Line: origin.Line + pos.Line - 1, Column: pos.Column, Offset: origin.Offset + pos.Offset}
	if pos.Line == 1 {
		out.Column += origin.Column - 1
	}
	return out
}

func (p *specParser) scope(clause string) *scope {
	return &scope{
		clause:   clause,
		sig:      p.spec.Signature,
		layout:   p.layout,
		logicals: p.logicals,
		label:    labelCurrent,
		errs:     &p.errs,
		before:   len(p.errs),
	}
}
