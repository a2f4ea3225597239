package parser

import (
	"fmt"

	"kanso-verify/internal/ast"
)

type Parser struct {
	filename string
	tokens   []Token
	current  int
	errors   []ParseError

	// formula enables clause-only syntax: `return` as a value and
	// positional tuple fields such as `return.0`.
	formula bool
	origin  *ast.Position
}

type ParseError struct {
	Message  string
	Position Position
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
}

func (e ScanError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
}

func NewParser(filename string, tokens []Token) *Parser {
	return &Parser{
		filename: filename,
		tokens:   tokens,
	}
}

func (p *Parser) Errors() []ParseError {
	return p.errors
}

// ParseContract parses a whole source file. Leading comments before the
// contract keyword are preserved on the contract node.
func (p *Parser) ParseContract() *ast.Contract {
	var leading []ast.ContractItem
	for p.check(COMMENT) || p.check(BLOCK_COMMENT) || p.check(DOC_COMMENT) {
		leading = append(leading, p.parseCommentItem())
	}

	start := p.consume(CONTRACT, "expected 'contract' keyword")
	if start.Type == ILLEGAL {
		return nil
	}

	name, ok := p.consumeIdent("expected contract name")
	if !ok {
		return nil
	}

	p.consume(LEFT_BRACE, "expected '{' after contract name")
	items := p.parseContractItems()
	end := p.consume(RIGHT_BRACE, "expected '}' to close contract")

	if !p.isAtEnd() {
		p.errorAtCurrent("unexpected tokens after contract body")
	}

	return &ast.Contract{
		Pos:             p.makePos(start),
		EndPos:          p.makeEndPos(end),
		LeadingComments: leading,
		Name:            name,
		Items:           items,
	}
}

func (p *Parser) parseContractItems() []ast.ContractItem {
	var items []ast.ContractItem
	var docs []*ast.DocComment
	var attr *ast.Attribute

	flushDocs := func() {
		for _, d := range docs {
			items = append(items, d)
		}
		docs = nil
	}

	for !p.check(RIGHT_BRACE) && !p.isAtEnd() {
		switch p.peek().Type {
		case DOC_COMMENT:
			tok := p.advance()
			docs = append(docs, &ast.DocComment{
				Pos:    p.makePos(tok),
				EndPos: p.makeEndPos(tok),
				Text:   tok.Lexeme,
			})
		case COMMENT, BLOCK_COMMENT:
			items = append(items, p.parseCommentItem())
		case POUND:
			attr = p.parseAttribute()
		case USE:
			flushDocs()
			if use := p.parseUse(); use != nil {
				items = append(items, use)
			}
		case STRUCT:
			if s := p.parseStruct(attr, docs); s != nil {
				items = append(items, s)
			}
			attr, docs = nil, nil
		case EXT, FN:
			if fn := p.parseFunction(attr, docs); fn != nil {
				items = append(items, fn)
			}
			attr, docs = nil, nil
		default:
			tok := p.peek()
			p.errorAtCurrent("expected function, struct or use declaration")
			items = append(items, &ast.BadContractItem{Bad: ast.BadNode{
				Pos:     p.makePos(tok),
				EndPos:  p.makeEndPos(tok),
				Message: "unexpected token: " + tok.Lexeme,
			}})
			p.synchronize()
		}
	}
	flushDocs()

	return items
}

func (p *Parser) parseCommentItem() ast.ContractItem {
	tok := p.advance()
	if tok.Type == DOC_COMMENT {
		return &ast.DocComment{Pos: p.makePos(tok), EndPos: p.makeEndPos(tok), Text: tok.Lexeme}
	}
	return &ast.Comment{Pos: p.makePos(tok), EndPos: p.makeEndPos(tok), Text: tok.Lexeme}
}

func (p *Parser) parseComment() *ast.Comment {
	tok := p.advance()
	return &ast.Comment{Pos: p.makePos(tok), EndPos: p.makeEndPos(tok), Text: tok.Lexeme}
}

// parseAttribute parses `#[name]`.
func (p *Parser) parseAttribute() *ast.Attribute {
	start := p.consume(POUND, "expected '#'")
	p.consume(LEFT_BRACKET, "expected '[' after '#'")
	name, _ := p.consumeIdent("expected attribute name")
	end := p.consume(RIGHT_BRACKET, "expected ']' to close attribute")
	return &ast.Attribute{
		Pos:    p.makePos(start),
		EndPos: p.makeEndPos(end),
		Name:   name.Value,
	}
}

func (p *Parser) parseUse() *ast.Use {
	start := p.consume(USE, "expected 'use' keyword")
	var path, imports []ast.Ident

	for {
		ident, ok := p.consumeIdent("expected namespace identifier in use statement")
		if !ok {
			p.synchronize()
			return nil
		}
		path = append(path, ident)
		if !p.match(DOUBLE_COLON) {
			break
		}
		if p.match(LEFT_BRACE) {
			imports = p.parseIdentifierList()
			p.consume(RIGHT_BRACE, "expected '}' to close import list")
			break
		}
	}

	end := p.consume(SEMICOLON, "expected ';' after use statement")
	return &ast.Use{
		Pos:     p.makePos(start),
		EndPos:  p.makeEndPos(end),
		Path:    path,
		Imports: imports,
	}
}
