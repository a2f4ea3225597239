package parser

import "kanso-verify/internal/ast"

func (p *Parser) parseStruct(attr *ast.Attribute, docs []*ast.DocComment) *ast.Struct {
	startToken := p.consume(STRUCT, "expected 'struct' keyword")

	// Parse struct name
	name, ok := p.consumeIdent("expected struct name")
	if !ok {
		p.synchronize()
		return nil
	}

	// Parse struct body
	items := p.parseStructBody()
	endToken := p.previous() // Set by parseStructBody

	return &ast.Struct{
		Pos:         p.makePos(startToken),
		EndPos:      p.makeEndPos(endToken),
		Attribute:   attr,
		DocComments: docs,
		Name:        name,
		Items:       items,
	}
}

// parseStructBody parses the struct body between { and }
func (p *Parser) parseStructBody() []ast.StructItem {
	p.consume(LEFT_BRACE, "expected '{' to start struct body")
	var items []ast.StructItem

	for !p.check(RIGHT_BRACE) && !p.isAtEnd() {
		if p.check(COMMENT) || p.check(DOC_COMMENT) {
			items = append(items, p.parseComment())
			continue
		}

		field := p.parseStructField()
		if field != nil {
			items = append(items, field)
		} else {
			p.synchronizeUntil(COMMA, RIGHT_BRACE)
			p.match(COMMA)
		}
	}

	p.consume(RIGHT_BRACE, "expected '}' to close struct body")
	return items
}

// parseStructField parses a single field: name: Type, (the comma is optional before '}')
func (p *Parser) parseStructField() *ast.StructField {
	name, ok := p.consumeIdent("expected field name")
	if !ok {
		return nil
	}

	p.consume(COLON, "expected ':' after field name")
	typ := p.parseType()

	end := typ.EndPos
	if p.match(COMMA) {
		end = p.makeEndPos(p.previous())
	} else if !p.check(RIGHT_BRACE) {
		p.errorAtCurrent("expected ',' after struct field")
	}

	return &ast.StructField{
		Pos:          name.Pos,
		EndPos:       end,
		Name:         name,
		VariableType: typ,
	}
}
