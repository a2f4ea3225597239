package parser

import "kanso-verify/internal/ast"

func (p *Parser) parseFunction(attr *ast.Attribute, docs []*ast.DocComment) *ast.Function {
	startToken := p.peek()
	external := p.match(EXT)
	p.consume(FN, "expected 'fn' keyword")

	// Parse function name
	name, ok := p.consumeIdent("expected function name")
	if !ok {
		p.synchronize()
		return nil
	}

	// Parse parameters
	params := p.parseFunctionParameters()

	// Parse optional return type
	returnType, returnNames := p.parseFunctionReturnType()

	// Parse optional reads clause
	reads := p.parseFunctionReadsClause()

	// Parse optional writes clause
	writes := p.parseFunctionWritesClause()

	// Parse function body
	body := p.parseFunctionBlock()
	if body.Pos == (ast.Position{}) { // recovery failed
		p.synchronize()
		return nil
	}

	return &ast.Function{
		Pos:         p.makePos(startToken),
		EndPos:      body.EndPos,
		Attribute:   attr,
		DocComments: docs,
		External:    external,
		Name:        name,
		Params:      params,
		Return:      returnType,
		ReturnNames: returnNames,
		Reads:       reads,
		Writes:      writes,
		Body:        &body,
	}
}

// parseFunctionParameters parses the parameter list in parentheses
func (p *Parser) parseFunctionParameters() []*ast.FunctionParam {
	p.consume(LEFT_PAREN, "expected '(' after function name")
	var params []*ast.FunctionParam

	for !p.check(RIGHT_PAREN) && !p.isAtEnd() {
		paramName, ok := p.consumeIdent("expected parameter name")
		if !ok {
			break
		}

		p.consume(COLON, "expected ':' after parameter name")
		paramType := p.parseType()

		params = append(params, &ast.FunctionParam{
			Pos:    paramName.Pos,
			EndPos: paramType.EndPos,
			Name:   paramName,
			Type:   paramType,
		})

		if !p.match(COMMA) {
			break
		}
	}

	p.consume(RIGHT_PAREN, "expected ')' after parameter list")
	return params
}

// parseFunctionReturnType parses the optional return type after '->'.
// A parenthesised list may name its elements: `-> (out: U256, rem: U256)`.
func (p *Parser) parseFunctionReturnType() (*ast.VariableType, []ast.Ident) {
	if !p.match(ARROW) {
		return nil, nil
	}
	if !p.check(LEFT_PAREN) {
		return p.parseType(), nil
	}

	l := p.advance()
	var elements []*ast.VariableType
	var names []ast.Ident
	named := false
	for !p.check(RIGHT_PAREN) && !p.isAtEnd() {
		var name ast.Ident
		if p.check(IDENTIFIER) && p.peekAt(1).Type == COLON {
			name = p.makeIdent(p.advance())
			p.advance()
			named = true
		}
		names = append(names, name)
		elements = append(elements, p.parseType())
		if !p.match(COMMA) {
			break
		}
	}
	r := p.consume(RIGHT_PAREN, "expected ')' after return types")

	typ := &ast.VariableType{
		Pos:           p.makePos(l),
		EndPos:        p.makeEndPos(r),
		TupleElements: elements,
	}
	if !named {
		names = nil
	}
	return typ, names
}

// parseFunctionReadsClause parses the optional 'reads(...)' clause
func (p *Parser) parseFunctionReadsClause() []ast.Ident {
	if p.match(READS) {
		return p.parseOptionalParenIdentifierList()
	}
	return nil
}

// parseFunctionWritesClause parses the optional 'writes(...)' clause
func (p *Parser) parseFunctionWritesClause() []ast.Ident {
	if p.match(WRITES) {
		return p.parseOptionalParenIdentifierList()
	}
	return nil
}

func (p *Parser) parseFunctionBlock() ast.FunctionBlock {
	start := p.consume(LEFT_BRACE, "expected '{' to start block")
	if start.Type == ILLEGAL {
		return ast.FunctionBlock{}
	}
	var items []ast.FunctionBlockItem
	var tail *ast.ExprStmt

	for !p.check(RIGHT_BRACE) && !p.isAtEnd() {
		switch p.peek().Type {
		case RETURN:
			items = append(items, p.parseReturnStmt())
			continue
		case LET:
			if stmt := p.parseLetStmt(); stmt != nil {
				items = append(items, stmt)
			} else {
				p.synchronize()
			}
			continue
		case IF:
			items = append(items, p.parseIfStmt())
			continue
		case REQUIRE:
			args, start, end := p.parseMacroArgs(REQUIRE, "require")
			items = append(items, &ast.RequireStmt{Pos: start, EndPos: end, Args: args})
			continue
		case ASSERT:
			args, start, end := p.parseMacroArgs(ASSERT, "assert")
			items = append(items, &ast.AssertStmt{Pos: start, EndPos: end, Args: args})
			continue
		case COMMENT, DOC_COMMENT, BLOCK_COMMENT:
			items = append(items, p.parseComment())
			continue
		}

		expr := p.parseExpr()

		if _, bad := expr.(*ast.BadExpr); bad {
			p.synchronize()
			continue
		}

		if isAssignable(expr) && isAssignOperator(p.peek()) {
			opTok := p.advance()
			value := p.parseExpr()
			semi := p.consume(SEMICOLON, "expected ';' after assignment")

			items = append(items, &ast.AssignStmt{
				Pos:      expr.NodePos(),
				EndPos:   p.makeEndPos(semi),
				Target:   expr,
				Operator: assignOpFromToken(opTok),
				Value:    value,
			})
			continue
		}

		if p.match(SEMICOLON) {
			items = append(items, &ast.ExprStmt{
				Pos:       expr.NodePos(),
				EndPos:    p.makeEndPos(p.previous()),
				Expr:      expr,
				Semicolon: true,
			})
		} else if p.check(RIGHT_BRACE) {
			tail = &ast.ExprStmt{
				Pos:       expr.NodePos(),
				EndPos:    expr.NodeEndPos(),
				Expr:      expr,
				Semicolon: false,
			}
			break
		} else {
			semi := p.consume(SEMICOLON, "expected ';' or '}' after expression")
			items = append(items, &ast.ExprStmt{
				Pos:       expr.NodePos(),
				EndPos:    p.makeEndPos(semi),
				Expr:      expr,
				Semicolon: true,
			})
		}
	}

	end := p.consume(RIGHT_BRACE, "expected '}' to close block")
	return ast.FunctionBlock{
		Pos:      p.makePos(start),
		EndPos:   p.makeEndPos(end),
		Items:    items,
		TailExpr: tail,
	}
}

func (p *Parser) parseLetStmt() *ast.LetStmt {
	start := p.consume(LET, "expected 'let'")
	stmt := &ast.LetStmt{Pos: p.makePos(start)}
	stmt.Mut = p.match(MUT)

	if p.match(LEFT_PAREN) {
		stmt.Destructure = p.parseIdentifierList()
		p.consume(RIGHT_PAREN, "expected ')' after destructuring pattern")
		if len(stmt.Destructure) == 0 {
			return nil
		}
		stmt.Name = stmt.Destructure[0]
	} else {
		name, ok := p.consumeIdent("expected variable name after 'let'")
		if !ok {
			return nil
		}
		stmt.Name = name
	}

	if p.match(COLON) {
		stmt.Type = p.parseType()
	}

	p.consume(EQUAL, "expected '=' in let statement")
	stmt.Expr = p.parseExpr()
	semi := p.consume(SEMICOLON, "expected ';' after let statement")
	stmt.EndPos = p.makeEndPos(semi)

	return stmt
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	start := p.consume(RETURN, "expected 'return'")
	var value ast.Expr
	if !p.check(SEMICOLON) {
		value = p.parseExpr()
	}
	end := p.consume(SEMICOLON, "expected ';' after return statement")

	return &ast.ReturnStmt{
		Pos:    p.makePos(start),
		EndPos: p.makeEndPos(end),
		Value:  value,
	}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	start := p.consume(IF, "expected 'if'")
	cond := p.parseExpr()
	then := p.parseFunctionBlock()

	stmt := &ast.IfStmt{
		Pos:       p.makePos(start),
		EndPos:    then.EndPos,
		Condition: cond,
		ThenBlock: &then,
	}

	if p.match(ELSE) {
		if p.check(IF) {
			nested := p.parseIfStmt()
			stmt.ElseBlock = &ast.FunctionBlock{
				Pos:    nested.Pos,
				EndPos: nested.EndPos,
				Items:  []ast.FunctionBlockItem{nested},
			}
		} else {
			els := p.parseFunctionBlock()
			stmt.ElseBlock = &els
		}
		stmt.EndPos = stmt.ElseBlock.EndPos
	}

	return stmt
}

// parseMacroArgs parses `name!(args...);` for require! and assert!.
func (p *Parser) parseMacroArgs(kw TokenType, name string) ([]ast.Expr, ast.Position, ast.Position) {
	start := p.consume(kw, "expected '"+name+"'")
	p.consume(BANG, "expected '!' after '"+name+"'")
	p.consume(LEFT_PAREN, "expected '(' after '"+name+"!'")

	args := p.parseExprList()

	p.consume(RIGHT_PAREN, "expected ')' to close "+name+" arguments")
	end := p.consume(SEMICOLON, "expected ';' after "+name+" statement")

	if len(args) == 0 {
		p.errors = append(p.errors, ParseError{
			Message:  name + "! requires a condition",
			Position: start.Position,
		})
	}

	return args, p.makePos(start), p.makeEndPos(end)
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parsePrattExpr(0)
}

func isAssignable(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.IdentExpr, *ast.FieldAccessExpr, *ast.IndexExpr:
		return true
	default:
		return false
	}
}

func isAssignOperator(tok Token) bool {
	switch tok.Type {
	case EQUAL, PLUS_EQUAL, MINUS_EQUAL, STAR_EQUAL, SLASH_EQUAL, PERCENT_EQUAL:
		return true
	default:
		return false
	}
}

func assignOpFromToken(tok Token) ast.AssignType {
	switch tok.Type {
	case EQUAL:
		return ast.ASSIGN
	case PLUS_EQUAL:
		return ast.PLUS_ASSIGN
	case MINUS_EQUAL:
		return ast.MINUS_ASSIGN
	case STAR_EQUAL:
		return ast.STAR_ASSIGN
	case SLASH_EQUAL:
		return ast.SLASH_ASSIGN
	case PERCENT_EQUAL:
		return ast.PERCENT_ASSIGN
	default:
		return ast.ASSIGN
	}
}
