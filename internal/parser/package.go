package parser

import "kanso-verify/internal/ast"

func ParseSource(path string, source string) (*ast.Contract, []ParseError, []ScanError) {
	scanner := NewScanner(source)
	tokens := scanner.ScanTokens()

	parser := NewParser(path, tokens)
	contract := parser.ParseContract()

	return contract, parser.errors, scanner.errors
}

// ParseFormula parses a single clause expression embedded in a doc comment.
// origin is the position of the first character of src in the enclosing file.
func ParseFormula(path string, src string, origin ast.Position) (ast.Expr, []ParseError, []ScanError) {
	scanner := NewScanner(src)
	tokens := scanner.ScanTokens()

	parser := NewParser(path, tokens)
	parser.formula = true
	parser.origin = &origin

	expr := parser.parseExpr()
	if !parser.isAtEnd() {
		parser.errorAtCurrent("unexpected trailing input in formula: " + parser.peek().Lexeme)
	}

	return expr, parser.errors, scanner.errors
}

// ParseDecl parses a logical variable declaration body such as `$old: U256`.
func ParseDecl(path string, src string, origin ast.Position) (ast.Ident, *ast.VariableType, []ParseError, []ScanError) {
	scanner := NewScanner(src)
	tokens := scanner.ScanTokens()

	parser := NewParser(path, tokens)
	parser.origin = &origin

	name, ok := parser.consumeIdent("expected logical variable name")
	var typ *ast.VariableType
	if ok {
		parser.consume(COLON, "expected ':' after logical variable name")
		typ = parser.parseType()
		if !parser.isAtEnd() {
			parser.errorAtCurrent("unexpected trailing input in declaration")
		}
	}

	return name, typ, parser.errors, scanner.errors
}
