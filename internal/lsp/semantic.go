package lsp

import (
	"sort"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/spec"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask based on SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

// collectSemanticTokens marks what the verifier reads: storage fields,
// function names and parameters, and inside doc comments the clause
// keywords and logical variables.
func collectSemanticTokens(contract *ast.Contract) []SemanticToken {
	var tokens []SemanticToken

	if contract == nil {
		return tokens
	}

	for _, s := range contract.StorageStructs() {
		if s.Attribute != nil {
			tokens = append(tokens, makeToken(s.Attribute.Pos, s.Attribute.EndPos, s.Attribute.Name, "modifier", 0)...)
		}
		for _, field := range s.Fields() {
			tokens = append(tokens, makeToken(field.Name.Pos, field.Name.EndPos, field.Name.Value, "property", 1)...)
		}
	}

	for _, fn := range contract.Functions() {
		tokens = append(tokens, walkClauses(fn)...)
		tokens = append(tokens, makeToken(fn.Name.Pos, fn.Name.EndPos, fn.Name.Value, "function", 1)...)
		for _, p := range fn.Params {
			tokens = append(tokens, makeToken(p.Name.Pos, p.Name.EndPos, p.Name.Value, "parameter", 1)...)
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Line != tokens[j].Line {
			return tokens[i].Line < tokens[j].Line
		}
		return tokens[i].StartChar < tokens[j].StartChar
	})
	return tokens
}

func walkClauses(fn *ast.Function) []SemanticToken {
	var tokens []SemanticToken

	for _, c := range spec.Clauses(fn) {
		tokens = append(tokens, SemanticToken{
			Line:      uint32(c.Pos.Line - 1),
			StartChar: uint32(c.Pos.Column - 1),
			Length:    uint32(len(c.Keyword) + 1),
			TokenType: indexOf("keyword", SemanticTokenTypes),
		})

		// $logicals in the clause body
		for i := 0; i < len(c.Body); i++ {
			if c.Body[i] != '$' {
				continue
			}
			end := i + 1
			for end < len(c.Body) && isIdentByte(c.Body[end]) {
				end++
			}
			if end > i+1 {
				mods := 0
				if c.Keyword == "decl" {
					mods = 1
				}
				tokens = append(tokens, SemanticToken{
					Line:           uint32(c.BodyPos.Line - 1),
					StartChar:      uint32(c.BodyPos.Column - 1 + i),
					Length:         uint32(end - i),
					TokenType:      indexOf("variable", SemanticTokenTypes),
					TokenModifiers: mods << indexOf("declaration", SemanticTokenModifiers),
				})
			}
			i = end - 1
		}
	}

	return tokens
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// encodeTokens produces the LSP wire format: relative line and start,
// length, type and modifiers for each token.
func encodeTokens(tokens []SemanticToken) []uint32 {
	data := []uint32{}
	var prevLine, prevStart uint32

	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		deltaStart := token.StartChar
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		}
		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}

	return data
}

// makeToken creates a semantic token for a given position and text
func makeToken(pos, endPos ast.Position, value, tokenType string, declModifier int) []SemanticToken {
	if value == "" {
		return nil
	}

	length := endPos.Column - pos.Column
	if length <= 0 {
		length = len(value)
	}

	return []SemanticToken{{
		Line:           uint32(pos.Line - 1),
		StartChar:      uint32(pos.Column - 1),
		Length:         uint32(length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: declModifier << indexOf("declaration", SemanticTokenModifiers),
	}}
}

// indexOf returns the index of a string in a slice, or 0 if not found
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0
}
