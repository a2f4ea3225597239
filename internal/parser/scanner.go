package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type Token struct {
	Type     TokenType
	Lexeme   string
	Position Position
}

type ScanError struct {
	Message  string
	Position Position
	Length   int // bytes covered
}

// Scanner splits Kanso source into tokens. Comments are kept as tokens
// because verification clauses travel in doc comments.
type Scanner struct {
	source string
	tokens []Token
	errors []ScanError

	start   Position // first byte of the token being scanned
	current int
	line    int
	column  int
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
		column: 1,
	}
}

// punctuation maps every operator and delimiter lexeme to its token. Longer
// lexemes win.
var punctuation = map[string]TokenType{
	"(": LEFT_PAREN, ")": RIGHT_PAREN,
	"{": LEFT_BRACE, "}": RIGHT_BRACE,
	"[": LEFT_BRACKET, "]": RIGHT_BRACKET,
	",": COMMA, ".": DOT, ";": SEMICOLON, "#": POUND,
	":": COLON, "::": DOUBLE_COLON, "->": ARROW,

	"+": PLUS, "-": MINUS, "*": STAR, "/": SLASH, "%": PERCENT,
	"+=": PLUS_EQUAL, "-=": MINUS_EQUAL, "*=": STAR_EQUAL, "/=": SLASH_EQUAL, "%=": PERCENT_EQUAL,

	"=": EQUAL, "==": EQUAL_EQUAL, "!": BANG, "!=": BANG_EQUAL,
	"<": LESS, "<=": LESS_EQUAL, ">": GREATER, ">=": GREATER_EQUAL,
	"&": AMPERSAND, "&&": AND, "|": PIPE, "||": OR,
}

// KEYWORDS are reserved words. '$'-prefixed names never match.
var KEYWORDS = map[string]TokenType{
	"contract": CONTRACT, "use": USE, "struct": STRUCT,
	"fn": FN, "ext": EXT, "reads": READS, "writes": WRITES,
	"let": LET, "mut": MUT, "if": IF, "else": ELSE, "return": RETURN,
	"require": REQUIRE, "assert": ASSERT,
	"true": TRUE, "false": FALSE,
}

func (s *Scanner) ScanTokens() []Token {
	for !s.isAtEnd() {
		s.start = s.here()
		s.scanToken()
	}
	s.start = s.here()
	s.emit(EOF, "")
	return s.tokens
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch {
	case c == ' ' || c == '\r' || c == '\t' || c == '\n':
	case c == '/' && s.matchNext('/'):
		s.scanLineComment()
	case c == '/' && s.matchNext('*'):
		s.scanBlockComment()
	case c == '"':
		s.scanString()
	case isDigit(c):
		s.scanNumber()
	case isAlpha(c):
		s.scanIdentifier()
	case c == '$' && isAlpha(s.peek()):
		s.scanIdentifier()
	default:
		s.scanPunctuation(c)
	}
}

func (s *Scanner) scanPunctuation(c byte) {
	if s.current < len(s.source) {
		if t, ok := punctuation[string(c)+string(s.source[s.current])]; ok {
			s.advance()
			s.emit(t, s.lexeme())
			return
		}
	}
	if t, ok := punctuation[string(c)]; ok {
		s.emit(t, s.lexeme())
		return
	}
	s.reportError(fmt.Sprintf("Unexpected character: %q", c))
}

// scanIdentifier consumes a name. A leading '$' marks a logical variable,
// which is never a keyword.
func (s *Scanner) scanIdentifier() {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	text := s.lexeme()
	if strings.HasPrefix(text, "$") {
		s.emit(IDENTIFIER, text)
		return
	}
	s.emit(lookupIdentifier(text), text)
}

func (s *Scanner) scanNumber() {
	if s.peek() != 'x' && s.peek() != 'X' {
		for isDigit(s.peek()) {
			s.advance()
		}
		s.emit(NUMBER, s.lexeme())
		return
	}
	s.advance()
	if !isHexDigit(s.peek()) {
		s.reportError("Invalid hex literal: expected hex digit after 0x")
		return
	}
	for isHexDigit(s.peek()) {
		s.advance()
	}
	s.emit(HEX_NUMBER, s.lexeme())
}

func (s *Scanner) scanString() {
	for s.peek() != '"' && !s.isAtEnd() {
		s.advance()
	}
	if s.isAtEnd() {
		s.reportError("Unterminated string.")
		return
	}
	s.advance()
	text := s.lexeme()
	s.emit(STRING, text[1:len(text)-1])
}

// scanLineComment handles "//" and "///"; the latter carries clauses.
func (s *Scanner) scanLineComment() {
	for s.peek() != '\n' && !s.isAtEnd() {
		s.advance()
	}
	text := s.lexeme()
	if strings.HasPrefix(text, "///") {
		s.emit(DOC_COMMENT, text)
	} else {
		s.emit(COMMENT, text)
	}
}

func (s *Scanner) scanBlockComment() {
	end := strings.Index(s.source[s.current:], "*/")
	if end < 0 {
		for !s.isAtEnd() {
			s.advance()
		}
		s.reportError("Unterminated block comment.")
		return
	}
	for i := 0; i < end+2; i++ {
		s.advance()
	}
	text := s.lexeme()
	if strings.HasPrefix(text, "/**") {
		s.emit(DOC_COMMENT, text)
	} else {
		s.emit(BLOCK_COMMENT, text)
	}
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	if c == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	return c
}

func (s *Scanner) matchNext(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.advance()
	return true
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) here() Position {
	return Position{Line: s.line, Column: s.column, Offset: s.current}
}

func (s *Scanner) lexeme() string {
	return s.source[s.start.Offset:s.current]
}

// emit records a token starting where the current scan began, so tokens
// that span lines report their first line.
func (s *Scanner) emit(t TokenType, lexeme string) {
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: lexeme, Position: s.start})
}

func (s *Scanner) reportError(message string) {
	s.errors = append(s.errors, ScanError{
		Message:  message,
		Position: s.start,
		Length:   s.current - s.start.Offset,
	})
}

func lookupIdentifier(text string) TokenType {
	if t, ok := KEYWORDS[text]; ok {
		return t
	}
	return IDENTIFIER
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isAlpha(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
