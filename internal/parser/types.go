package parser

type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Identifiers + literals
	IDENTIFIER
	NUMBER
	HEX_NUMBER
	STRING

	// Keywords
	FN
	EXT
	CONTRACT
	LET
	IF
	ELSE
	RETURN
	REQUIRE
	ASSERT
	USE
	STRUCT
	WRITES
	READS
	MUT
	TRUE
	FALSE

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	BANG
	BANG_EQUAL
	EQUAL
	EQUAL_EQUAL
	LESS
	LESS_EQUAL
	GREATER
	GREATER_EQUAL
	AND
	AMPERSAND
	OR
	PIPE
	ARROW

	// Assignment operators
	PLUS_EQUAL
	MINUS_EQUAL
	STAR_EQUAL
	SLASH_EQUAL
	PERCENT_EQUAL

	// Separators
	COMMA
	DOT
	SEMICOLON
	COLON
	DOUBLE_COLON

	// Brackets
	LEFT_PAREN
	RIGHT_PAREN
	LEFT_BRACE
	RIGHT_BRACE
	LEFT_BRACKET
	RIGHT_BRACKET
	POUND

	// Comments
	COMMENT
	DOC_COMMENT
	BLOCK_COMMENT
)

var tokenNames = [...]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	IDENTIFIER:    "IDENTIFIER",
	NUMBER:        "NUMBER",
	HEX_NUMBER:    "HEX_NUMBER",
	STRING:        "STRING",
	FN:            "FN",
	EXT:           "EXT",
	CONTRACT:      "CONTRACT",
	LET:           "LET",
	IF:            "IF",
	ELSE:          "ELSE",
	RETURN:        "RETURN",
	REQUIRE:       "REQUIRE",
	ASSERT:        "ASSERT",
	USE:           "USE",
	STRUCT:        "STRUCT",
	WRITES:        "WRITES",
	READS:         "READS",
	MUT:           "MUT",
	TRUE:          "TRUE",
	FALSE:         "FALSE",
	PLUS:          "PLUS",
	MINUS:         "MINUS",
	STAR:          "STAR",
	SLASH:         "SLASH",
	PERCENT:       "PERCENT",
	BANG:          "BANG",
	BANG_EQUAL:    "BANG_EQUAL",
	EQUAL:         "EQUAL",
	EQUAL_EQUAL:   "EQUAL_EQUAL",
	LESS:          "LESS",
	LESS_EQUAL:    "LESS_EQUAL",
	GREATER:       "GREATER",
	GREATER_EQUAL: "GREATER_EQUAL",
	AND:           "AND",
	AMPERSAND:     "AMPERSAND",
	OR:            "OR",
	PIPE:          "PIPE",
	ARROW:         "ARROW",
	PLUS_EQUAL:    "PLUS_EQUAL",
	MINUS_EQUAL:   "MINUS_EQUAL",
	STAR_EQUAL:    "STAR_EQUAL",
	SLASH_EQUAL:   "SLASH_EQUAL",
	PERCENT_EQUAL: "PERCENT_EQUAL",
	COMMA:         "COMMA",
	DOT:           "DOT",
	SEMICOLON:     "SEMICOLON",
	COLON:         "COLON",
	DOUBLE_COLON:  "DOUBLE_COLON",
	LEFT_PAREN:    "LEFT_PAREN",
	RIGHT_PAREN:   "RIGHT_PAREN",
	LEFT_BRACE:    "LEFT_BRACE",
	RIGHT_BRACE:   "RIGHT_BRACE",
	LEFT_BRACKET:  "LEFT_BRACKET",
	RIGHT_BRACKET: "RIGHT_BRACKET",
	POUND:         "POUND",
	COMMENT:       "COMMENT",
	DOC_COMMENT:   "DOC_COMMENT",
	BLOCK_COMMENT: "BLOCK_COMMENT",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "TokenType(?)"
}

type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based absolute index in input
}
