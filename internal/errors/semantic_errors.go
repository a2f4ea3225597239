package errors

import (
	"fmt"
	"strings"

	"kanso-verify/internal/ast"
)

// SemanticErrorBuilder provides a fluent interface for creating semantic errors with suggestions
type SemanticErrorBuilder struct {
	err CompilerError
}

// NewSemanticError creates a new semantic error builder
func NewSemanticError(code, message string, pos ast.Position) *SemanticErrorBuilder {
	return &SemanticErrorBuilder{
		err: CompilerError{
			Level:    Error,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// NewSemanticWarning creates a new semantic warning builder
func NewSemanticWarning(code, message string, pos ast.Position) *SemanticErrorBuilder {
	return &SemanticErrorBuilder{
		err: CompilerError{
			Level:    Warning,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// WithLength sets the length of the error span
func (b *SemanticErrorBuilder) WithLength(length int) *SemanticErrorBuilder {
	b.err.Length = length
	return b
}

// WithSuggestion adds a suggestion to the error
func (b *SemanticErrorBuilder) WithSuggestion(message string) *SemanticErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{Message: message})
	return b
}

// WithReplacement adds a suggestion with replacement text
func (b *SemanticErrorBuilder) WithReplacement(message, replacement string, pos ast.Position, length int) *SemanticErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{
		Message:     message,
		Replacement: replacement,
		Position:    pos,
		Length:      length,
	})
	return b
}

// WithNote adds a note to the error
func (b *SemanticErrorBuilder) WithNote(note string) *SemanticErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// WithHelp adds help text to the error
func (b *SemanticErrorBuilder) WithHelp(help string) *SemanticErrorBuilder {
	b.err.HelpText = help
	return b
}

// Build returns the completed compiler error
func (b *SemanticErrorBuilder) Build() CompilerError {
	return b.err
}

// Error implements the error interface so diagnostics can travel as Go errors.
func (e CompilerError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
}

// Annotation errors

// MalformedClause creates an error for a contract clause that failed to parse
func MalformedClause(message string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorMalformedClause, message, pos).
		WithHelp("clauses look like '/// @requires <formula>' or '/// @update State.f[k] == <expr>'").
		Build()
}

// UnknownIdentifier creates an error for undeclared names with suggestions
func UnknownIdentifier(name string, pos ast.Position, candidates []string) CompilerError {
	builder := NewSemanticError(ErrorUnknownIdentifier, fmt.Sprintf("unknown identifier '%s'", name), pos).
		WithLength(len(name))

	similar := findSimilarNames(name, candidates)
	switch {
	case len(similar) == 1:
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
	case len(similar) > 1:
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean one of: '%s'?", strings.Join(similar, "', '")))
	case strings.HasPrefix(name, "$"):
		builder = builder.WithSuggestion(fmt.Sprintf("declare it with '/// @decl %s: U256'", name))
	}

	return builder.Build()
}

// DuplicateDeclaration creates an error for a logical variable declared twice
func DuplicateDeclaration(name string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorDuplicateDeclaration, fmt.Sprintf("duplicate declaration of '%s'", name), pos).
		WithLength(len(name)).
		WithNote("each logical variable may be declared once per function").
		Build()
}

// DuplicateUpdateClause creates an error for a second update clause on one storage variable
func DuplicateUpdateClause(storageVar string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorDuplicateUpdateClause, fmt.Sprintf("duplicate update clause for '%s'", storageVar), pos).
		WithNote("a function states at most one update clause per storage variable").
		Build()
}

// UnknownClauseKeyword creates an error for unrecognised @keywords
func UnknownClauseKeyword(keyword string, pos ast.Position) CompilerError {
	builder := NewSemanticError(ErrorUnknownClauseKeyword, fmt.Sprintf("unknown clause keyword '@%s'", keyword), pos).
		WithLength(len(keyword) + 1)
	similar := findSimilarNames(keyword, []string{"decl", "requires", "ensures", "update"})
	if len(similar) > 0 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '@%s'?", similar[0]))
	}
	return builder.Build()
}

// MisplacedSelector creates an error for old(...) or return outside a postcondition
func MisplacedSelector(selector, clause string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorMisplacedSelector, fmt.Sprintf("'%s' cannot be used in @%s", selector, clause), pos).
		WithLength(len(selector)).
		Build()
}

// Program IR errors

// UnsupportedConstruct creates an error for code outside the verifiable subset
func UnsupportedConstruct(what string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorUnsupportedConstruct, fmt.Sprintf("unsupported construct: %s", what), pos).Build()
}

// SortMismatch creates an error for Bool/integer confusion
func SortMismatch(expected, actual string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorSortMismatch, fmt.Sprintf("sort mismatch: expected %s, found %s", expected, actual), pos).Build()
}

// UnknownCallee creates an error for calls to functions that are not in the contract
func UnknownCallee(name string, pos ast.Position, candidates []string) CompilerError {
	builder := NewSemanticError(ErrorUnknownCallee, fmt.Sprintf("call to unknown function '%s'", name), pos).
		WithLength(len(name))
	if similar := findSimilarNames(name, candidates); len(similar) > 0 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
	}
	return builder.Build()
}

// ArityMismatch creates an error for calls or destructuring with the wrong count
func ArityMismatch(what string, expected, actual int, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorArityMismatch,
		fmt.Sprintf("%s expects %d value(s), found %d", what, expected, actual), pos).Build()
}

// UnknownType creates an error for type names that are not builtins
func UnknownType(name string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorUnknownType, fmt.Sprintf("unknown type '%s'", name), pos).
		WithLength(len(name)).
		WithNote("supported types are U8..U256, I8..I256, Bool and Address").
		Build()
}

// Storage errors

// UnknownStorageVariable creates an error for references outside the storage layout
func UnknownStorageVariable(name string, pos ast.Position, available []string) CompilerError {
	builder := NewSemanticError(ErrorUnknownStorageVariable, fmt.Sprintf("unknown storage variable '%s'", name), pos).
		WithLength(len(name))
	if similar := findSimilarNames(name, available); len(similar) > 0 {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
	}
	return builder.Build()
}

// KeyArityMismatch creates an error for storage accesses with the wrong number of keys
func KeyArityMismatch(name string, expected, actual int, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorKeyArityMismatch,
		fmt.Sprintf("storage variable '%s' takes %d key(s), found %d", name, expected, actual), pos).Build()
}

// Composition errors

// CyclicCallGraph creates an error for functions on a call cycle
func CyclicCallGraph(cycle []string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorCyclicCallGraph,
		fmt.Sprintf("cyclic call graph: %s", strings.Join(cycle, " -> ")), pos).
		WithNote("recursive functions cannot be ordered callee-first").
		Build()
}

// BlockedByCallee creates an error for callers of a callee that failed verification
func BlockedByCallee(callee, verdict string, pos ast.Position) CompilerError {
	return NewSemanticError(ErrorBlockedByCallee,
		fmt.Sprintf("blocked: callee %s is %s", callee, verdict), pos).Build()
}

func findSimilarNames(target string, candidates []string) []string {
	var similar []string

	for _, candidate := range candidates {
		if levenshteinDistance(target, candidate) <= 2 && len(candidate) > 2 {
			similar = append(similar, candidate)
		}
	}

	return similar
}

// Simple Levenshtein distance implementation for finding similar names
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create matrix
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	// Initialize first row and column
	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	// Fill the matrix
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// UncontractedRoot warns about a function nobody calls that has no contract
func UncontractedRoot(name string, pos ast.Position) CompilerError {
	return NewSemanticWarning(WarningUncontractedRoot,
		fmt.Sprintf("function '%s' has no contract", name), pos).
		WithLength(len(name)).
		WithHelp("add @ensures or @update clauses to state what it guarantees").
		Build()
}
