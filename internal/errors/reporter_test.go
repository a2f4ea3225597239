package errors

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso-verify/internal/ast"
)

func TestErrorReporter(t *testing.T) {
	source := `contract Test {
    /// @requires amount > $limt
    ext fn test(amount: U256) -> U256 {
        return amount;
    }
}`

	reporter := NewErrorReporter("test.ka", source)

	err := UnknownIdentifier("$limt", ast.Position{Line: 2, Column: 28}, []string{"$limit", "amount"})
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "error["+ErrorUnknownIdentifier+"]")
	assert.Contains(t, formatted, "unknown identifier '$limt'")
	assert.Contains(t, formatted, "test.ka:2:28")
	assert.Contains(t, formatted, "did you mean '$limit'?")
	assert.Contains(t, formatted, "@requires amount > $limt")
}

func TestUnknownIdentifierSuggestsDeclaration(t *testing.T) {
	err := UnknownIdentifier("$fresh", ast.Position{Line: 1, Column: 1}, []string{"amount"})
	assert.Len(t, err.Suggestions, 1)
	assert.Contains(t, err.Suggestions[0].Message, "@decl $fresh")

	err = UnknownIdentifier("zzz", ast.Position{Line: 1, Column: 1}, nil)
	assert.Empty(t, err.Suggestions)
}

func TestUnknownClauseKeyword(t *testing.T) {
	err := UnknownClauseKeyword("ensure", ast.Position{Line: 1, Column: 5})
	assert.Equal(t, ErrorUnknownClauseKeyword, err.Code)
	assert.Equal(t, 7, err.Length)
	assert.Contains(t, err.Suggestions[0].Message, "@ensures")
}

func TestCyclicCallGraph(t *testing.T) {
	err := CyclicCallGraph([]string{"a", "b", "a"}, ast.Position{Line: 3, Column: 5})
	assert.Equal(t, ErrorCyclicCallGraph, err.Code)
	assert.Equal(t, "cyclic call graph: a -> b -> a", err.Message)
	assert.Equal(t, "3:5: cyclic call graph: a -> b -> a", err.Error())
}

func TestStorageErrors(t *testing.T) {
	pos := ast.Position{Line: 1, Column: 5}

	err := UnknownStorageVariable("State.balance", pos, []string{"State.balances", "State.total_supply"})
	assert.Equal(t, ErrorUnknownStorageVariable, err.Code)
	assert.Contains(t, err.Suggestions[0].Message, "State.balances")

	err = KeyArityMismatch("State.allowances", 2, 1, pos)
	assert.Contains(t, err.Message, "takes 2 key(s), found 1")
	assert.Equal(t, "Storage", GetErrorCategory(err.Code))
}

func TestWarningFormatting(t *testing.T) {
	source := `fn helper() {}`
	reporter := NewErrorReporter("test.ka", source)

	err := NewSemanticWarning(WarningUncontractedRoot, "function 'helper' has no contract", ast.Position{Line: 1, Column: 4}).
		WithLength(6).
		Build()
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "warning[W0001]")
	assert.True(t, IsWarning(err.Code))
	assert.False(t, IsWarning(""))
	assert.Contains(t, GetErrorDescription(err.Code), "empty contract")
}

func TestMarkerFollowsTabs(t *testing.T) {
	color.NoColor = true
	source := "contract T {\n\tfn f() {}\n}"
	reporter := NewErrorReporter("test.ka", source)

	err := CompilerError{Level: Error, Message: "bad", Position: ast.Position{Line: 2, Column: 5}, Length: 1}
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "    fn f() {}")
	lines := strings.Split(formatted, "\n")
	var marker string
	for _, l := range lines {
		if strings.HasSuffix(l, "^") {
			marker = l
		}
	}
	require.NotEmpty(t, marker)
	// the leading tab widens to four columns
	assert.True(t, strings.HasSuffix(marker, strings.Repeat(" ", 7)+"^"))
}

func TestPositionFilenameWins(t *testing.T) {
	color.NoColor = true
	reporter := NewErrorReporter("main.ka", "x")
	err := CompilerError{Level: Error, Message: "m", Position: ast.Position{Filename: "other.ka", Line: 1, Column: 1}}
	assert.Contains(t, reporter.FormatError(err), "other.ka:1:1")
}

func TestFormatAll(t *testing.T) {
	color.NoColor = true
	source := "a\nb\nc"
	reporter := NewErrorReporter("test.ka", source)

	out := reporter.FormatAll([]CompilerError{
		{Level: Error, Code: ErrorUnknownIdentifier, Message: "second", Position: ast.Position{Line: 3, Column: 1}},
		{Level: Warning, Code: WarningUncontractedRoot, Message: "first", Position: ast.Position{Line: 1, Column: 1}},
	})

	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
	assert.True(t, strings.HasSuffix(out, "1 error, 1 warning\n"))
	assert.Empty(t, reporter.FormatAll(nil))
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("hello", "hello"))
	assert.Equal(t, 1, levenshteinDistance("hello", "hallo"))
	assert.Equal(t, 1, levenshteinDistance("hello", "helo"))
	assert.Equal(t, 5, levenshteinDistance("hello", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestSimilarNameFinding(t *testing.T) {
	candidates := []string{"balance", "amount", "total", "balanceOf", "xyz"}

	similar := findSimilarNames("balace", candidates)
	assert.Contains(t, similar, "balance")
	assert.NotContains(t, similar, "xyz")

	similar = findSimilarNames("verydifferent", candidates)
	assert.Empty(t, similar)
}

func TestErrorLevels(t *testing.T) {
	source := `test`
	reporter := NewErrorReporter("test.ka", source)
	pos := ast.Position{Line: 1, Column: 1}

	errorErr := CompilerError{Level: Error, Message: "test error", Position: pos}
	warningErr := CompilerError{Level: Warning, Message: "test warning", Position: pos}

	assert.Contains(t, reporter.FormatError(errorErr), "error:")
	assert.Contains(t, reporter.FormatError(warningErr), "warning:")
}
