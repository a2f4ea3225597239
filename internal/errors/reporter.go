package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"kanso-verify/internal/ast"
)

// ErrorLevel represents the severity of an error
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
	Help    ErrorLevel = "help"
)

// CompilerError represents a structured error with suggestions and context
type CompilerError struct {
	Level       ErrorLevel
	Code        string       // Error code like E0001
	Message     string       // Primary error message
	Position    ast.Position // Location in source
	Length      int          // Length of the problematic region
	Suggestions []Suggestion // Suggested fixes
	Notes       []string     // Additional context notes
	HelpText    string       // Help text for the error
}

// Suggestion represents a suggested fix
type Suggestion struct {
	Message     string       // Description of the suggestion
	Replacement string       // Suggested replacement text (optional)
	Position    ast.Position // Position to apply the fix (optional)
	Length      int          // Length of text to replace (optional)
}

// ErrorReporter renders diagnostics against the source they point into,
// Rust style: a header, the offending line with a marker, its neighbours,
// then suggestions, notes and help.
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a new error reporter for a file
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

var (
	bold = color.New(color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
	cyan = color.New(color.FgCyan).SprintFunc()
)

func levelColor(level ErrorLevel) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	}
	return color.New(color.FgRed, color.Bold).SprintFunc()
}

// line returns source line n (1-based) with tabs expanded, and whether it
// exists.
func (er *ErrorReporter) line(n int) (string, bool) {
	if n < 1 || n > len(er.lines) {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimRight(er.lines[n-1], "\r"), "\t", "    "), true
}

// column converts a 1-based byte column on line n to a display column.
func (er *ErrorReporter) column(n, col int) int {
	if n < 1 || n > len(er.lines) {
		return col
	}
	raw := er.lines[n-1]
	tabs := strings.Count(raw[:min(max(col-1, 0), len(raw))], "\t")
	return col + 3*tabs
}

// FormatError formats one diagnostic.
func (er *ErrorReporter) FormatError(err CompilerError) string {
	var b strings.Builder
	paint := levelColor(err.Level)
	pos := err.Position

	if err.Code != "" {
		fmt.Fprintf(&b, "%s[%s]: %s\n", paint(string(err.Level)), err.Code, err.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", paint(string(err.Level)), err.Message)
	}

	filename := er.filename
	if pos.Filename != "" {
		filename = pos.Filename
	}
	width := max(3, len(fmt.Sprintf("%d", pos.Line+1)))
	indent := strings.Repeat(" ", width)
	gutter := func(n int) string { return fmt.Sprintf("%*d", width, n) }

	fmt.Fprintf(&b, "%s %s %s:%d:%d\n", indent, dim("-->"), filename, pos.Line, pos.Column)
	fmt.Fprintf(&b, "%s %s\n", indent, dim("│"))

	if text, ok := er.line(pos.Line - 1); ok {
		fmt.Fprintf(&b, "%s %s %s\n", dim(gutter(pos.Line-1)), dim("│"), text)
	}
	if text, ok := er.line(pos.Line); ok {
		fmt.Fprintf(&b, "%s %s %s\n", bold(gutter(pos.Line)), dim("│"), text)
		marker := strings.Repeat(" ", max(0, er.column(pos.Line, pos.Column)-1)) +
			paint(strings.Repeat("^", max(1, err.Length)))
		fmt.Fprintf(&b, "%s %s %s\n", indent, dim("│"), marker)
	}
	if text, ok := er.line(pos.Line + 1); ok && pos.Line > 0 {
		fmt.Fprintf(&b, "%s %s %s\n", dim(gutter(pos.Line+1)), dim("│"), text)
	}

	if len(err.Suggestions) > 0 {
		fmt.Fprintf(&b, "%s %s\n", indent, dim("│"))
	}
	for i, s := range err.Suggestions {
		if i == 0 {
			fmt.Fprintf(&b, "%s %s %s: %s\n", indent, cyan("help"), cyan("try"), s.Message)
		} else {
			fmt.Fprintf(&b, "%s     %s\n", indent, s.Message)
		}
		if s.Replacement != "" {
			replacement := strings.ReplaceAll(s.Replacement, "\n", fmt.Sprintf("\n%s %s ", indent, dim("│")))
			fmt.Fprintf(&b, "%s %s\n%s %s %s\n", indent, dim("│"), indent, cyan("│"), cyan(replacement))
		}
	}

	for _, note := range err.Notes {
		fmt.Fprintf(&b, "%s %s %s %s\n", indent, dim("│"), levelColor(Note)("note:"), note)
	}
	if err.HelpText != "" {
		fmt.Fprintf(&b, "%s %s %s %s\n", indent, dim("│"), levelColor(Help)("help:"), err.HelpText)
	}

	b.WriteString("\n")
	return b.String()
}

// FormatAll formats errs in source order followed by a count line, such as
// "2 errors, 1 warning".
func (er *ErrorReporter) FormatAll(errs []CompilerError) string {
	sorted := append([]CompilerError(nil), errs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Position, sorted[j].Position
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	var b strings.Builder
	var errors, warnings int
	for _, e := range sorted {
		b.WriteString(er.FormatError(e))
		if e.Level == Warning || IsWarning(e.Code) {
			warnings++
		} else {
			errors++
		}
	}
	if len(sorted) > 0 {
		fmt.Fprintf(&b, "%s, %s\n", plural(errors, "error"), plural(warnings, "warning"))
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
