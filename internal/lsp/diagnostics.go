package lsp

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/report"
	"kanso-verify/internal/solver"
)

// ConvertParseErrors transforms parser errors into LSP diagnostics for IDE display.
// These provide immediate feedback about syntax issues like missing brackets,
// semicolons, commas in struct declarations, and other parsing problems.
func ConvertParseErrors(parseErrors []parser.ParseError) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	for _, parseErr := range parseErrors {
		diagnostic := protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{
					Line:      uint32(parseErr.Position.Line - 1),   // Convert to 0-based indexing
					Character: uint32(parseErr.Position.Column - 1), // Convert to 0-based indexing
				},
				End: protocol.Position{
					Line:      uint32(parseErr.Position.Line - 1),
					Character: uint32(parseErr.Position.Column + 5), // Rough span for visibility
				},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("kanso-parser"),
			Message:  parseErr.Message,
		}
		diagnostics = append(diagnostics, diagnostic)
	}

	return diagnostics
}

// ConvertScanErrors transforms scanner errors into LSP diagnostics for IDE display.
// These handle tokenization issues like invalid characters, unterminated strings, etc.
func ConvertScanErrors(scanErrors []parser.ScanError) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	for _, scanErr := range scanErrors {
		// Use the Length field if available, otherwise default span
		endChar := uint32(scanErr.Position.Column - 1 + scanErr.Length)
		if scanErr.Length == 0 {
			endChar = uint32(scanErr.Position.Column + 3) // Default small span
		}

		diagnostic := protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{
					Line:      uint32(scanErr.Position.Line - 1),   // Convert to 0-based indexing
					Character: uint32(scanErr.Position.Column - 1), // Convert to 0-based indexing
				},
				End: protocol.Position{
					Line:      uint32(scanErr.Position.Line - 1),
					Character: endChar,
				},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("kanso-scanner"),
			Message:  scanErr.Message,
		}
		diagnostics = append(diagnostics, diagnostic)
	}

	return diagnostics
}

// ConvertVerdicts reports every function that did not verify. A falsified
// function is marked at the clause or write that failed. An error is marked
// at each annotation problem behind it, or else at the function name as a
// warning.
func ConvertVerdicts(results []*report.Result) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	for _, res := range results {
		for _, d := range res.Diagnostics {
			severity := protocol.DiagnosticSeverityError
			if d.Level == errors.Warning {
				severity = protocol.DiagnosticSeverityWarning
			}
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range:    lineRange(d.Position),
				Severity: ptrSeverity(severity),
				Code:     &protocol.IntegerOrString{Value: d.Code},
				Source:   ptrString("kanso-verify"),
				Message:  d.Message,
			})
		}

		if res.Verdict.Kind == report.Verified || res.InlinedInto != "" {
			continue
		}
		if res.Verdict.Kind == report.Error && len(res.Diagnostics) > 0 {
			continue
		}

		pos := res.Position
		severity := protocol.DiagnosticSeverityWarning
		message := fmt.Sprintf("%s: %s", res.Function, res.Verdict)
		if res.Verdict.Kind == report.Falsified {
			severity = protocol.DiagnosticSeverityError
			if w := res.Verdict.Witness; w != nil && w.Position.Line > 0 {
				pos = w.Position
			}
			if w := res.Verdict.Witness; w != nil && len(w.Assignments) > 0 {
				message += "\ncounterexample: " + (&solver.Model{Assignments: w.Assignments}).String()
			}
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lineRange(pos),
			Severity: ptrSeverity(severity),
			Source:   ptrString("kanso-verify"),
			Message:  message,
		})
	}

	return diagnostics
}

// lineRange covers the rest of the line from pos.
func lineRange(pos ast.Position) protocol.Range {
	line := uint32(max(pos.Line-1, 0))
	char := uint32(max(pos.Column-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: char},
		End:   protocol.Position{Line: line + 1, Character: 0},
	}
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
