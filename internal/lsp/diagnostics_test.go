package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/report"
)

func TestConvertVerdicts(t *testing.T) {
	fnPos := ast.Position{Line: 10, Column: 8}
	clausePos := ast.Position{Line: 8, Column: 9}

	results := []*report.Result{
		{Function: "ok", Verdict: report.VerifiedVerdict(), Position: fnPos},
		{
			Function: "helper",
			Verdict:  report.VerifiedVerdict(),
			Position: fnPos,
			Diagnostics: []errors.CompilerError{
				errors.UncontractedRoot("helper", fnPos),
			},
		},
		{
			Function: "broken",
			Verdict:  report.ErrorVerdict("unknown identifier '$x'"),
			Position: fnPos,
			Diagnostics: []errors.CompilerError{
				errors.UnknownIdentifier("$x", clausePos, nil),
			},
		},
		{Function: "blocked", Verdict: report.ErrorVerdict("blocked: callee f is Falsified"), Position: fnPos},
		{
			Function: "wrong",
			Verdict:  report.FalsifiedVerdict(&report.Witness{Kind: "postcondition", Position: clausePos}),
			Position: fnPos,
		},
		{
			Function:    "inlined",
			Verdict:     report.FalsifiedVerdict(&report.Witness{Kind: "postcondition"}),
			InlinedInto: "wrong",
		},
	}

	diags := ConvertVerdicts(results)
	require.Len(t, diags, 4)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diags[0].Severity)
	assert.Equal(t, "W0001", diags[0].Code.Value)

	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[1].Severity)
	assert.Equal(t, "unknown identifier '$x'", diags[1].Message)
	assert.Equal(t, uint32(7), diags[1].Range.Start.Line)
	assert.Equal(t, uint32(8), diags[1].Range.Start.Character)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diags[2].Severity)
	assert.Equal(t, "blocked: Error (blocked: callee f is Falsified)", diags[2].Message)
	assert.Equal(t, uint32(9), diags[2].Range.Start.Line)

	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[3].Severity)
	assert.Equal(t, uint32(7), diags[3].Range.Start.Line)
}
