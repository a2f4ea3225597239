package main

import (
	"fmt"
	"time"

	"kanso-verify/internal/ast"
	kerrors "kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
)

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// syntaxDiagnostics lifts scanner and parser errors into diagnostics so they
// render like every other finding.
func syntaxDiagnostics(path string, scanErrs []parser.ScanError, parseErrs []parser.ParseError) []kerrors.CompilerError {
	at := func(p parser.Position) ast.Position {
		return ast.Position{Filename: path, Line: p.Line, Column: p.Column, Offset: p.Offset}
	}
	var out []kerrors.CompilerError
	for _, e := range scanErrs {
		out = append(out, kerrors.CompilerError{Level: kerrors.Error, Message: e.Message, Position: at(e.Position), Length: e.Length})
	}
	for _, e := range parseErrs {
		out = append(out, kerrors.CompilerError{Level: kerrors.Error, Message: e.Message, Position: at(e.Position), Length: 1})
	}
	return out
}
