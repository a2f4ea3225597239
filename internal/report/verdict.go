// Package report collects per-function verdicts and renders the run
// report.
package report

import (
	"fmt"
	"strings"
	"time"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/errors"
	"kanso-verify/internal/solver"
)

type Kind string

const (
	Verified  Kind = "Verified"
	Falsified Kind = "Falsified"
	Error     Kind = "Error"
)

// Witness explains a Falsified verdict: which obligation failed and the
// solver's counterexample for it.
type Witness struct {
	Kind        string // obligation kind, e.g. "postcondition" or "unannotated-write"
	Storage     string
	Callee      string
	Clause      string
	Path        string
	Position    ast.Position
	Assignments []solver.Assignment
}

func (w *Witness) String() string {
	var b strings.Builder
	b.WriteString(w.Kind)
	if w.Storage != "" {
		fmt.Fprintf(&b, " %s", w.Storage)
	}
	if w.Callee != "" {
		fmt.Fprintf(&b, " of %s", w.Callee)
	}
	if w.Position.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", w.Position.Line, w.Position.Column)
	}
	if w.Path != "" {
		fmt.Fprintf(&b, " on %s", w.Path)
	}
	return b.String()
}

type Verdict struct {
	Kind    Kind
	Witness *Witness // Falsified only
	Reason  string   // Error only
	Detail  string   // Error only: what the solver said, if anything
}

func VerifiedVerdict() Verdict { return Verdict{Kind: Verified} }

func FalsifiedVerdict(w *Witness) Verdict { return Verdict{Kind: Falsified, Witness: w} }

func ErrorVerdict(format string, args ...any) Verdict {
	return Verdict{Kind: Error, Reason: fmt.Sprintf(format, args...)}
}

// UndecidedVerdict is the Error for a query the solver could not settle.
// The solver's own explanation goes to Detail; Reason is always
// "undecided".
func UndecidedVerdict(detail string) Verdict {
	return Verdict{Kind: Error, Reason: "undecided", Detail: detail}
}

func (v Verdict) String() string {
	switch v.Kind {
	case Falsified:
		if v.Witness != nil {
			return fmt.Sprintf("Falsified (%s)", v.Witness)
		}
	case Error:
		if v.Reason != "" {
			return fmt.Sprintf("Error (%s)", v.Reason)
		}
	}
	return string(v.Kind)
}

// Result is the verdict of one function. InlinedInto is set for helpers
// without a contract that were checked as part of a caller.
type Result struct {
	Function    string
	Verdict     Verdict
	InlinedInto string
	Position    ast.Position
	Duration    time.Duration
	Cached      bool
	// Diagnostics are the annotation and lowering problems behind an
	// Error verdict, plus warnings that do not affect the verdict.
	Diagnostics []errors.CompilerError
}

// Label is the first report line for the function.
func (r *Result) Label() string {
	if r.InlinedInto != "" {
		return fmt.Sprintf("%s [inlined into %s]", r.Function, r.InlinedInto)
	}
	return r.Function
}
