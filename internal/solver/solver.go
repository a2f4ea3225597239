// Package solver discharges verification conditions. A query asks whether
// a closed formula is valid; backends check the negation for
// satisfiability and return a model when one exists.
package solver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"

	"kanso-verify/internal/logic"
)

var log = commonlog.GetLogger("kanso.verify.solver")

var tracer = otel.Tracer("kanso-verify/solver")

type Status string

const (
	// Unsat means the negated query has no model, so the formula is valid.
	Unsat Status = "unsat"
	// Sat means the formula has a counterexample.
	Sat     Status = "sat"
	Unknown Status = "unknown"
)

// Query asks whether Formula is valid. Timeout overrides the backend's
// default when positive.
type Query struct {
	Name    string
	Formula logic.Term
	Timeout time.Duration
}

// Assignment is one entry of a model. Name is a variable name or a storage
// application such as "State.balances@pre[owner]".
type Assignment struct {
	Name  string
	Value string
}

type Model struct {
	Assignments []Assignment
}

func (m *Model) Lookup(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, a := range m.Assignments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (m *Model) String() string {
	if m == nil {
		return ""
	}
	parts := make([]string, len(m.Assignments))
	for i, a := range m.Assignments {
		parts[i] = a.Name + " = " + a.Value
	}
	return strings.Join(parts, ", ")
}

type Result struct {
	Status Status
	Model  *Model // set for Sat when the backend produced one
	Reason string // why the backend gave up, for Unknown
}

func (r *Result) String() string {
	switch r.Status {
	case Sat:
		if r.Model != nil && len(r.Model.Assignments) > 0 {
			return fmt.Sprintf("sat (%s)", r.Model)
		}
	case Unknown:
		if r.Reason != "" {
			return fmt.Sprintf("unknown (%s)", r.Reason)
		}
	}
	return string(r.Status)
}

// Solver checks queries. Implementations must honour ctx cancellation and
// report it as Unknown rather than as an error.
type Solver interface {
	Check(ctx context.Context, q *Query) (*Result, error)
}
