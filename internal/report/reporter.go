package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Reporter accumulates results in the order they are added. It is safe for
// concurrent use; results are never removed or changed.
type Reporter struct {
	mu      sync.Mutex
	results []*Result
}

func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) Add(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Reporter) Results() []*Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Result, len(r.results))
	copy(out, r.results)
	return out
}

// Lines is the plain report: for every function its label line followed by
// its verdict line.
func (r *Reporter) Lines() []string {
	var out []string
	for _, res := range r.Results() {
		out = append(out, res.Label(), string(res.Verdict.Kind))
	}
	return out
}

// Details describes every non-Verified verdict, one block per function.
func (r *Reporter) Details() string {
	var b strings.Builder
	for _, res := range r.Results() {
		switch res.Verdict.Kind {
		case Falsified:
			fmt.Fprintf(&b, "%s: falsified\n", res.Label())
			if w := res.Verdict.Witness; w != nil {
				fmt.Fprintf(&b, "  %s\n", w)
				if w.Clause != "" {
					fmt.Fprintf(&b, "  clause: %s\n", w.Clause)
				}
				for _, a := range w.Assignments {
					fmt.Fprintf(&b, "    %s = %s\n", a.Name, a.Value)
				}
			}
		case Error:
			fmt.Fprintf(&b, "%s: %s\n", res.Label(), res.Verdict.Reason)
			if d := res.Verdict.Detail; d != "" {
				fmt.Fprintf(&b, "  %s\n", d)
			}
		}
	}
	return b.String()
}

func (r *Reporter) Counts() map[Kind]int {
	counts := map[Kind]int{}
	for _, res := range r.Results() {
		counts[res.Verdict.Kind]++
	}
	return counts
}

// ExitCode is 2 when any function ended in Error, 1 when any was
// Falsified and 0 otherwise.
func (r *Reporter) ExitCode() int {
	counts := r.Counts()
	switch {
	case counts[Error] > 0:
		return 2
	case counts[Falsified] > 0:
		return 1
	}
	return 0
}

// Write prints the report lines with colored verdicts, followed by the
// details when asked for. Color follows fatih/color's terminal detection.
func (r *Reporter) Write(w io.Writer, details bool) error {
	bold := color.New(color.Bold).SprintFunc()
	for _, res := range r.Results() {
		if _, err := fmt.Fprintln(w, bold(res.Label())); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, verdictColor(res.Verdict.Kind)(string(res.Verdict.Kind))); err != nil {
			return err
		}
	}
	if details {
		if d := r.Details(); d != "" {
			if _, err := fmt.Fprint(w, "\n"+d); err != nil {
				return err
			}
		}
	}
	return nil
}

func verdictColor(k Kind) func(a ...interface{}) string {
	switch k {
	case Verified:
		return color.New(color.FgGreen).SprintFunc()
	case Falsified:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
	return color.New(color.FgYellow).SprintFunc()
}
