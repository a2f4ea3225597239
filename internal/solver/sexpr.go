package solver

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var sexprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `\|[^|]*\|`},
	{Name: "String", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Paren", Pattern: `[()]`},
	{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
	{Name: "Symbol", Pattern: `[a-zA-Z~!@$%^&*_+=<>.?/:\-][a-zA-Z0-9~!@$%^&*_+=<>.?/:\-#]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// sexpr is one solver response expression: an atom or a list.
type sexpr struct {
	Atom  *string  `  @(Quoted | String | Number | Symbol)`
	Open  bool     `| ( @"("`
	Items []*sexpr `    @@* ")" )`
}

type sexprs struct {
	Exprs []*sexpr `@@*`
}

var sexprParser = participle.MustBuild[sexprs](
	participle.Lexer(sexprLexer),
	participle.Elide("Whitespace"),
)

func parseSexprs(src string) ([]*sexpr, error) {
	out, err := sexprParser.ParseString("solver", src)
	if err != nil {
		return nil, fmt.Errorf("malformed solver output: %w", err)
	}
	return out.Exprs, nil
}

func (s *sexpr) String() string {
	if s.Atom != nil {
		return *s.Atom
	}
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = it.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// value renders a model value: integers, (- n), true and false.
func (s *sexpr) value() string {
	if s.Atom != nil {
		return strings.Trim(*s.Atom, "|")
	}
	if len(s.Items) == 2 && s.Items[0].Atom != nil && *s.Items[0].Atom == "-" {
		return "-" + s.Items[1].value()
	}
	return s.String()
}

// parseModel reads a get-value response. The solver answers in request
// order, so entries are matched to observables by position.
func parseModel(src string, observables []string) (*Model, error) {
	exprs, err := parseSexprs(src)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("empty model response")
	}
	top := exprs[0]
	if top.Atom != nil {
		return nil, fmt.Errorf("unexpected model response %s", top)
	}
	if top.isError() {
		return nil, fmt.Errorf("solver error: %s", top.Items[1].value())
	}
	if len(top.Items) != len(observables) {
		return nil, fmt.Errorf("model has %d entries, want %d", len(top.Items), len(observables))
	}

	m := &Model{}
	for i, pair := range top.Items {
		if pair.Atom != nil || len(pair.Items) != 2 {
			return nil, fmt.Errorf("unexpected model entry %s", pair)
		}
		m.Assignments = append(m.Assignments, Assignment{Name: observables[i], Value: pair.Items[1].value()})
	}
	return m, nil
}

func (s *sexpr) isError() bool {
	return s.Atom == nil && len(s.Items) == 2 && s.Items[0].Atom != nil && *s.Items[0].Atom == "error"
}
