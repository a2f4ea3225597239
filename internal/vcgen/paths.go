package vcgen

import (
	"fmt"
	"strings"

	"kanso-verify/internal/ir"
	"kanso-verify/internal/logic"
)

// step is one primitive node on a path. call numbers Call steps along the
// path, starting at 1.
type step struct {
	node ir.Node
	call int
}

type path struct {
	steps    []step
	branches []string
	calls    int
	exit     *ir.Return // nil when the body falls off its end
}

func (p path) with(n ir.Node) path {
	steps := make([]step, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	s := step{node: n}
	if _, ok := n.(*ir.Call); ok {
		p.calls++
		s.call = p.calls
	}
	p.steps = append(steps, s)
	return p
}

func (p path) branch(cond logic.Term, pos int, side string) path {
	branches := make([]string, len(p.branches), len(p.branches)+1)
	copy(branches, p.branches)
	p.branches = append(branches, fmt.Sprintf("line %d: %s", pos, side))
	return p.with(&ir.Assume{Cond: cond, Origin: "branch"})
}

func (p path) String() string {
	if len(p.branches) == 0 {
		return "single path"
	}
	return strings.Join(p.branches, ", ")
}

// frame is an active inline expansion: a Return tagged with id resumes k.
type frame struct {
	id     string
	inline *ir.Inline
	k      func(path)
	outer  *frame
}

func (f *frame) find(id string) *frame {
	for ; f != nil; f = f.outer {
		if f.id == id {
			return f
		}
	}
	return nil
}

// enumerator lists every path through a program tree. Control flow is
// followed with continuations, so a Return inside an inlined helper
// resumes after the helper's call site.
type enumerator struct {
	max   int
	paths []path
	err   error
}

func (e *enumerator) run(body ir.Node) ([]path, error) {
	e.walk(body, path{}, nil, e.finish)
	return e.paths, e.err
}

func (e *enumerator) finish(p path) {
	if e.err != nil {
		return
	}
	if len(e.paths) >= e.max {
		e.err = ErrPathLimit
		return
	}
	e.paths = append(e.paths, p)
}

func (e *enumerator) walk(n ir.Node, p path, fr *frame, k func(path)) {
	if e.err != nil {
		return
	}

	switch x := n.(type) {
	case *ir.Seq:
		e.seq(x.Nodes, p, fr, k)

	case *ir.If:
		e.walk(x.Then, p.branch(x.Cond, x.Pos.Line, "then"), fr, k)
		e.walk(x.Else, p.branch(logic.Not(x.Cond), x.Pos.Line, "else"), fr, k)

	case *ir.Inline:
		e.walk(x.Body, p, &frame{id: x.Frame, inline: x, k: k, outer: fr}, k)

	case *ir.Return:
		if x.Frame == "" {
			p.exit = x
			e.finish(p)
			return
		}
		f := fr.find(x.Frame)
		if f == nil {
			e.err = fmt.Errorf("return from unknown frame %s", x.Frame)
			return
		}
		for i, name := range f.inline.Results {
			if i < len(x.Values) {
				p = p.with(&ir.Assign{Name: name, Value: x.Values[i], Pos: x.Pos})
			}
		}
		f.k(p)

	case *ir.Assume:
		// a failed require! ends the path without obligations
		if x.Cond == logic.False {
			return
		}
		k(p.with(x))

	default:
		k(p.with(n))
	}
}

func (e *enumerator) seq(nodes []ir.Node, p path, fr *frame, k func(path)) {
	if len(nodes) == 0 {
		k(p)
		return
	}
	e.walk(nodes[0], p, fr, func(next path) {
		e.seq(nodes[1:], next, fr, k)
	})
}
