package ir

import (
	"fmt"

	"kanso-verify/internal/logic"
)

// DefaultInlineDepth bounds nested expansion of helpers.
const DefaultInlineDepth = 16

// Inliner expands calls to functions that have no contract. Contracted
// calls are left as Call nodes.
type Inliner struct {
	bodies     map[string]*Function
	contracted func(name string) bool
	maxDepth   int
	frames     int
}

func NewInliner(bodies map[string]*Function, contracted func(name string) bool, maxDepth int) *Inliner {
	if maxDepth <= 0 {
		maxDepth = DefaultInlineDepth
	}
	return &Inliner{bodies: bodies, contracted: contracted, maxDepth: maxDepth}
}

// Inline returns a copy of fn whose uncontracted calls are expanded in
// place. fn itself is not modified.
func (in *Inliner) Inline(fn *Function) (*Function, error) {
	in.frames = 0
	body, err := in.node(fn.Body, 0)
	if err != nil {
		return nil, fmt.Errorf("inlining into %s: %w", fn.Name, err)
	}
	out := *fn
	out.Body = body
	return &out, nil
}

func (in *Inliner) node(n Node, depth int) (Node, error) {
	switch x := n.(type) {
	case *Seq:
		seq := &Seq{Pos: x.Pos, Nodes: make([]Node, len(x.Nodes))}
		for i, c := range x.Nodes {
			expanded, err := in.node(c, depth)
			if err != nil {
				return nil, err
			}
			seq.Nodes[i] = expanded
		}
		return seq, nil

	case *If:
		then, err := in.node(x.Then, depth)
		if err != nil {
			return nil, err
		}
		els, err := in.node(x.Else, depth)
		if err != nil {
			return nil, err
		}
		return &If{Cond: x.Cond, Then: then, Else: els, Pos: x.Pos}, nil

	case *Inline:
		body, err := in.node(x.Body, depth+1)
		if err != nil {
			return nil, err
		}
		out := *x
		out.Body = body
		return &out, nil

	case *Call:
		if in.contracted(x.Callee) {
			return x, nil
		}
		return in.expand(x, depth)
	}
	return n, nil
}

func (in *Inliner) expand(call *Call, depth int) (Node, error) {
	callee, ok := in.bodies[call.Callee]
	if !ok {
		return nil, fmt.Errorf("no body for %s", call.Callee)
	}
	if depth >= in.maxDepth {
		return nil, fmt.Errorf("helper calls nested deeper than %d at %s", in.maxDepth, call.Callee)
	}

	in.frames++
	frame := fmt.Sprintf("%s#%d", call.Callee, in.frames)
	r := renamer{prefix: frame + ".", frame: frame}

	nodes := make([]Node, 0, len(call.Args)+1)
	for i, p := range callee.Signature.Params {
		nodes = append(nodes, &Assign{Name: r.name(p.Name), Value: call.Args[i], Pos: call.Pos})
	}
	body, err := in.node(r.node(callee.Body), depth+1)
	if err != nil {
		return nil, err
	}
	nodes = append(nodes, body)

	return &Inline{
		Callee:  call.Callee,
		Frame:   frame,
		Body:    &Seq{Nodes: nodes, Pos: callee.Pos},
		Results: call.Results,
		Pos:     call.Pos,
	}, nil
}

// renamer moves a callee body into its own frame: every local gets the
// frame prefix and the callee's own returns are tagged with the frame.
type renamer struct {
	prefix string
	frame  string
}

func (r renamer) name(n string) string { return r.prefix + n }

func (r renamer) names(ns []string) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = r.name(n)
	}
	return out
}

func (r renamer) term(t logic.Term) logic.Term {
	return logic.Transform(t, func(n logic.Term) logic.Term {
		if v, ok := n.(*logic.Var); ok {
			return &logic.Var{Name: r.name(v.Name), Kind: v.Kind}
		}
		return n
	})
}

func (r renamer) terms(ts []logic.Term) []logic.Term {
	out := make([]logic.Term, len(ts))
	for i, t := range ts {
		out[i] = r.term(t)
	}
	return out
}

func (r renamer) node(n Node) Node {
	switch x := n.(type) {
	case *Assign:
		return &Assign{Name: r.name(x.Name), Value: r.term(x.Value), Pos: x.Pos}
	case *If:
		return &If{Cond: r.term(x.Cond), Then: r.node(x.Then), Else: r.node(x.Else), Pos: x.Pos}
	case *Seq:
		seq := &Seq{Pos: x.Pos, Nodes: make([]Node, len(x.Nodes))}
		for i, c := range x.Nodes {
			seq.Nodes[i] = r.node(c)
		}
		return seq
	case *Read:
		return &Read{Name: r.name(x.Name), Storage: x.Storage, Keys: r.terms(x.Keys), Pos: x.Pos}
	case *Write:
		return &Write{Storage: x.Storage, Keys: r.terms(x.Keys), Value: r.term(x.Value), Pos: x.Pos}
	case *Call:
		return &Call{Callee: x.Callee, Args: r.terms(x.Args), Results: r.names(x.Results), Pos: x.Pos}
	case *Return:
		frame := x.Frame
		if frame == "" {
			frame = r.frame
		}
		return &Return{Values: r.terms(x.Values), Fields: x.Fields, Frame: frame, Pos: x.Pos}
	case *Assume:
		return &Assume{Cond: r.term(x.Cond), Origin: x.Origin, Pos: x.Pos}
	case *Assert:
		return &Assert{Cond: r.term(x.Cond), Pos: x.Pos}
	case *Inline:
		return &Inline{Callee: x.Callee, Frame: x.Frame, Body: r.node(x.Body), Results: r.names(x.Results), Pos: x.Pos}
	}
	return n
}
