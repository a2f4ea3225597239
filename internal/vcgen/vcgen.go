// Package vcgen turns a lowered function and its contract into verification
// conditions with a backward weakest-precondition transformer, one path at
// a time.
package vcgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/ir"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/spec"
	"kanso-verify/internal/storage"
)

var log = commonlog.GetLogger("kanso.verify.vcgen")

// DefaultMaxPaths bounds path enumeration when no limit is configured.
const DefaultMaxPaths = 1024

var ErrPathLimit = errors.New("path limit exceeded")

// Kind tags an obligation with what it checks.
type Kind string

const (
	KindPostcondition      Kind = "postcondition"
	KindUpdate             Kind = "storage-update"
	KindCalleePrecondition Kind = "callee-precondition"
	KindAssertion          Kind = "assertion"
	KindUnannotatedWrite   Kind = "unannotated-write"
)

// Obligation is one closed formula that must be valid. Formula already
// carries the precondition and range axioms as antecedents.
type Obligation struct {
	Kind    Kind
	Formula logic.Term
	Storage string // storage variable, for update and unannotated-write
	Callee  string // for callee-precondition
	Clause  string // source text of the clause
	Path    string
	Pos     ast.Position
}

func (o *Obligation) String() string {
	var b strings.Builder
	b.WriteString(string(o.Kind))
	if o.Storage != "" {
		b.WriteString(" " + o.Storage)
	}
	if o.Callee != "" {
		b.WriteString(" of " + o.Callee)
	}
	fmt.Fprintf(&b, " at line %d (%s)", o.Pos.Line, o.Path)
	return b.String()
}

type Options struct {
	MaxPaths int
	// Arithmetic is the mode fn was lowered in. Under ir.Unbounded nothing
	// keeps program values inside their declared types, so parameters,
	// call results and storage get no range axioms.
	Arithmetic ir.Arithmetic
}

type Result struct {
	Function    string
	Obligations []*Obligation
	// Unannotated is set when some path writes a storage variable the
	// contract has no update clause for; no obligations are produced then.
	Unannotated *Obligation
	Paths       int
}

// VC is the conjunction of all obligations.
func (r *Result) VC() logic.Term {
	ts := make([]logic.Term, len(r.Obligations))
	for i, o := range r.Obligations {
		ts[i] = o.Formula
	}
	return logic.And(ts...)
}

// Generate builds the obligations for fn against fs. Calls in fn must have
// their callee in summaries; uncontracted calls are expected to be inlined
// already.
func Generate(fn *ir.Function, fs *spec.FunctionSpec, layout *storage.Layout, summaries map[string]*spec.FunctionSpec, opts Options) (*Result, error) {
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = DefaultMaxPaths
	}

	paths, err := (&enumerator{max: opts.MaxPaths}).run(fn.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}

	g := newGenerator(fs, layout, summaries, opts.Arithmetic != ir.Unbounded)
	result := &Result{Function: fn.Name, Paths: len(paths)}

	for _, p := range paths {
		if ob := g.unannotatedWrite(p); ob != nil {
			result.Unannotated = ob
			log.Infof("%s: unannotated write to %s on %s", fn.Name, ob.Storage, ob.Path)
			return result, nil
		}
	}

	for _, p := range paths {
		if err := g.path(p); err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
	}

	result.Obligations = g.obligations
	log.Debugf("%s: %d paths, %d obligations", fn.Name, len(paths), len(g.obligations))
	return result, nil
}

type generator struct {
	spec      *spec.FunctionSpec
	layout    *storage.Layout
	summaries map[string]*spec.FunctionSpec

	types       map[string]string // free variable -> type, for range axioms
	sized       bool              // program values stay in their type's range
	instances   map[instanceKey]*instance
	seen        map[string]bool
	obligations []*Obligation
}

func newGenerator(fs *spec.FunctionSpec, layout *storage.Layout, summaries map[string]*spec.FunctionSpec, sized bool) *generator {
	g := &generator{
		spec:      fs,
		layout:    layout,
		summaries: summaries,
		types:     map[string]string{},
		sized:     sized,
		instances: map[instanceKey]*instance{},
		seen:      map[string]bool{},
	}
	if sized {
		for _, p := range fs.Signature.Params {
			g.types[p.Name] = p.Type
		}
	}
	for _, l := range fs.Logicals {
		g.types[l.Name] = l.Type
	}
	return g
}

func (g *generator) unannotatedWrite(p path) *Obligation {
	for _, st := range p.steps {
		var written []string
		callee := ""
		switch x := st.node.(type) {
		case *ir.Write:
			written = []string{x.Storage}
		case *ir.Call:
			if cs, ok := g.summaries[x.Callee]; ok {
				callee = x.Callee
				for _, u := range cs.Updates {
					written = append(written, u.Storage)
				}
			}
		}
		for _, s := range written {
			if _, ok := g.spec.UpdateFor(s); !ok {
				return &Obligation{
					Kind:    KindUnannotatedWrite,
					Formula: logic.False,
					Storage: s,
					Callee:  callee,
					Path:    p.String(),
					Pos:     st.node.NodePos(),
				}
			}
		}
	}
	return nil
}

func (g *generator) path(p path) error {
	desc := p.String()

	for i, st := range p.steps {
		switch x := st.node.(type) {
		case *ir.Assert:
			goal, err := g.wp(p.steps[:i], x.Cond)
			if err != nil {
				return err
			}
			g.add(&Obligation{Kind: KindAssertion, Path: desc, Pos: x.Pos, Clause: x.Cond.String()}, goal)

		case *ir.Call:
			inst, err := g.instance(x, st.call)
			if err != nil {
				return err
			}
			goal, err := g.wp(p.steps[:i], inst.obligation())
			if err != nil {
				return err
			}
			g.add(&Obligation{Kind: KindCalleePrecondition, Callee: x.Callee, Path: desc, Pos: x.Pos}, goal)
		}
	}

	binding := map[string]logic.Term{}
	if p.exit != nil {
		for i, field := range p.exit.Fields {
			binding[field] = p.exit.Values[i]
		}
	}

	for _, c := range g.spec.Ensures {
		goal, err := g.wp(p.steps, logic.Subst(c.Formula, binding))
		if err != nil {
			return err
		}
		g.add(&Obligation{Kind: KindPostcondition, Clause: c.Text, Path: desc, Pos: c.Pos}, goal)
	}

	for _, u := range g.spec.Updates {
		goal, err := g.wp(p.steps, g.updateGoal(u))
		if err != nil {
			return err
		}
		g.add(&Obligation{Kind: KindUpdate, Storage: u.Storage, Clause: u.Text, Path: desc, Pos: u.Pos}, goal)
	}
	return nil
}

// updateGoal states the exit value of the updated map at an arbitrary key:
// the clause value at the clause keys, the entry value everywhere else.
func (g *generator) updateGoal(u *spec.Update) logic.Term {
	v, _ := g.layout.Lookup(u.Storage)
	keys := make([]logic.Term, len(u.Keys))
	for i := range u.Keys {
		name := fmt.Sprintf("%s#k%d", u.Storage, i)
		keys[i] = logic.IntVar(name)
		if v != nil && i < len(v.KeyTypes) {
			g.types[name] = v.KeyTypes[i]
		}
	}

	old := logic.NewSelect(u.Storage, u.Keys, logic.Pre)
	value := logic.Subst(u.Value, map[string]logic.Term{spec.OldValue: old})
	post := logic.NewSelect(u.Storage, keys, logic.Current)
	frame := logic.NewSelect(u.Storage, keys, logic.Pre)
	return logic.Eq(post, logic.IteT(logic.KeysEqual(keys, u.Keys), value, frame))
}

// add closes body over the entry state and records it unless it is
// trivially valid or already present.
func (g *generator) add(ob *Obligation, body logic.Term) {
	body = logic.Relabel(body, logic.Current, logic.Pre)
	pre := logic.Relabel(g.spec.Pre(), logic.Current, logic.Pre)
	ob.Formula = logic.Implies(logic.And(pre, g.ranges(pre, body)), body)

	if ob.Formula == logic.True {
		return
	}
	key := string(ob.Kind) + "|" + ob.Formula.String()
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	g.obligations = append(g.obligations, ob)
}

func (g *generator) ranges(terms ...logic.Term) logic.Term {
	var conj []logic.Term
	for _, v := range logic.FreeVars(terms...) {
		if typ, ok := g.types[v.Name]; ok {
			conj = append(conj, spec.Binding{Name: v.Name, Type: typ}.RangeAxiom())
		}
	}
	if g.sized {
		conj = append(conj, g.layout.RangeAxioms(terms...))
	}
	return logic.And(conj...)
}
