package vcgen

import (
	"fmt"

	"kanso-verify/internal/ir"
	"kanso-verify/internal/logic"
	"kanso-verify/internal/spec"
	"kanso-verify/internal/storage"
)

// wp transforms q backwards through steps. Storage applications labelled
// Current in the result denote the state before the first step.
func (g *generator) wp(steps []step, q logic.Term) (logic.Term, error) {
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		switch x := st.node.(type) {
		case *ir.Assign:
			q = logic.Subst(q, map[string]logic.Term{x.Name: x.Value})
		case *ir.Assume:
			q = logic.Implies(x.Cond, q)
		case *ir.Assert:
			// proven separately; the rest of the path may rely on it
			q = logic.Implies(x.Cond, q)
		case *ir.Read:
			q = logic.Subst(q, map[string]logic.Term{x.Name: storage.Read(&storage.Variable{Name: x.Storage}, x.Keys)})
		case *ir.Write:
			q = storage.Write(q, x.Storage, x.Keys, x.Value)
		case *ir.Call:
			inst, err := g.instance(x, st.call)
			if err != nil {
				return nil, err
			}
			q = inst.transform(q)
		default:
			return nil, fmt.Errorf("unexpected %T on path", st.node)
		}
	}
	return q, nil
}

type instanceKey struct {
	call *ir.Call
	n    int
}

// instance is a callee summary instantiated at one call site on one path.
// Every name it introduces is fresh for that site.
type instance struct {
	snap    string
	results map[string]logic.Term // caller result name -> fresh result
	pre     logic.Term            // over the state before the call
	post    logic.Term            // snap = before the call, Current = after
	updates map[string]storage.PointUpdate

	witnesses     []*logic.Var // logicals the precondition does not fix
	witnessRanges logic.Term
}

// transform is wp(call, q): if the precondition holds, the postcondition
// is assumed for fresh results and the callee's update clauses are applied
// as writes.
func (in *instance) transform(q logic.Term) logic.Term {
	q = logic.Subst(q, in.results)
	t := logic.Implies(in.post, q)
	t = storage.Update(t, in.updates)
	t = logic.Relabel(t, in.snap, logic.Current)
	return logic.Implies(in.pre, t)
}

// obligation is what the caller must establish before the call.
func (in *instance) obligation() logic.Term {
	return logic.NewExists(in.witnesses, logic.And(in.witnessRanges, in.pre))
}

func (g *generator) instance(call *ir.Call, n int) (*instance, error) {
	key := instanceKey{call: call, n: n}
	if in, ok := g.instances[key]; ok {
		return in, nil
	}

	cs, ok := g.summaries[call.Callee]
	if !ok {
		return nil, fmt.Errorf("no verified contract for callee %s", call.Callee)
	}
	sig := cs.Signature
	if len(sig.Params) != len(call.Args) {
		return nil, fmt.Errorf("call to %s passes %d arguments, want %d", call.Callee, len(call.Args), len(sig.Params))
	}

	prefix := fmt.Sprintf("%s@%d.", call.Callee, n)
	in := &instance{
		snap:    fmt.Sprintf("call%d", n),
		results: map[string]logic.Term{},
		updates: map[string]storage.PointUpdate{},
	}

	// Current-state bindings of the callee's names at the call site.
	bind := map[string]logic.Term{}
	for i, p := range sig.Params {
		bind[p.Name] = call.Args[i]
	}

	pre := logic.Subst(cs.Pre(), bind)
	var ranges []logic.Term
	for _, l := range cs.Logicals {
		if e, ok := definedBy(pre, l.Name, cs.Logicals); ok {
			bind[l.Name] = e
			continue
		}
		v := &logic.Var{Name: prefix + l.Name, Kind: l.Sort()}
		g.types[v.Name] = l.Type
		bind[l.Name] = v
		in.witnesses = append(in.witnesses, v)
		ranges = append(ranges, spec.Binding{Name: v.Name, Type: l.Type}.RangeAxiom())
	}
	in.pre = logic.Subst(cs.Pre(), bind)
	in.witnessRanges = logic.And(ranges...)

	// The postcondition reads the pre-call state through the snapshot label.
	snapshot := map[string]logic.Term{}
	for name, t := range bind {
		snapshot[name] = logic.Relabel(t, logic.Current, in.snap)
	}
	for j, r := range sig.Results {
		v := &logic.Var{Name: prefix + r.Name, Kind: r.Sort()}
		if g.sized {
			g.types[v.Name] = r.Type
		}
		snapshot[r.Name] = v
		if j < len(call.Results) {
			in.results[call.Results[j]] = v
		}
	}
	in.post = logic.Subst(logic.Relabel(cs.Post(), logic.Pre, in.snap), snapshot)

	for _, u := range cs.Updates {
		keys := make([]logic.Term, len(u.Keys))
		for i, k := range u.Keys {
			keys[i] = logic.Subst(logic.Relabel(k, logic.Pre, logic.Current), bind)
		}
		m := make(map[string]logic.Term, len(bind)+1)
		for name, t := range bind {
			m[name] = t
		}
		m[spec.OldValue] = logic.NewSelect(u.Storage, keys, logic.Current)
		value := logic.Subst(logic.Relabel(u.Value, logic.Pre, logic.Current), m)
		in.updates[u.Storage] = storage.PointUpdate{Keys: keys, Value: value}
	}

	g.instances[key] = in
	return in, nil
}

// definedBy finds a top-level conjunct `name == e` (either way round) where
// e mentions no logical variable, so name can be replaced by e outright.
func definedBy(pre logic.Term, name string, logicals []spec.Binding) (logic.Term, bool) {
	for _, c := range logic.Conjuncts(pre) {
		app, ok := c.(*logic.App)
		if !ok || app.Op != logic.OpEq {
			continue
		}
		for side := 0; side < 2; side++ {
			v, ok := app.Args[side].(*logic.Var)
			if !ok || v.Name != name {
				continue
			}
			other := app.Args[1-side]
			free := true
			for _, l := range logicals {
				if logic.Mentions(other, l.Name) {
					free = false
					break
				}
			}
			if free {
				return other, true
			}
		}
	}
	return nil, false
}
