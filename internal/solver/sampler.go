package solver

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sort"

	"kanso-verify/internal/logic"
)

// DefaultPool is the value pool of a Sampler. Small values make storage
// keys collide often, which is where update and frame bugs show up.
var DefaultPool = []int64{0, 1, 2, 3, 7}

// Sampler searches for counterexamples by evaluating the formula under
// random assignments drawn from a small pool. It can refute a query but
// never prove one: when no counterexample turns up the result is Unknown.
// Existentials are expanded over the pool, so they must bind few variables.
// A sample that only fails because no pool value witnesses an existential
// is not reported as a counterexample.
type Sampler struct {
	Pool  []int64
	Tries int
	Seed  int64
}

func NewSampler() *Sampler {
	return &Sampler{Pool: DefaultPool, Tries: 2000, Seed: 1}
}

func (s *Sampler) Check(ctx context.Context, q *Query) (*Result, error) {
	_, span := tracer.Start(ctx, "solver.sample")
	defer span.End()

	f, err := s.expand(q.Formula)
	if err != nil {
		return &Result{Status: Unknown, Reason: err.Error()}, nil
	}
	tries := s.Tries
	if tries <= 0 {
		tries = 2000
	}
	rng := rand.New(rand.NewSource(s.Seed))
	vars := logic.FreeVars(f)

	// samples that hit an unguarded division by zero say nothing
	skipped := 0
	unwitnessed := 0
	for i := 0; i < tries; i++ {
		if ctx.Err() != nil {
			return &Result{Status: Unknown, Reason: "cancelled"}, nil
		}
		m := s.model(rng, vars)
		v, err := logic.Eval(f, m)
		if err != nil {
			skipped++
			continue
		}
		if b, _ := v.(bool); b {
			continue
		}
		if s.genuine(q.Formula, m) {
			return &Result{Status: Sat, Model: toModel(m)}, nil
		}
		unwitnessed++
	}
	if unwitnessed > 0 {
		return &Result{Status: Unknown, Reason: fmt.Sprintf("%d samples lack an existential witness in the pool", unwitnessed)}, nil
	}
	if skipped == tries {
		return &Result{Status: Unknown, Reason: "every sample was undefined"}, nil
	}
	return &Result{Status: Unknown, Reason: fmt.Sprintf("no counterexample in %d samples", tries-skipped)}, nil
}

func (s *Sampler) pool() []int64 {
	if len(s.Pool) == 0 {
		return DefaultPool
	}
	return s.Pool
}

func (s *Sampler) pick(rng *rand.Rand) *big.Int {
	pool := s.pool()
	return big.NewInt(pool[rng.Intn(len(pool))])
}

func (s *Sampler) model(rng *rand.Rand, vars []*logic.Var) *logic.MapModel {
	m := &logic.MapModel{Vars: map[string]any{}, Store: map[string]*big.Int{}}
	for _, v := range vars {
		if v.Kind == logic.BoolSort {
			m.Vars[v.Name] = rng.Intn(2) == 0
		} else {
			m.Vars[v.Name] = s.pick(rng)
		}
	}
	m.Default = func(storage, label string, keys []*big.Int) *big.Int {
		key := logic.StoreKey(storage, label, keys)
		if v, ok := m.Store[key]; ok {
			return v
		}
		v := s.pick(rng)
		m.Store[key] = v
		return v
	}
	return m
}

// expand replaces each existential by the disjunction of its body over
// every pool assignment of the bound variables.
func (s *Sampler) expand(t logic.Term) (logic.Term, error) {
	var err error
	out := logic.Transform(t, func(n logic.Term) logic.Term {
		ex, ok := n.(*logic.Exists)
		if !ok || err != nil {
			return n
		}
		if len(ex.Vars) > 3 {
			err = fmt.Errorf("existential over %d variables", len(ex.Vars))
			return n
		}
		var cases []logic.Term
		s.assignments(ex.Vars, map[string]logic.Term{}, func(m map[string]logic.Term) {
			cases = append(cases, logic.Subst(ex.Body, m))
		})
		return logic.Or(cases...)
	})
	return out, err
}

// genuine reports whether m falsifies t whatever witnesses its positive
// existentials might have outside the pool. Without existentials the
// expanded formula is exact.
func (s *Sampler) genuine(t logic.Term, m logic.Model) bool {
	if !hasExists(t) {
		return true
	}
	relaxed, ok := s.relax(t, true)
	if !ok {
		return false
	}
	v, err := logic.Eval(relaxed, m)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return !b
}

// relax weakens t: an existential at positive polarity becomes true, one
// at negative polarity keeps its pool expansion, which can only be
// stronger than it. ok is false when an existential has no fixed polarity.
func (s *Sampler) relax(t logic.Term, positive bool) (logic.Term, bool) {
	if !hasExists(t) {
		return t, true
	}
	switch x := t.(type) {
	case *logic.Exists:
		if positive {
			return logic.True, true
		}
		f, err := s.expand(x)
		return f, err == nil
	case *logic.App:
		switch x.Op {
		case logic.OpNot:
			a, ok := s.relax(x.Args[0], !positive)
			return logic.Not(a), ok
		case logic.OpImplies:
			a, okA := s.relax(x.Args[0], !positive)
			b, okB := s.relax(x.Args[1], positive)
			return logic.Implies(a, b), okA && okB
		case logic.OpAnd, logic.OpOr:
			args := make([]logic.Term, len(x.Args))
			for i, a := range x.Args {
				r, ok := s.relax(a, positive)
				if !ok {
					return t, false
				}
				args[i] = r
			}
			return logic.Apply(x.Op, args...), true
		}
	case *logic.Ite:
		if hasExists(x.Cond) {
			return t, false
		}
		a, okA := s.relax(x.Then, positive)
		b, okB := s.relax(x.Else, positive)
		return logic.IteT(x.Cond, a, b), okA && okB
	}
	return t, false
}

func hasExists(t logic.Term) bool {
	found := false
	logic.Walk(t, func(n logic.Term, _ map[string]bool) {
		if _, ok := n.(*logic.Exists); ok {
			found = true
		}
	})
	return found
}

func (s *Sampler) assignments(vars []*logic.Var, m map[string]logic.Term, visit func(map[string]logic.Term)) {
	if len(vars) == 0 {
		visit(m)
		return
	}
	v := vars[0]
	values := make([]logic.Term, 0, len(s.pool()))
	if v.Kind == logic.BoolSort {
		values = append(values, logic.True, logic.False)
	} else {
		for _, p := range s.pool() {
			values = append(values, logic.Int(p))
		}
	}
	for _, val := range values {
		next := make(map[string]logic.Term, len(m)+1)
		for k, x := range m {
			next[k] = x
		}
		next[v.Name] = val
		s.assignments(vars[1:], next, visit)
	}
}

func toModel(m *logic.MapModel) *Model {
	out := &Model{}
	for name, v := range m.Vars {
		out.Assignments = append(out.Assignments, Assignment{Name: name, Value: fmt.Sprint(v)})
	}
	for key, v := range m.Store {
		out.Assignments = append(out.Assignments, Assignment{Name: key, Value: v.String()})
	}
	sort.Slice(out.Assignments, func(i, j int) bool { return out.Assignments[i].Name < out.Assignments[j].Name })
	return out
}
