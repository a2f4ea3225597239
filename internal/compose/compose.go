// Package compose verifies every function of a contract in call-graph
// order. Callees with a contract are verified first and their contracts
// are published as summaries for their callers; functions without a
// contract are inlined into the functions that call them.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kanso-verify/internal/ast"
	kerrors "kanso-verify/internal/errors"
	"kanso-verify/internal/ir"
	"kanso-verify/internal/report"
	"kanso-verify/internal/solver"
	"kanso-verify/internal/spec"
	"kanso-verify/internal/storage"
	"kanso-verify/internal/vcgen"
)

var log = commonlog.GetLogger("kanso.verify.compose")

var tracer = otel.Tracer("kanso-verify/compose")

type Options struct {
	Arithmetic  ir.Arithmetic
	MaxPaths    int
	InlineDepth int
	Jobs        int
	// Timeout bounds each solver query; zero leaves it to the backend.
	Timeout time.Duration
	// SolverID names the solver setup in cache fingerprints.
	SolverID string
	// DumpSMT receives the SMT-LIB2 script of every function's VC.
	DumpSMT io.Writer
}

func (o Options) settings() string {
	return fmt.Sprintf("arithmetic=%s max_paths=%d inline_depth=%d solver=%s",
		o.Arithmetic, o.MaxPaths, o.InlineDepth, o.SolverID)
}

type Composer struct {
	solver  solver.Solver
	opts    Options
	cache   Cache
	metrics *Metrics

	dumpMu sync.Mutex
}

func New(s solver.Solver, opts Options) *Composer {
	if opts.Arithmetic == "" {
		opts.Arithmetic = ir.Checked
	}
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = vcgen.DefaultMaxPaths
	}
	if opts.InlineDepth <= 0 {
		opts.InlineDepth = ir.DefaultInlineDepth
	}
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	return &Composer{solver: s, opts: opts}
}

func (c *Composer) WithCache(cache Cache) *Composer {
	c.cache = cache
	return c
}

func (c *Composer) WithMetrics(m *Metrics) *Composer {
	c.metrics = m
	return c
}

// unit is one function of the contract being verified.
type unit struct {
	name string
	fn   *ast.Function
	pos  ast.Position
	sig  *spec.Signature
	spec *spec.FunctionSpec
	body *ir.Function

	// failure is a verdict decided before any task runs.
	failure *report.Verdict
	diags   []kerrors.CompilerError
	// inlined units have no contract and are checked inside their callers.
	inlined bool
	inlines []string // helpers expanded into this unit's task
	needs   []string // callees whose verdict this unit's task waits for

	done   chan struct{} // closed once result is set
	result *report.Result
}

func (u *unit) fail(v report.Verdict) {
	if u.failure == nil {
		u.failure = &v
	}
}

func failWith(u *unit, errs []kerrors.CompilerError) {
	u.diags = append(u.diags, errs...)
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = fmt.Sprintf("%d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
	}
	u.fail(report.ErrorVerdict("%s", strings.Join(msgs, "; ")))
}

// registry holds the published contracts of verified functions. Entries
// are only ever added.
type registry struct {
	mu    sync.RWMutex
	specs map[string]*spec.FunctionSpec
}

func (r *registry) publish(name string, fs *spec.FunctionSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[name]; !ok {
		r.specs[name] = fs
	}
}

func (r *registry) get(name string) (*spec.FunctionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fs, ok := r.specs[name]
	return fs, ok
}

type run struct {
	layout    *storage.Layout
	names     []string
	units     map[string]*unit
	bodies    map[string]*ir.Function
	graph     *Graph
	order     []string
	summaries *registry
}

// Verify checks every function of contract and returns the report in
// call-graph order.
func (c *Composer) Verify(ctx context.Context, contract *ast.Contract) *report.Reporter {
	ctx, span := tracer.Start(ctx, "compose.verify", trace.WithAttributes(
		attribute.String("contract", contract.Name.Value),
	))
	defer span.End()

	r := c.prepare(contract)
	log.Infof("%s: %d functions, order %s", contract.Name.Value, len(r.names), strings.Join(r.order, ", "))

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Jobs)
	for _, name := range r.order {
		u := r.units[name]
		if u.inlined {
			continue
		}
		// callees are started before their callers, so a task waiting on
		// a barrier never holds the slot its callee needs
		g.Go(func() error {
			c.runUnit(ctx, r, u)
			return nil
		})
	}
	_ = g.Wait()

	return c.collect(r)
}

func (c *Composer) prepare(contract *ast.Contract) *run {
	r := &run{
		units:     map[string]*unit{},
		bodies:    map[string]*ir.Function{},
		summaries: &registry{specs: map[string]*spec.FunctionSpec{}},
	}

	layout, layoutErrs := storage.NewLayout(contract)
	r.layout = layout
	for _, v := range layout.Variables() {
		log.Debugf("storage %s", v)
	}

	sigs := map[string]*spec.Signature{}
	for _, fn := range contract.Functions() {
		name := fn.Name.Value
		if prev, dup := r.units[name]; dup {
			failWith(prev, []kerrors.CompilerError{kerrors.DuplicateDeclaration(name, fn.Name.Pos)})
			continue
		}
		u := &unit{name: name, fn: fn, pos: fn.Name.Pos, done: make(chan struct{})}
		r.units[name] = u
		r.names = append(r.names, name)

		if len(layoutErrs) > 0 {
			failWith(u, layoutErrs)
			continue
		}
		sig, errs := spec.NewSignature(fn)
		if len(errs) > 0 {
			failWith(u, errs)
			continue
		}
		u.sig = sig
		sigs[name] = sig
	}

	for _, name := range r.names {
		u := r.units[name]
		if u.failure != nil {
			continue
		}
		fs, errs := spec.Parse(u.fn, u.sig, layout)
		if len(errs) > 0 {
			failWith(u, errs)
			continue
		}
		u.spec = fs
		body, errs := ir.Build(u.fn, u.sig, layout, sigs, ir.Options{Arithmetic: c.opts.Arithmetic})
		if len(errs) > 0 {
			failWith(u, errs)
			continue
		}
		u.body = body
		r.bodies[name] = body
	}

	r.graph = NewGraph(r.names)
	for _, name := range r.names {
		if body := r.units[name].body; body != nil {
			for _, call := range body.Calls {
				r.graph.AddCall(name, call.Callee)
			}
		}
	}

	cycles := r.graph.Cycles()
	for _, name := range r.names {
		cycle, ok := cycles[name]
		if !ok {
			continue
		}
		u := r.units[name]
		err := kerrors.CyclicCallGraph(cycle, u.pos)
		u.diags = append(u.diags, err)
		u.fail(report.ErrorVerdict("%s", err.Message))
	}
	r.order = r.graph.Order(cycles)

	for _, name := range r.names {
		u := r.units[name]
		u.inlined = u.failure == nil && u.spec.IsEmpty() && len(r.graph.Callers(name)) > 0
	}
	r.plan()

	for _, name := range r.names {
		u := r.units[name]
		if u.failure == nil && !u.inlined && u.spec.IsEmpty() {
			w := kerrors.UncontractedRoot(name, u.pos)
			u.diags = append(u.diags, w)
			log.Warningf("%s: %s", name, w.Message)
		}
	}
	return r
}

// plan works out which helpers each task expands and which callees it
// waits for. A helper that no runnable task expands, because all of its
// callers failed early, is verified on its own against the empty contract.
func (r *run) plan() {
	for {
		expanded := map[string]bool{}
		for _, name := range r.names {
			u := r.units[name]
			if u.inlined {
				continue
			}
			r.dependencies(u)
			if u.failure == nil {
				for _, h := range u.inlines {
					expanded[h] = true
				}
			}
		}

		orphans := false
		for _, name := range r.names {
			u := r.units[name]
			if u.inlined && !expanded[name] {
				u.inlined = false
				orphans = true
			}
		}
		if !orphans {
			return
		}
	}
}

func (r *run) dependencies(u *unit) {
	u.inlines, u.needs = nil, nil
	seen := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		for _, callee := range r.graph.Callees(name) {
			if seen[callee] {
				continue
			}
			seen[callee] = true
			if r.units[callee].inlined {
				u.inlines = append(u.inlines, callee)
				visit(callee)
			} else if callee != u.name {
				u.needs = append(u.needs, callee)
			}
		}
	}
	visit(u.name)
}

func (c *Composer) runUnit(ctx context.Context, r *run, u *unit) {
	defer close(u.done)
	start := time.Now()
	u.result = &report.Result{Function: u.name, Position: u.pos, Diagnostics: u.diags}
	defer func() {
		u.result.Duration = time.Since(start)
		c.metrics.observeTask(u.result.Duration.Seconds())
	}()

	if u.failure != nil {
		u.result.Verdict = *u.failure
		return
	}

	for _, dep := range u.needs {
		d := r.units[dep]
		select {
		case <-d.done:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			u.result.Verdict = report.ErrorVerdict("cancelled")
			return
		}
		if k := d.result.Verdict.Kind; k != report.Verified {
			u.result.Verdict = report.ErrorVerdict("%s", kerrors.BlockedByCallee(dep, string(k), u.pos).Message)
			log.Infof("%s: blocked by %s", u.name, dep)
			return
		}
	}
	if ctx.Err() != nil {
		u.result.Verdict = report.ErrorVerdict("cancelled")
		return
	}

	u.result.Verdict, u.result.Cached = c.task(ctx, r, u)
	if u.result.Verdict.Kind == report.Verified {
		r.summaries.publish(u.name, u.spec)
	}
	log.Infof("%s: %s", u.name, u.result.Verdict)
}

// task is the verification of one function against its contract, given
// the summaries of its callees.
func (c *Composer) task(ctx context.Context, r *run, u *unit) (report.Verdict, bool) {
	ctx, span := tracer.Start(ctx, "compose.task", trace.WithAttributes(
		attribute.String("function", u.name),
	))
	defer span.End()

	summaries := map[string]*spec.FunctionSpec{}
	for _, dep := range u.needs {
		if fs, ok := r.summaries.get(dep); ok {
			summaries[dep] = fs
		}
	}

	contracted := func(name string) bool {
		cu, ok := r.units[name]
		return !ok || !cu.inlined
	}
	body, err := ir.NewInliner(r.bodies, contracted, c.opts.InlineDepth).Inline(u.body)
	if err != nil {
		return report.ErrorVerdict("%v", err), false
	}

	key := fingerprint(body.String(), u.spec, summaries, c.opts.settings())
	if c.cache != nil {
		v, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Warningf("%s: cache: %s", u.name, err)
		}
		c.metrics.cacheLookup(ok)
		if ok {
			span.SetAttributes(attribute.Bool("cached", true))
			return v, true
		}
	}

	res, err := vcgen.Generate(body, u.spec, r.layout, summaries, vcgen.Options{MaxPaths: c.opts.MaxPaths, Arithmetic: c.opts.Arithmetic})
	if err != nil {
		if errors.Is(err, vcgen.ErrPathLimit) {
			return report.ErrorVerdict("%s", vcgen.ErrPathLimit), false
		}
		return report.ErrorVerdict("%v", err), false
	}
	c.metrics.generated(len(res.Obligations))
	span.SetAttributes(attribute.Int("paths", res.Paths), attribute.Int("obligations", len(res.Obligations)))

	v := c.discharge(ctx, u.name, res)
	if c.cache != nil && v.Kind != report.Error {
		if err := c.cache.Put(ctx, key, v); err != nil {
			log.Warningf("%s: cache: %s", u.name, err)
		}
	}
	return v, false
}

// discharge sends the VC to the solver. When it has a counterexample, the
// obligations are checked one by one so the witness names the clause,
// storage variable or callee that failed.
func (c *Composer) discharge(ctx context.Context, name string, res *vcgen.Result) report.Verdict {
	if ob := res.Unannotated; ob != nil {
		return report.FalsifiedVerdict(witness(ob, nil))
	}
	if len(res.Obligations) == 0 {
		return report.VerifiedVerdict()
	}

	q := &solver.Query{Name: name, Formula: res.VC(), Timeout: c.opts.Timeout}
	c.dump(q)
	ans, err := c.check(ctx, q)
	if err != nil {
		return report.ErrorVerdict("solver: %v", err)
	}
	switch ans.Status {
	case solver.Unsat:
		return report.VerifiedVerdict()
	case solver.Unknown:
		return report.UndecidedVerdict(ans.Reason)
	}

	if len(res.Obligations) == 1 {
		return report.FalsifiedVerdict(witness(res.Obligations[0], ans.Model))
	}
	for _, ob := range res.Obligations {
		one, err := c.check(ctx, &solver.Query{Name: name + ": " + ob.String(), Formula: ob.Formula, Timeout: c.opts.Timeout})
		if err != nil {
			break
		}
		if one.Status == solver.Sat {
			return report.FalsifiedVerdict(witness(ob, one.Model))
		}
	}
	w := &report.Witness{Kind: "verification-condition"}
	if ans.Model != nil {
		w.Assignments = ans.Model.Assignments
	}
	return report.FalsifiedVerdict(w)
}

func (c *Composer) check(ctx context.Context, q *solver.Query) (*solver.Result, error) {
	ans, err := c.solver.Check(ctx, q)
	if err != nil {
		c.metrics.solverCheck("error")
		return nil, err
	}
	c.metrics.solverCheck(string(ans.Status))
	return ans, nil
}

func (c *Composer) dump(q *solver.Query) {
	if c.opts.DumpSMT == nil {
		return
	}
	c.dumpMu.Lock()
	defer c.dumpMu.Unlock()
	fmt.Fprintln(c.opts.DumpSMT, solver.Encode(q).Text)
}

func witness(ob *vcgen.Obligation, m *solver.Model) *report.Witness {
	w := &report.Witness{
		Kind:     string(ob.Kind),
		Storage:  ob.Storage,
		Callee:   ob.Callee,
		Clause:   ob.Clause,
		Path:     ob.Path,
		Position: ob.Pos,
	}
	if m != nil {
		w.Assignments = m.Assignments
	}
	return w
}

// collect reports every function in call-graph order. A helper takes the
// verdict of the last task, in that order, that expanded it.
func (c *Composer) collect(r *run) *report.Reporter {
	last := map[string]string{}
	for _, name := range r.order {
		u := r.units[name]
		if u.inlined || u.failure != nil {
			continue
		}
		for _, h := range u.inlines {
			last[h] = name
		}
	}

	rep := report.NewReporter()
	for _, name := range r.order {
		u := r.units[name]
		res := u.result
		if u.inlined {
			caller := r.units[last[name]].result
			res = &report.Result{
				Function:    name,
				Verdict:     caller.Verdict,
				InlinedInto: last[name],
				Position:    u.pos,
				Duration:    caller.Duration,
				Cached:      caller.Cached,
			}
		}
		c.metrics.verdict(res.Verdict.Kind)
		rep.Add(res)
	}
	return rep
}
