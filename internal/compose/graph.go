package compose

import (
	"sort"
)

// Graph is the call graph of a contract. Edges point from caller to callee
// and include callees without a contract.
type Graph struct {
	names []string // source order
	index map[string]int
	edges map[string][]string // distinct callees in order of first call
	calls map[string][]string // every call site's callee, in source order
}

func NewGraph(names []string) *Graph {
	g := &Graph{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
		edges: map[string][]string{},
		calls: map[string][]string{},
	}
	for i, n := range names {
		g.index[n] = i
	}
	return g
}

// AddCall records one call site. Calls to unknown functions are ignored;
// the IR builder reports them.
func (g *Graph) AddCall(caller, callee string) {
	if _, ok := g.index[callee]; !ok {
		return
	}
	g.calls[caller] = append(g.calls[caller], callee)
	for _, c := range g.edges[caller] {
		if c == callee {
			return
		}
	}
	g.edges[caller] = append(g.edges[caller], callee)
}

func (g *Graph) Callees(name string) []string {
	return g.edges[name]
}

// Callers returns the functions calling name, in source order.
func (g *Graph) Callers(name string) []string {
	var out []string
	for _, n := range g.names {
		for _, c := range g.edges[n] {
			if c == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Cycles finds the strongly connected components that contain a cycle,
// including self-recursion, with Tarjan's algorithm. Every function on a
// cycle maps to a description of one cycle through it, such as
// ["a", "b", "a"].
func (g *Graph) Cycles() map[string][]string {
	t := &tarjan{g: g, index: map[string]int{}, low: map[string]int{}, on: map[string]bool{}}
	for _, n := range g.names {
		if _, seen := t.index[n]; !seen {
			t.visit(n)
		}
	}

	out := map[string][]string{}
	for _, scc := range t.sccs {
		if len(scc) == 1 && !g.callsItself(scc[0]) {
			continue
		}
		members := map[string]bool{}
		for _, n := range scc {
			members[n] = true
		}
		for _, n := range scc {
			out[n] = g.cycleFrom(n, members)
		}
	}
	return out
}

func (g *Graph) callsItself(n string) bool {
	for _, c := range g.edges[n] {
		if c == n {
			return true
		}
	}
	return false
}

// cycleFrom walks edges inside the component back to start, preferring the
// first callee in source order.
func (g *Graph) cycleFrom(start string, members map[string]bool) []string {
	path := []string{start}
	seen := map[string]bool{start: true}
	var walk func(n string) bool
	walk = func(n string) bool {
		for _, c := range g.edges[n] {
			if !members[c] {
				continue
			}
			if c == start {
				path = append(path, c)
				return true
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			path = append(path, c)
			if walk(c) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	walk(start)
	return path
}

type tarjan struct {
	g       *Graph
	counter int
	index   map[string]int
	low     map[string]int
	stack   []string
	on      map[string]bool
	sccs    [][]string
}

func (t *tarjan) visit(n string) {
	t.index[n] = t.counter
	t.low[n] = t.counter
	t.counter++
	t.stack = append(t.stack, n)
	t.on[n] = true

	for _, c := range t.g.edges[n] {
		if _, seen := t.index[c]; !seen {
			t.visit(c)
			if t.low[c] < t.low[n] {
				t.low[n] = t.low[c]
			}
		} else if t.on[c] && t.index[c] < t.low[n] {
			t.low[n] = t.index[c]
		}
	}

	if t.low[n] == t.index[n] {
		var scc []string
		for {
			top := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.on[top] = false
			scc = append(scc, top)
			if top == n {
				break
			}
		}
		sort.Slice(scc, func(i, j int) bool { return t.g.index[scc[i]] < t.g.index[scc[j]] })
		t.sccs = append(t.sccs, scc)
	}
}

// Order returns every function with callees before callers, breaking ties
// by source order. Functions on a cycle are released without waiting for
// their callees, so the order is total even for cyclic graphs.
func (g *Graph) Order(cycles map[string][]string) []string {
	pending := map[string]int{}
	for _, n := range g.names {
		if _, cyclic := cycles[n]; cyclic {
			continue
		}
		pending[n] = len(g.edges[n])
	}

	done := map[string]bool{}
	var order []string
	for len(order) < len(g.names) {
		next := ""
		for _, n := range g.names {
			if !done[n] && pending[n] == 0 {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, caller := range g.Callers(next) {
			if _, cyclic := cycles[caller]; !cyclic {
				pending[caller]--
			}
		}
	}
	return order
}
