package logic

import "sort"

// mapChildren rebuilds t with f applied to each direct child.
func mapChildren(t Term, f func(Term) Term) Term {
	switch x := t.(type) {
	case *App:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = f(a)
		}
		return Apply(x.Op, args...)
	case *Ite:
		return IteT(f(x.Cond), f(x.Then), f(x.Else))
	case *Select:
		keys := make([]Term, len(x.Keys))
		for i, k := range x.Keys {
			keys[i] = f(k)
		}
		return &Select{Storage: x.Storage, Keys: keys, Label: x.Label}
	case *Exists:
		return NewExists(x.Vars, f(x.Body))
	}
	return t
}

// Transform rewrites t bottom-up: children first, then post on the rebuilt node.
func Transform(t Term, post func(Term) Term) Term {
	return post(mapChildren(t, func(c Term) Term { return Transform(c, post) }))
}

// Subst replaces free variables by name, simultaneously.
func Subst(t Term, m map[string]Term) Term {
	if len(m) == 0 {
		return t
	}
	switch x := t.(type) {
	case *Var:
		if r, ok := m[x.Name]; ok {
			return r
		}
		return x
	case *Exists:
		inner := m
		for _, v := range x.Vars {
			if _, ok := m[v.Name]; ok {
				inner = copyMap(m)
				break
			}
		}
		for _, v := range x.Vars {
			delete(inner, v.Name)
		}
		return NewExists(x.Vars, Subst(x.Body, inner))
	}
	return mapChildren(t, func(c Term) Term { return Subst(c, m) })
}

func copyMap(m map[string]Term) map[string]Term {
	out := make(map[string]Term, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SubstSelects replaces Select nodes bottom-up. The replacement is not
// revisited, so f may embed the original select in its result.
func SubstSelects(t Term, f func(*Select) Term) Term {
	return Transform(t, func(n Term) Term {
		if s, ok := n.(*Select); ok {
			return f(s)
		}
		return n
	})
}

// Relabel moves every Select in state from to state to.
func Relabel(t Term, from, to string) Term {
	return SubstSelects(t, func(s *Select) Term {
		if s.Label != from {
			return s
		}
		return &Select{Storage: s.Storage, Keys: s.Keys, Label: to}
	})
}

// Walk visits t and its subterms in pre-order. bound holds the names
// bound by enclosing existentials.
func Walk(t Term, visit func(t Term, bound map[string]bool)) {
	walk(t, map[string]bool{}, visit)
}

func walk(t Term, bound map[string]bool, visit func(Term, map[string]bool)) {
	visit(t, bound)
	switch x := t.(type) {
	case *App:
		for _, a := range x.Args {
			walk(a, bound, visit)
		}
	case *Ite:
		walk(x.Cond, bound, visit)
		walk(x.Then, bound, visit)
		walk(x.Else, bound, visit)
	case *Select:
		for _, k := range x.Keys {
			walk(k, bound, visit)
		}
	case *Exists:
		inner := make(map[string]bool, len(bound)+len(x.Vars))
		for k := range bound {
			inner[k] = true
		}
		for _, v := range x.Vars {
			inner[v.Name] = true
		}
		walk(x.Body, inner, visit)
	}
}

// FreeVars returns the free variables of the terms sorted by name.
func FreeVars(ts ...Term) []*Var {
	seen := map[string]*Var{}
	for _, t := range ts {
		Walk(t, func(n Term, bound map[string]bool) {
			if v, ok := n.(*Var); ok && !bound[v.Name] {
				seen[v.Name] = v
			}
		})
	}
	out := make([]*Var, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Selects returns the distinct ground storage applications in the terms,
// sorted by their printed form. Applications whose keys mention bound
// variables are skipped.
func Selects(ts ...Term) []*Select {
	seen := map[string]*Select{}
	for _, t := range ts {
		Walk(t, func(n Term, bound map[string]bool) {
			s, ok := n.(*Select)
			if !ok {
				return
			}
			for _, v := range FreeVars(s) {
				if bound[v.Name] {
					return
				}
			}
			seen[s.String()] = s
		})
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Select, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

// Storages returns the (storage, label, arity) triples used by the terms.
func Storages(ts ...Term) []StorageUse {
	seen := map[StorageUse]bool{}
	for _, t := range ts {
		Walk(t, func(n Term, _ map[string]bool) {
			if s, ok := n.(*Select); ok {
				seen[StorageUse{Storage: s.Storage, Label: s.Label, Arity: len(s.Keys)}] = true
			}
		})
	}
	out := make([]StorageUse, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Storage != out[j].Storage {
			return out[i].Storage < out[j].Storage
		}
		return out[i].Label < out[j].Label
	})
	return out
}

type StorageUse struct {
	Storage string
	Label   string
	Arity   int
}

// Mentions reports whether t has a free occurrence of the named variable.
func Mentions(t Term, name string) bool {
	found := false
	Walk(t, func(n Term, bound map[string]bool) {
		if v, ok := n.(*Var); ok && v.Name == name && !bound[name] {
			found = true
		}
	})
	return found
}
