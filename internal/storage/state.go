package storage

import "kanso-verify/internal/logic"

// Read is the current-state value of v at keys.
func Read(v *Variable, keys []logic.Term) *logic.Select {
	return logic.NewSelect(v.Name, keys, logic.Current)
}

// Write applies the point update storage[keys] := value to the current-state
// applications of storage in t: s(k) becomes ite(k == keys, value, s(k)).
// Every other key keeps its prior value, which is the frame rule.
func Write(t logic.Term, storage string, keys []logic.Term, value logic.Term) logic.Term {
	return Update(t, map[string]PointUpdate{storage: {Keys: keys, Value: value}})
}

type PointUpdate struct {
	Keys  []logic.Term
	Value logic.Term
}

// Update applies several point updates to distinct storage variables at once.
func Update(t logic.Term, updates map[string]PointUpdate) logic.Term {
	if len(updates) == 0 {
		return t
	}
	return logic.SubstSelects(t, func(s *logic.Select) logic.Term {
		u, ok := updates[s.Storage]
		if !ok || s.Label != logic.Current {
			return s
		}
		return logic.IteT(logic.KeysEqual(s.Keys, u.Keys), u.Value, s)
	})
}
