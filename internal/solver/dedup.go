package solver

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Deduplicated shares one backend call between concurrent identical
// queries. Two callers inlining the same helper often produce the same
// obligation.
type Deduplicated struct {
	inner  Solver
	flight singleflight.Group
}

func Deduplicate(s Solver) *Deduplicated {
	return &Deduplicated{inner: s}
}

func (d *Deduplicated) Check(ctx context.Context, q *Query) (*Result, error) {
	key := q.Formula.String()
	v, err, shared := d.flight.Do(key, func() (interface{}, error) {
		return d.inner.Check(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("shared result for %s", q.Name)
	}
	return v.(*Result), nil
}
