package querycache

import "context"

// Mutation describes one write against Entity. Invalidates names further
// entity types whose queries the write makes stale.
type Mutation[P, R any] struct {
	Entity      string
	Op          string
	Invalidates []string
	Do          func(ctx context.Context, payload P) (R, error)
}

// Mutate performs exactly one write. On failure nothing in the cache changes
// and a *MutationError is returned. On success every query of the affected
// entity types is invalidated before Mutate returns; invalidation outlives a
// cancelled ctx. A successful write always returns a nil error: a failed
// generation bump is reported through Hooks.GenError and the log only.
func Mutate[P, R any](ctx context.Context, c *Client, m Mutation[P, R], payload P) (R, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		var zero R
		return zero, ErrClosed
	}

	res, err := m.Do(ctx, payload)
	if err != nil {
		c.hooks.MutationFailed(m.Entity, m.Op, err)
		c.log.Warn("mutation failed", Fields{"entity": m.Entity, "op": m.Op, "err": err})
		var zero R
		return zero, &MutationError{Entity: m.Entity, Op: m.Op, Err: err}
	}

	ictx := context.WithoutCancel(ctx)
	seen := map[string]struct{}{}
	for _, ent := range append([]string{m.Entity}, m.Invalidates...) {
		if _, dup := seen[ent]; dup || ent == "" {
			continue
		}
		seen[ent] = struct{}{}
		// Local entries are invalidated even when the bump fails.
		_ = c.Invalidate(ictx, ent)
	}
	return res, nil
}
