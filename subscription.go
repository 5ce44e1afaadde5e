package querycache

import (
	"context"
	"fmt"
	"sync"
)

// Subscription is one observer of a query. Close it when the view goes away;
// the entry becomes disposable once its last subscription is closed.
type Subscription[V any] struct {
	c   *Client
	key Key
	e   *entry
	id  uint64
	ch  chan struct{}
	err error

	once sync.Once
}

// Observe subscribes to q, creating its entry on first use. Concurrent
// observers of equal keys share one entry and one producer call. The latest
// observer's Fetch becomes the producer for later refetches.
func Observe[V any](c *Client, q Query[V]) *Subscription[V] {
	s := &Subscription[V]{c: c, key: q.Key, ch: make(chan struct{}, 1)}
	fetch := func(ctx context.Context) (any, error) { return q.Fetch(ctx) }
	var ps *persister
	if q.Codec != nil {
		ps = newPersister(q.Codec)
	}
	s.e, s.id, s.err = c.subscribe(q.Key, fetch, ps, s.ch)
	return s
}

func (s *Subscription[V]) Key() Key { return s.key }

// Changes signals after every state change. Signals coalesce; call State to
// read the latest.
func (s *Subscription[V]) Changes() <-chan struct{} { return s.ch }

func (s *Subscription[V]) State() State[V] {
	if s.err != nil {
		return State[V]{Status: StatusError, Err: s.err}
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	e := s.e
	st := State[V]{
		Status:    e.status,
		HasData:   e.hasValue,
		Err:       e.err,
		Stale:     e.stale,
		Fetching:  e.inflight || e.pending,
		UpdatedAt: e.updatedAt,
	}
	if e.hasValue {
		v, ok := e.value.(V)
		if !ok {
			err := &TypeMismatchError{Key: e.key.String(), Want: fmt.Sprintf("%T", v), Got: fmt.Sprintf("%T", e.value)}
			return State[V]{Status: StatusError, Err: err}
		}
		st.Data = v
	}
	return st
}

// Wait blocks until the entry has settled or ctx is done.
func (s *Subscription[V]) Wait(ctx context.Context) (State[V], error) {
	for {
		st := s.State()
		if st.Settled() || s.err != nil {
			return st, nil
		}
		if s.dropped() {
			return st, ErrClosed
		}
		select {
		case <-s.ch:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

// Refetch asks for a new producer call. With one in flight the request is
// queued and runs once it settles.
func (s *Subscription[V]) Refetch() {
	if s.err == nil {
		s.c.refetch(s.e)
	}
}

// Close is idempotent.
func (s *Subscription[V]) Close() {
	if s.err != nil {
		return
	}
	s.once.Do(func() { s.c.unsubscribe(s.e, s.id) })
}

func (s *Subscription[V]) dropped() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.entries[s.key.String()] != s.e
}

// Fetch observes q until it settles and returns the result. Cached fresh data
// is returned without calling the producer.
func Fetch[V any](ctx context.Context, c *Client, q Query[V]) (V, error) {
	s := Observe(c, q)
	defer s.Close()

	st, err := s.Wait(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if st.Status == StatusError {
		return st.Data, st.Err
	}
	return st.Data, nil
}
