// Package view is the headless side of the admin and public pages: it turns
// cache state into exactly one of loading, error or success, and routes user
// actions to the site service. It never writes to the cache directly.
package view

import (
	"context"

	"github.com/unkn0wn-root/querycache"
)

type Phase uint8

const (
	PhaseLoading Phase = iota
	PhaseError
	PhaseSuccess
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Model is what a page renders. Data is set only in PhaseSuccess and Err
// only in PhaseError. Previous carries data from an earlier success while in
// PhaseError; it is stale by definition.
type Model[V any] struct {
	Phase      Phase
	Data       V
	Err        error
	Previous   *V
	Stale      bool // success data awaiting revalidation
	Refreshing bool // a refetch is in flight behind success data
}

func Project[V any](st querycache.State[V]) Model[V] {
	switch {
	case st.Status == querycache.StatusError:
		m := Model[V]{Phase: PhaseError, Err: st.Err}
		if st.HasData {
			prev := st.Data
			m.Previous = &prev
		}
		return m
	case st.Status == querycache.StatusSuccess && st.HasData:
		return Model[V]{
			Phase:      PhaseSuccess,
			Data:       st.Data,
			Stale:      st.Stale,
			Refreshing: st.Fetching,
		}
	default:
		return Model[V]{Phase: PhaseLoading}
	}
}

// Binding keeps one subscription open for a mounted page.
type Binding[V any] struct {
	sub     *querycache.Subscription[V]
	project func(querycache.State[V]) Model[V]
}

func Bind[V any](c *querycache.Client, q querycache.Query[V]) *Binding[V] {
	return &Binding[V]{sub: querycache.Observe(c, q), project: Project[V]}
}

func (b *Binding[V]) Model() Model[V]          { return b.project(b.sub.State()) }
func (b *Binding[V]) Changes() <-chan struct{} { return b.sub.Changes() }
func (b *Binding[V]) Refetch()                 { b.sub.Refetch() }
func (b *Binding[V]) Close()                   { b.sub.Close() }

// Wait blocks until the query settles and returns the resulting model.
func (b *Binding[V]) Wait(ctx context.Context) (Model[V], error) {
	st, err := b.sub.Wait(ctx)
	return b.project(st), err
}
