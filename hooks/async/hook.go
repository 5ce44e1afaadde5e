// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // ~every 10th self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	qc, _ := querycache.New(querycache.Options{
//	    Namespace: "solar:site",
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/querycache"
)

// Hooks forwards events to inner on worker goroutines. Events are dropped
// when the queue is full.
type Hooks struct {
	inner querycache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(inner querycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) FetchStarted(k string)             { h.try(func() { h.inner.FetchStarted(k) }) }
func (h *Hooks) FetchDiscarded(k, r string)        { h.try(func() { h.inner.FetchDiscarded(k, r) }) }
func (h *Hooks) FetchFailed(k string, err error)   { h.try(func() { h.inner.FetchFailed(k, err) }) }
func (h *Hooks) SelfHeal(k, r string)              { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) PersistRejected(k string, e error) { h.try(func() { h.inner.PersistRejected(k, e) }) }
func (h *Hooks) GenError(scope string, err error)  { h.try(func() { h.inner.GenError(scope, err) }) }
func (h *Hooks) Invalidated(p string, r, d int)    { h.try(func() { h.inner.Invalidated(p, r, d) }) }
func (h *Hooks) MutationFailed(e, op string, err error) {
	h.try(func() { h.inner.MutationFailed(e, op, err) })
}
