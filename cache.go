package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	gen "github.com/unkn0wn-root/querycache/genstore"
	"github.com/unkn0wn-root/querycache/internal/util"
	pr "github.com/unkn0wn-root/querycache/provider"
)

type fetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key        Key
	scope      string
	storageKey string

	status    Status
	value     any
	hasValue  bool
	err       error
	stale     bool
	updatedAt time.Time

	subs    map[uint64]chan struct{}
	fetch   fetchFunc
	persist *persister

	// seq identifies the current fetch; completions carrying an older seq,
	// or for an entry no longer in the map, are discarded.
	seq      uint64
	inflight bool
	pending  bool
	cancel   context.CancelFunc
	idle     *time.Timer
}

// Client is the process-wide query cache. Create one with New at startup and
// share it; Reset clears it between tests.
type Client struct {
	ns       string
	log      Logger
	hooks    Hooks
	gen      gen.GenStore
	provider pr.Provider

	persistTTL   time.Duration
	staleTime    time.Duration
	retainTime   time.Duration
	fetchTimeout time.Duration
	retryMax     uint
	retryDelay   time.Duration
	retryIf      func(error) bool

	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64
	closed  bool

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) (*Client, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("querycache: namespace is required")
	}

	c := &Client{
		ns:           opts.Namespace,
		provider:     opts.Provider,
		staleTime:    opts.StaleTime,
		fetchTimeout: opts.FetchTimeout,
		retryMax:     opts.RetryMax,
		entries:      make(map[string]*entry),
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.persistTTL = coalesce(opts.PersistTTL, defaultPersistTTL)
	c.retainTime = coalesce(opts.RetainTime, defaultRetainTime)
	c.retryDelay = coalesce(opts.RetryInitialDelay, defaultRetryDelay)

	c.retryIf = opts.RetryIf
	if c.retryIf == nil {
		c.retryIf = func(error) bool { return true }
	}

	if opts.GenStore != nil {
		c.gen = opts.GenStore
	} else {
		c.gen = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}

	c.baseCtx, c.stop = context.WithCancel(context.Background())
	return c, nil
}

// Reset drops every entry and cancels in-flight fetches. Existing
// subscriptions keep their last state but no longer receive updates.
func (c *Client) Reset() {
	c.mu.Lock()
	for _, e := range c.entries {
		c.dropLocked(e)
	}
	c.mu.Unlock()
}

// Close resets the cache, waits for fetch goroutines (bounded by ctx) and
// closes the GenStore and Provider.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, e := range c.entries {
		c.dropLocked(e)
	}
	c.mu.Unlock()
	c.stop()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	_ = c.gen.Close(ctx)
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

// Len returns the number of live entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate marks every entry of entity stale, whatever its params.
func (c *Client) Invalidate(ctx context.Context, entity string) error {
	return c.InvalidatePrefix(ctx, NewKey(entity))
}

// InvalidatePrefix bumps the entity generation, then refetches matching
// entries that have subscribers and drops the rest. An entry with a fetch in
// flight gets one queued refetch that starts after it settles, however many
// invalidations arrive meanwhile.
//
// Generations are kept per entity, not per prefix. A refined prefix leaves
// non-matching entries untouched in memory, but their in-flight fetches
// finish stale (and refetch) and their persisted results stop restoring.
func (c *Client) InvalidatePrefix(ctx context.Context, prefix Key) error {
	scope := c.scope(prefix.Entity())
	var bumpErr error
	if _, err := c.gen.Bump(ctx, scope); err != nil {
		c.hooks.GenError(scope, err)
		c.log.Error("gen bump error", Fields{"scope": scope, "err": err})
		bumpErr = &InvalidateError{Scope: scope, Err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	refetched, dropped := 0, 0
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if len(e.subs) == 0 {
			c.dropLocked(e)
			dropped++
			continue
		}
		e.stale = true
		if e.inflight {
			e.pending = true
		} else {
			c.startFetchLocked(e)
		}
		c.notifyLocked(e)
		refetched++
	}
	c.mu.Unlock()

	c.hooks.Invalidated(prefix.String(), refetched, dropped)
	c.log.Debug("invalidated", Fields{"prefix": prefix.String(), "refetched": refetched, "dropped": dropped})
	return bumpErr
}

func (c *Client) scope(entity string) string {
	return "entity:" + c.ns + ":" + entity
}

func (c *Client) storageKey(k Key) string {
	return util.StorageKey("query:"+c.ns+":"+k.Entity(), k.String())
}

// subscribe registers ch on the entry for k, creating it if needed, and
// starts a fetch when nothing usable is cached.
func (c *Client) subscribe(k Key, fetch fetchFunc, ps *persister, ch chan struct{}) (*entry, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, 0, ErrClosed
	}

	e := c.entries[k.String()]
	if e == nil {
		e = &entry{
			key:   k,
			scope: c.scope(k.Entity()),
			subs:  make(map[uint64]chan struct{}),
		}
		c.entries[k.String()] = e
	}
	e.fetch = fetch
	if ps != nil && c.provider != nil && e.persist == nil {
		e.persist = ps
		e.storageKey = c.storageKey(k)
	}
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}

	c.nextSub++
	id := c.nextSub
	e.subs[id] = ch

	if !e.inflight && c.needsFetchLocked(e) {
		if e.status == StatusSuccess {
			e.stale = true
		}
		c.startFetchLocked(e)
	}
	return e, id, nil
}

func (c *Client) needsFetchLocked(e *entry) bool {
	switch {
	case e.status == StatusIdle, e.status == StatusError, e.stale:
		return true
	case c.staleTime > 0:
		return time.Since(e.updatedAt) > c.staleTime
	default:
		return false
	}
}

func (c *Client) unsubscribe(e *entry, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return
	}
	delete(e.subs, id)
	if len(e.subs) > 0 || c.entries[e.key.String()] != e {
		return
	}
	if c.retainTime < 0 {
		c.dropLocked(e)
		return
	}
	e.idle = time.AfterFunc(c.retainTime, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[e.key.String()] == e && len(e.subs) == 0 {
			c.dropLocked(e)
		}
	})
}

func (c *Client) refetch(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.entries[e.key.String()] != e {
		return
	}
	if e.inflight {
		e.pending = true
		return
	}
	c.startFetchLocked(e)
	c.notifyLocked(e)
}

func (c *Client) dropLocked(e *entry) {
	if c.entries[e.key.String()] == e {
		delete(c.entries, e.key.String())
	}
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.inflight = false
	e.pending = false
	c.notifyLocked(e)
}

func (c *Client) notifyLocked(e *entry) {
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Client) startFetchLocked(e *entry) {
	e.seq++
	seq := e.seq
	e.inflight = true
	e.pending = false
	if e.status == StatusIdle || e.status == StatusError {
		e.status = StatusLoading
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.baseCtx, c.fetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.baseCtx)
	}
	e.cancel = cancel

	j := fetchJob{
		e:          e,
		seq:        seq,
		fetch:      e.fetch,
		ps:         e.persist,
		storageKey: e.storageKey,
		restore:    e.persist != nil && !e.hasValue,
	}

	c.wg.Add(1)
	go c.runFetch(ctx, cancel, j)
	c.hooks.FetchStarted(e.key.String())
}

// fetchJob carries what a fetch goroutine needs, captured under the lock.
type fetchJob struct {
	e          *entry
	seq        uint64
	fetch      fetchFunc
	ps         *persister
	storageKey string
	restore    bool
}

func (c *Client) currentLocked(e *entry, seq uint64) (bool, string) {
	switch {
	case c.closed:
		return false, "closed"
	case c.entries[e.key.String()] != e:
		return false, "dropped"
	case e.seq != seq || !e.inflight:
		return false, "superseded"
	default:
		return true, ""
	}
}

func (c *Client) runFetch(ctx context.Context, cancel context.CancelFunc, j fetchJob) {
	defer c.wg.Done()
	defer cancel()

	e, seq := j.e, j.seq

	startGen, genErr := c.gen.Snapshot(ctx, e.scope)
	if genErr != nil {
		c.hooks.GenError(e.scope, genErr)
		c.log.Warn("gen snapshot error", Fields{"scope": e.scope, "err": genErr})
	}
	if j.restore && genErr == nil {
		c.restore(ctx, j, startGen)
	}

	v, err := c.produce(ctx, j.fetch)

	// unsure: the end generation is unknown, so the result is kept stale and
	// not persisted, without the immediate refetch a move triggers.
	moved, unsure := false, genErr != nil
	if genErr == nil {
		endGen, gerr := c.gen.Snapshot(ctx, e.scope)
		if gerr != nil {
			c.hooks.GenError(e.scope, gerr)
			c.log.Warn("gen snapshot error", Fields{"scope": e.scope, "err": gerr})
			unsure = true
		} else {
			moved = endGen != startGen
		}
	}
	now := time.Now()

	c.mu.Lock()
	if ok, reason := c.currentLocked(e, seq); !ok {
		c.mu.Unlock()
		c.hooks.FetchDiscarded(e.key.String(), reason)
		c.log.Debug("fetch result discarded", Fields{"key": e.key.String(), "reason": reason})
		return
	}
	e.inflight = false
	e.cancel = nil
	if err != nil {
		e.status = StatusError
		e.err = err
		e.stale = e.hasValue
	} else {
		e.status = StatusSuccess
		e.value = v
		e.hasValue = true
		e.err = nil
		e.stale = moved || unsure
		e.updatedAt = now
		if moved && len(e.subs) > 0 {
			e.pending = true
		}
	}
	if e.pending && len(e.subs) > 0 {
		c.startFetchLocked(e)
	}
	e.pending = false
	key := e.key.String()
	c.notifyLocked(e)
	c.mu.Unlock()

	if err != nil {
		c.hooks.FetchFailed(key, err)
		c.log.Warn("fetch failed", Fields{"key": key, "err": err})
		return
	}
	if j.ps != nil && !unsure && !moved {
		c.store(ctx, j, startGen, now, v)
	}
}

func (c *Client) produce(ctx context.Context, fetch fetchFunc) (any, error) {
	if c.retryMax == 0 {
		return fetch(ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	op := func() (any, error) {
		v, err := fetch(ctx)
		if err != nil && !c.retryIf(err) {
			return nil, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.retryMax+1))
}
