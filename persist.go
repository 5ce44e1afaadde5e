package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/wire"
)

// persister erases V so entries can be stored in one map.
type persister struct {
	encode func(v any) ([]byte, error)
	decode func(b []byte) (any, error)
}

func newPersister[V any](cd c.Codec[V]) *persister {
	if cd == nil {
		return nil
	}
	return &persister{
		encode: func(v any) ([]byte, error) { return cd.Encode(v.(V)) },
		decode: func(b []byte) (any, error) { return cd.Decode(b) },
	}
}

// restore loads a persisted result as a stale placeholder while the producer
// runs. Anything unreadable or written under another generation is deleted.
func (c *Client) restore(ctx context.Context, j fetchJob, gen uint64) {
	raw, ok, err := c.provider.Get(ctx, j.storageKey)
	if err != nil || !ok {
		return
	}

	res, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, j.storageKey, "corrupt")
		return
	}
	if res.Gen != gen {
		c.selfHeal(ctx, j.storageKey, "gen_mismatch")
		return
	}
	v, err := j.ps.decode(res.Payload)
	if err != nil {
		c.selfHeal(ctx, j.storageKey, "value_decode")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := j.e
	if ok, _ := c.currentLocked(e, j.seq); !ok || e.hasValue {
		return
	}
	e.value = v
	e.hasValue = true
	e.stale = true
	e.status = StatusSuccess
	e.updatedAt = res.FetchedAt
	c.notifyLocked(e)
}

func (c *Client) store(ctx context.Context, j fetchJob, gen uint64, at time.Time, v any) {
	payload, err := j.ps.encode(v)
	if err != nil {
		c.hooks.PersistRejected(j.storageKey, err)
		c.log.Warn("encode failed", Fields{"key": j.storageKey, "err": err})
		return
	}
	frame := wire.Encode(gen, at, payload)
	ok, err := c.provider.Set(ctx, j.storageKey, frame, int64(len(frame)), c.persistTTL)
	if err != nil {
		c.hooks.PersistRejected(j.storageKey, err)
		c.log.Warn("persist failed", Fields{"key": j.storageKey, "err": err})
		return
	}
	if !ok {
		c.hooks.PersistRejected(j.storageKey, nil)
		c.log.Debug("persist rejected", Fields{"key": j.storageKey})
	}
}

func (c *Client) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.hooks.SelfHeal(storageKey, reason)
	c.log.Warn("self-heal", Fields{"key": storageKey, "reason": reason})
}
