package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FetchEvery    uint64
	SelfHealEvery uint64
	// Optional storage-key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fetchCtr    atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(key string) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("querycache.fetch_started", "key", key)
}

func (h *Hooks) FetchDiscarded(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.fetch_discarded",
		"key", key,
		"reason", reason)
}

func (h *Hooks) FetchFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.fetch_failed",
		"key", key,
		"err", err)
}

func (h *Hooks) Invalidated(prefix string, refetched, dropped int) {
	if h.l == nil {
		return
	}
	h.l.Info("querycache.invalidated",
		"prefix", prefix,
		"refetched", refetched,
		"dropped", dropped)
}

func (h *Hooks) MutationFailed(entity, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.mutation_failed",
		"entity", entity,
		"op", op,
		"err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("querycache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) PersistRejected(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.persist_rejected",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) GenError(scope string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("querycache.gen_error",
		"scope", scope,
		"err", err)
}
