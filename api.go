package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// Query binds a Key to the producer that computes it.
// Codec is optional; with a Provider configured it enables persistence.
type Query[V any] struct {
	Key   Key
	Fetch func(ctx context.Context) (V, error)
	Codec c.Codec[V]
}

// Options tune the process-wide Client. Only Namespace is required.
type Options struct {
	Namespace string // e.g. "solar:site"; isolates generations and persisted keys

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	GenStore        gen.GenStore  // nil => LocalGenStore
	CleanupInterval time.Duration // LocalGenStore sweep; 0 => 1h
	GenRetention    time.Duration // LocalGenStore retention; 0 => 30d

	Provider   pr.Provider   // nil => nothing is persisted
	PersistTTL time.Duration // 0 => 24h

	// StaleTime 0 keeps successful results fresh until invalidated.
	StaleTime time.Duration

	// RetainTime keeps an entry after its last subscriber leaves.
	// 0 => 5m; negative => dispose immediately.
	RetainTime time.Duration

	// FetchTimeout bounds one producer call including retries. 0 => none.
	FetchTimeout time.Duration

	RetryMax          uint             // 0 => no retries
	RetryInitialDelay time.Duration    // 0 => 200ms
	RetryIf           func(error) bool // nil => retry every error
}
