// Package genstore keeps one generation counter per invalidation scope
// (an entity type within a cache namespace). A fetch records the generation
// it started under; any bump before it completes marks its result stale.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// LocalGenStore is the default; RedisGenStore shares invalidations between
// processes that talk to the same backend.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, scope string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, scope string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
