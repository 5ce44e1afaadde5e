package querycache

import "time"

const (
	defaultPersistTTL   = 24 * time.Hour
	defaultRetainTime   = 5 * time.Minute
	defaultRetryDelay   = 200 * time.Millisecond
	defaultSweep        = time.Hour
	defaultGenRetention = 30 * 24 * time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
