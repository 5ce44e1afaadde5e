package querycache

import "time"

// Status of a cache entry.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a subscriber's view of one entry.
//
// On failure Status is StatusError and Err is set. A value from an earlier
// success is kept (HasData) but flagged Stale; it is never reported as a
// success until a new fetch succeeds.
type State[V any] struct {
	Status    Status
	Data      V
	HasData   bool
	Err       error
	Stale     bool // Data predates the last invalidation, failure or StaleTime
	Fetching  bool // a producer call is in flight or queued
	UpdatedAt time.Time
}

func (s State[V]) IsLoading() bool { return s.Status == StatusLoading || s.Status == StatusIdle }

// Settled reports whether no fetch is in flight or queued and the entry has
// reached success or error.
func (s State[V]) Settled() bool {
	return !s.Fetching && (s.Status == StatusSuccess || s.Status == StatusError)
}
