package querycache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("querycache: client closed")

// MutationError wraps a failed write. The cache was not touched.
type MutationError struct {
	Entity string
	Op     string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Entity, e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// InvalidateError reports a generation bump that failed. Local entries were
// still invalidated; other processes sharing the GenStore may not see it.
type InvalidateError struct {
	Scope string
	Err   error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Scope, e.Err)
}

func (e *InvalidateError) Unwrap() error { return e.Err }

// TypeMismatchError reports a key observed with a value type other than the
// one its entry holds.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("querycache: key %s holds %s, observed as %s", e.Key, e.Got, e.Want)
}
