package resource

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a request that never produced a response: network
// unreachable, timeout, cancelled context.
type TransportError struct {
	Entity string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Entity, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestFailed is a non-2xx response. Body holds at most the first 512
// bytes of the response.
type RequestFailed struct {
	Status int
	Entity string
	Op     string
	Body   string
}

func (e *RequestFailed) Error() string {
	return fmt.Sprintf("%s %s: request failed: %d %s", e.Entity, e.Op, e.Status, http.StatusText(e.Status))
}

// DecodeError is a 2xx response whose body could not be parsed.
type DecodeError struct {
	Entity string
	Op     string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode: %v", e.Entity, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying: transport failures,
// 429 and 5xx. Decode errors and 4xx are not.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Status == http.StatusTooManyRequests || rf.Status >= 500
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Status
	}
	return 0
}
