package codec

import "fmt"

// LimitCodec wraps another codec and refuses to decode payloads larger than
// MaxDecode bytes. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Persisted entries may come from a shared Redis instance, so the cache
// treats them as untrusted input.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int // bytes
}

// ErrTooLarge is wrapped by LimitCodec.Decode for oversized payloads.
var ErrTooLarge = fmt.Errorf("codec: payload too large")

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
