package codec

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes query results with fxamacker/cbor. Field names follow the
// json tags. Times are written as RFC3339Nano so createdAt keeps its zone.
// Build with NewCBOR; the zero value has no modes.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// Payloads this package writes never repeat a map key.
var cborDecMode = sync.OnceValues(func() (cbor.DecMode, error) {
	return cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
})

// NewCBOR builds the codec. deterministic selects the RFC 8949 core rules
// so equal pages encode to equal bytes.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	opts := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		opts = cbor.CoreDetEncOptions()
	}
	opts.Time = cbor.TimeRFC3339Nano

	enc, err := opts.EncMode()
	if err != nil {
		return CBOR[V]{}, fmt.Errorf("codec: cbor encode mode: %w", err)
	}
	dec, err := cborDecMode()
	if err != nil {
		return CBOR[V]{}, fmt.Errorf("codec: cbor decode mode: %w", err)
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("codec: cbor decode: %w", err)
	}
	return v, nil
}
