// Package codec converts query results to and from bytes so the cache can
// persist last-known-good values in a provider.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameCBOR    = "cbor"
	NameMsgpack = "msgpack"
	NameProto   = "proto"
)

// ByName returns the codec registered under name, wrapped in a LimitCodec
// when maxDecode > 0. Empty name selects JSON.
func ByName[V any](name string, maxDecode int) (Codec[V], error) {
	var inner Codec[V]
	switch name {
	case "", NameJSON:
		inner = JSON[V]{}
	case NameCBOR:
		cb, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		inner = cb
	case NameMsgpack:
		inner = Msgpack[V]{}
	case NameProto:
		inner = Struct[V]{}
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	if maxDecode > 0 {
		return LimitCodec[V]{Inner: inner, MaxDecode: maxDecode}, nil
	}
	return inner, nil
}
