package codec

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf encodes generated message types. New must return a fresh,
// non-nil message, e.g. func() *structpb.Struct { return &structpb.Struct{} }.
type Protobuf[T proto.Message] struct {
	New func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{New: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.New()
	err := proto.Unmarshal(b, m)
	return m, err
}

// Struct persists any JSON-shaped V as a protobuf structpb.Value. Numbers
// travel as float64, so integers above 2^53 lose precision.
type Struct[V any] struct{}

func (Struct[V]) Encode(v V) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, err
	}
	return Protobuf[*structpb.Value]{}.Encode(pv)
}

func (Struct[V]) Decode(b []byte) (V, error) {
	var v V
	pv, err := NewProtobuf(func() *structpb.Value { return &structpb.Value{} }).Decode(b)
	if err != nil {
		return v, err
	}
	raw, err := json.Marshal(pv.AsInterface())
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
