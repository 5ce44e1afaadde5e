package codec

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

type post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestByNameRoundTripsPost(t *testing.T) {
	in := post{ID: "p1", Title: "Net metering explained", CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	for _, name := range []string{"", NameJSON, NameCBOR, NameMsgpack, NameProto} {
		c, err := ByName[post](name, 0)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%q encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%q decode: %v", name, err)
		}
		if out.ID != in.ID || out.Title != in.Title || !out.CreatedAt.Equal(in.CreatedAt) {
			t.Fatalf("%q round trip: got %+v want %+v", name, out, in)
		}
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName[post]("yaml", 0); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestLimitCodecRejectsOversized(t *testing.T) {
	c, err := ByName[post](NameJSON, 16)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encode(post{ID: "p1", Title: "a title long enough to exceed the limit"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(b); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestProtobufStruct(t *testing.T) {
	c := NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	in, err := structpb.NewStruct(map[string]any{"city": "Pune", "bill": 4200.0})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.Fields["city"].GetStringValue() != "Pune" || out.Fields["bill"].GetNumberValue() != 4200 {
		t.Fatalf("unexpected decode: %v", out)
	}
}
