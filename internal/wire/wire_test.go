package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 30, 0, 123, time.UTC)
	cases := []struct {
		gen     uint64
		payload []byte
	}{
		{0, nil},
		{42, []byte(`{"blogs":[]}`)},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		r, err := Decode(Encode(tc.gen, at, tc.payload))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if r.Gen != tc.gen {
			t.Fatalf("gen mismatch: got %d want %d", r.Gen, tc.gen)
		}
		if !r.FetchedAt.Equal(at) {
			t.Fatalf("fetchedAt mismatch: got %v want %v", r.FetchedAt, at)
		}
		if !bytes.Equal(r.Payload, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", r.Payload, tc.payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(7, time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(1, time.Now(), []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindResult + 1
	if _, err := Decode(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// length field larger than the remaining payload
	badLen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badLen[headerLen-4:headerLen], 1<<20)
	if _, err := Decode(badLen); err == nil {
		t.Fatalf("expected error on oversized vlen")
	}

	if _, err := Decode(enc[:headerLen-1]); err == nil {
		t.Fatalf("expected error on truncated header")
	}
}
