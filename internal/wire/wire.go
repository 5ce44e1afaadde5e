// Package wire frames persisted query results with the generation they were
// fetched under, so a restore can reject results older than the last
// invalidation of their entity type.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version    byte = 1
	kindResult byte = 1
	headerLen       = 4 + 1 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("querycache: corrupt persisted entry")
	magic4     = [...]byte{'Q', 'C', 'R', 'S'}
)

// Result is a decoded frame. Payload aliases the input buffer.
type Result struct {
	Gen       uint64
	FetchedAt time.Time
	Payload   []byte
}

// Encode layout:
//
//	magic(4) | ver(1) | kind(1) | gen(u64 be) | fetchedAt(unix nanos, i64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, fetchedAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindResult)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(fetchedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode rejects short frames, unknown versions and trailing bytes.
func Decode(b []byte) (Result, error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version || b[5] != kindResult {
		return Result{}, ErrCorrupt
	}
	off := 6

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Result{}, ErrCorrupt
	}

	return Result{
		Gen:       gen,
		FetchedAt: time.Unix(0, nanos).UTC(),
		Payload:   b[off:],
	}, nil
}
