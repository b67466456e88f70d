// Package wire implements the fixed-layout, little-endian encoding of
// TStorage protocol headers, keys, and records. It has no knowledge of
// transports, buffering, or sessions; it only encodes and decodes
// fixed byte layouts.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/atendeindustries/tstorage-clients"
)

// Command identifies the verb carried by a request header's status
// field.
type Command int32

const (
	CommandNull     Command = 0
	CommandGet      Command = 1
	CommandPutSafe  Command = 5
	CommandPutASafe Command = 6
	CommandGetAcq   Command = 7
)

// Sizes and bounds fixed by the protocol.
const (
	HeaderSize       = 12
	FullKeySize      = 32
	KeyNoCidSize     = 28
	KeyNoCidAcqSize  = 20
	AcqSize          = 8
	AcqPairSize      = 16
	PutEndGuard      = int32(-1)
	RecordSentinel   = int32(0)
	MaxPayload       = 32 * 1 << 20
	MinRecordSize    = KeyNoCidSize + 0
	MaxRecordSize    = KeyNoCidSize + MaxPayload
	GetRequestAuxLen = 2 * FullKeySize
)

// Header is the 12-byte envelope in front of every request and
// response.
type Header struct {
	Status int32
	Size   uint64
}

// Encode writes the header's 12-byte wire form.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Status))
	binary.LittleEndian.PutUint64(b[4:12], h.Size)
	return b
}

// DecodeHeader parses a 12-byte buffer into a Header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("wire: header: expected %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		Status: int32(binary.LittleEndian.Uint32(b[0:4])),
		Size:   binary.LittleEndian.Uint64(b[4:12]),
	}, nil
}

// EncodeFullKey writes all 32 bytes of k, cid included, acq included.
func EncodeFullKey(k tstorage.Key) []byte {
	b := make([]byte, FullKeySize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(k.Cid))
	binary.LittleEndian.PutUint64(b[4:12], uint64(k.Mid))
	binary.LittleEndian.PutUint32(b[12:16], uint32(k.Moid))
	binary.LittleEndian.PutUint64(b[16:24], uint64(k.Cap))
	binary.LittleEndian.PutUint64(b[24:32], uint64(k.Acq))
	return b
}

// DecodeFullKey parses a 32-byte full key.
func DecodeFullKey(b []byte) (tstorage.Key, error) {
	if len(b) != FullKeySize {
		return tstorage.Key{}, fmt.Errorf("wire: full key: expected %d bytes, got %d", FullKeySize, len(b))
	}
	return tstorage.Key{
		Cid:  int32(binary.LittleEndian.Uint32(b[0:4])),
		Mid:  int64(binary.LittleEndian.Uint64(b[4:12])),
		Moid: int32(binary.LittleEndian.Uint32(b[12:16])),
		Cap:  int64(binary.LittleEndian.Uint64(b[16:24])),
		Acq:  int64(binary.LittleEndian.Uint64(b[24:32])),
	}, nil
}

// EncodeKeyNoCid writes the 28-byte key layout used by PUTASAFE
// records: mid, moid, cap, acq, cid omitted.
func EncodeKeyNoCid(k tstorage.Key) []byte {
	b := make([]byte, KeyNoCidSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(k.Mid))
	binary.LittleEndian.PutUint32(b[8:12], uint32(k.Moid))
	binary.LittleEndian.PutUint64(b[12:20], uint64(k.Cap))
	binary.LittleEndian.PutUint64(b[20:28], uint64(k.Acq))
	return b
}

// DecodeKeyNoCid parses a 28-byte key-without-cid, filling cid from
// the caller (the group header on the wire).
func DecodeKeyNoCid(b []byte, cid int32) (tstorage.Key, error) {
	if len(b) != KeyNoCidSize {
		return tstorage.Key{}, fmt.Errorf("wire: key w/o cid: expected %d bytes, got %d", KeyNoCidSize, len(b))
	}
	return tstorage.Key{
		Cid:  cid,
		Mid:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Moid: int32(binary.LittleEndian.Uint32(b[8:12])),
		Cap:  int64(binary.LittleEndian.Uint64(b[12:20])),
		Acq:  int64(binary.LittleEndian.Uint64(b[20:28])),
	}, nil
}

// EncodeKeyNoCidAcq writes the 20-byte key layout used by PUTSAFE
// records: mid, moid, cap only; cid travels in the group header and
// acq is assigned by the server.
func EncodeKeyNoCidAcq(k tstorage.Key) []byte {
	b := make([]byte, KeyNoCidAcqSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(k.Mid))
	binary.LittleEndian.PutUint32(b[8:12], uint32(k.Moid))
	binary.LittleEndian.PutUint64(b[12:20], uint64(k.Cap))
	return b
}

// DecodeKeyNoCidAcq parses the 20-byte key-without-cid-or-acq layout.
func DecodeKeyNoCidAcq(b []byte, cid int32, acq int64) (tstorage.Key, error) {
	if len(b) != KeyNoCidAcqSize {
		return tstorage.Key{}, fmt.Errorf("wire: key w/o cid/acq: expected %d bytes, got %d", KeyNoCidAcqSize, len(b))
	}
	return tstorage.Key{
		Cid:  cid,
		Mid:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Moid: int32(binary.LittleEndian.Uint32(b[8:12])),
		Cap:  int64(binary.LittleEndian.Uint64(b[12:20])),
		Acq:  acq,
	}, nil
}

// EncodeInt32 writes a little-endian i32, used for record_size,
// batch_bytes, cid group prefixes, and the put terminator.
func EncodeInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// DecodeInt32 reads a little-endian i32.
func DecodeInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// EncodeInt64 writes a little-endian i64, used for acq fields in
// response trailers.
func EncodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeInt64 reads a little-endian i64.
func DecodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}
