package tstorage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadType converts a value of type T to and from the raw bytes
// carried on the wire as a record's value. Implementations must be
// stateless: ToBytes/FromBytes are called concurrently from multiple
// channel goroutines.
type PayloadType[T any] interface {
	ToBytes(v T) []byte
	FromBytes(b []byte) (T, error)
}

// BytesPayload is the identity PayloadType: the wire value is exactly
// the byte slice stored and retrieved.
type BytesPayload struct{}

func (BytesPayload) ToBytes(v []byte) []byte { return v }

func (BytesPayload) FromBytes(b []byte) ([]byte, error) { return b, nil }

// UnitPayload represents records that carry no value; ToBytes always
// produces an empty payload and FromBytes accepts only an empty one.
type UnitPayload struct{}

// Unit is the single value of UnitPayload.
type Unit struct{}

func (UnitPayload) ToBytes(Unit) []byte { return nil }

func (UnitPayload) FromBytes(b []byte) (Unit, error) {
	if len(b) != 0 {
		return Unit{}, fmt.Errorf("tstorage: unit payload: unexpected %d bytes", len(b))
	}
	return Unit{}, nil
}

// Int64Payload encodes a single little-endian int64, the fixed-width
// numeric payload shape used by most TStorage metric streams.
type Int64Payload struct{}

func (Int64Payload) ToBytes(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func (Int64Payload) FromBytes(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("tstorage: int64 payload: expected 8 bytes, got %d", len(b))
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// Float64Payload encodes a single little-endian IEEE-754 float64.
type Float64Payload struct{}

func (Float64Payload) ToBytes(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func (Float64Payload) FromBytes(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("tstorage: float64 payload: expected 8 bytes, got %d", len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
