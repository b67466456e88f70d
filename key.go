// Package tstorage holds the core types of the client for the TStorage
// time-series storage service: keys and records, the payload type
// contract, response statuses, and timestamp conversions. The wire
// protocol lives in internal/wire and the session driver in package
// channel.
package tstorage

import "math"

// Key uniquely identifies a stored Record. Ordering is lexicographic in
// the declared field order: Cid, Mid, Moid, Cap, Acq.
type Key struct {
	Cid  int32
	Mid  int64
	Moid int32
	Cap  int64
	Acq  int64
}

// KeyMin returns the smallest possible Key.
func KeyMin() Key {
	return Key{Cid: 0, Mid: math.MinInt64, Moid: math.MinInt32, Cap: math.MinInt64, Acq: math.MinInt64}
}

// KeyMax returns the largest possible Key.
func KeyMax() Key {
	return Key{Cid: math.MaxInt32, Mid: math.MaxInt64, Moid: math.MaxInt32, Cap: math.MaxInt64, Acq: math.MaxInt64}
}

// Valid reports whether the key could identify a real stored record.
// A negative Cid marks an invalid or terminator key.
func (k Key) Valid() bool {
	return k.Cid >= 0
}

// Less reports whether k sorts strictly before other in the key's
// lexicographic field order.
func (k Key) Less(other Key) bool {
	if k.Cid != other.Cid {
		return k.Cid < other.Cid
	}
	if k.Mid != other.Mid {
		return k.Mid < other.Mid
	}
	if k.Moid != other.Moid {
		return k.Moid < other.Moid
	}
	if k.Cap != other.Cap {
		return k.Cap < other.Cap
	}
	return k.Acq < other.Acq
}

// Record pairs a Key with an opaque, payload-type-interpreted value.
type Record[T any] struct {
	Key   Key
	Value T
}
