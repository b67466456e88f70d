package mockserver

import (
	"sync"

	"github.com/atendeindustries/tstorage-clients"
)

// entry is one stored record plus its monotonic insertion index.
// Entries are kept in insertion order, which Range preserves on
// retrieval even for records whose keys compare equal.
type entry struct {
	uid   int
	key   tstorage.Key
	value []byte
}

// store is the reference server's in-memory (uid, Key) -> bytes
// table. It is not a production index: Range scans every entry
// linearly, which is acceptable for a test/reference tool.
type store struct {
	mu      sync.Mutex
	entries []entry
	nextUID int
}

func newStore() *store {
	return &store{}
}

// Put inserts one record and returns the uid it was assigned.
func (s *store) Put(key tstorage.Key, value []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.nextUID
	s.nextUID++
	s.entries = append(s.entries, entry{uid: uid, key: key, value: value})
	return uid
}

// Range returns every stored record whose key falls within
// [keyMin, keyMax] componentwise, in insertion order.
func (s *store) Range(keyMin, keyMax tstorage.Key) []tstorage.Record[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []tstorage.Record[[]byte]
	for _, e := range s.entries {
		if keyWithinRange(e.key, keyMin, keyMax) {
			out = append(out, tstorage.Record[[]byte]{Key: e.key, Value: e.value})
		}
	}
	return out
}

// keyLEComponentwise reports whether a <= b in every field, the mock
// server's quirk comparison (stricter, and different, from the
// client-facing lexicographic Key ordering).
func keyLEComponentwise(a, b tstorage.Key) bool {
	return a.Cid <= b.Cid && a.Mid <= b.Mid && a.Moid <= b.Moid && a.Cap <= b.Cap && a.Acq <= b.Acq
}

// keyLTComponentwise reports whether a < b in every field.
func keyLTComponentwise(a, b tstorage.Key) bool {
	return a.Cid < b.Cid && a.Mid < b.Mid && a.Moid < b.Moid && a.Cap < b.Cap && a.Acq < b.Acq
}

func keyWithinRange(k, min, max tstorage.Key) bool {
	return keyLEComponentwise(min, k) && keyLEComponentwise(k, max)
}
