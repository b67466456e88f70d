// Package recvbuf implements the sliding receive window used by the
// channel driver's streaming read path: a growable byte buffer with
// two cursors, current and available, tracking consumed and filled
// bytes independently of the backing array's capacity.
package recvbuf

import "fmt"

// MinCapacity is the smallest backing array size a Buffer may be
// constructed with.
const MinCapacity = 32

// Buffer is a byte window over [current, available) backed by an
// array of size capacity. It is not safe for concurrent use; a
// channel session owns exactly one Buffer at a time.
type Buffer struct {
	data      []byte
	current   int
	available int
}

// New allocates a Buffer with the given backing capacity; a capacity
// below MinCapacity is raised to MinCapacity.
func New(capacity int) *Buffer {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of unconsumed bytes currently held.
func (b *Buffer) Len() int { return b.available - b.current }

// Cap returns the size of the backing array.
func (b *Buffer) Cap() int { return len(b.data) }

// FreeLen returns the number of bytes that can still be fed before
// the backing array is exhausted.
func (b *Buffer) FreeLen() int { return len(b.data) - b.available }

// FreeSpace returns a mutable slice over the unwritten tail of the
// backing array, [available, capacity). Callers writing directly into
// it (e.g. via a transport's Read) must follow with IncreaseAvailable.
// Panics if the buffer is already full.
func (b *Buffer) FreeSpace() []byte {
	if b.FreeLen() == 0 {
		panic("recvbuf: FreeSpace called on a full buffer")
	}
	return b.data[b.available:]
}

// Feed appends data into the free tail of the buffer. Panics if data
// does not fit; callers must check FreeLen/GrowBuffer first.
func (b *Buffer) Feed(data []byte) {
	if len(data) > b.FreeLen() {
		panic(fmt.Sprintf("recvbuf: Feed: %d bytes exceeds free length %d", len(data), b.FreeLen()))
	}
	copy(b.data[b.available:], data)
	b.available += len(data)
}

// Peek borrows up to n bytes starting off past current, clamped to
// the available window. The returned slice aliases the backing array
// and is invalidated by the next GrowBuffer or Truncate call.
func (b *Buffer) Peek(n, off int) []byte {
	start := b.current + off
	if start > b.available {
		start = b.available
	}
	end := start + n
	if end > b.available {
		end = b.available
	}
	return b.data[start:end]
}

// Increase advances current by n, consuming n bytes.
func (b *Buffer) Increase(n int) {
	b.current += n
	if b.current > b.available {
		b.current = b.available
	}
}

// Rewind moves current back by n bytes.
func (b *Buffer) Rewind(n int) {
	b.current -= n
	if b.current < 0 {
		b.current = 0
	}
}

// IncreaseAvailable advances available by n, used after a caller has
// written directly into FreeSpace.
func (b *Buffer) IncreaseAvailable(n int) {
	b.available += n
	if b.available > len(b.data) {
		b.available = len(b.data)
	}
}

// Fits reports whether n unconsumed bytes are already present.
func (b *Buffer) Fits(n int) bool { return b.current+n <= b.available }

// FitsEventually reports whether n bytes could ever fit starting at
// current, given the backing array's total capacity.
func (b *Buffer) FitsEventually(n int) bool { return b.current+n <= len(b.data) }

// Truncate shifts the logical window [current, available) down to
// [0, available-current) and resets current to 0, reclaiming space
// consumed earlier in the backing array.
func (b *Buffer) Truncate() {
	n := copy(b.data, b.data[b.current:b.available])
	b.available = n
	b.current = 0
}

// GrowBuffer enlarges the backing array to at least newCap,
// preserving the logical [current, available) content's byte values
// but not its absolute offsets: growth always truncates first, so
// content ends up at [0, len).
func (b *Buffer) GrowBuffer(newCap int) {
	if newCap <= len(b.data) {
		return
	}
	b.Truncate()
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.available])
	b.data = grown
}
