// Package broker fans out mock-server activity to zero or more
// subscribers, mirroring the subscribe/unsubscribe contract the
// teacher's tap service uses to stream captured events to its web UI
// and gRPC watchers.
package broker

import (
	"sync"
	"time"

	"github.com/atendeindustries/tstorage-clients"
)

// Event describes one request the mock server finished processing.
type Event struct {
	ID          string
	ConnID      string
	Verb        string
	KeyMin      *tstorage.Key
	KeyMax      *tstorage.Key
	RecordCount int
	Status      int32
	Acq         int64
	StartTime   time.Time
	Duration    time.Duration
	Err         string
	LastPayload []byte
}

// subscriberBuffer is the per-subscriber channel capacity; a
// subscriber slower than this drops events rather than blocking the
// publisher.
const subscriberBuffer = 64

// Broker is a simple in-process publish/subscribe hub. The zero value
// is ready to use.
type Broker struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New returns a ready-to-use Broker.
func New() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel
// together with an unsubscribe function. The returned channel must be
// drained by the caller; a full channel causes future Publish calls to
// drop events for this subscriber rather than block.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, unsub
}

// Publish delivers ev to every current subscriber. It never blocks: a
// subscriber whose buffer is full simply misses the event.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
