package channel

import (
	"context"

	"github.com/atendeindustries/tstorage-clients"
)

// Iterator yields records parsed from a GET response one at a time,
// then a terminal ResponseAcq: §4.F.4, get_iter. Abandoning an
// Iterator before exhausting it leaves the session in an undefined
// protocol state; callers that stop early should Close the owning
// Channel.
type Iterator[T any] struct {
	msgs   chan iterMsg[T]
	cur    tstorage.Record[T]
	result tstorage.ResponseAcq
	done   bool
}

type iterMsg[T any] struct {
	rec    tstorage.Record[T]
	last   bool
	result tstorage.ResponseAcq
}

func newIterator[T any](ch *Channel[T], keyMin, keyMax tstorage.Key) *Iterator[T] {
	it := &Iterator[T]{msgs: make(chan iterMsg[T], 1)}
	go func() {
		result := doGetStream(context.Background(), ch.conn, ch.cfg.engineConfig(), keyMin, keyMax, ch.payload, func(b []tstorage.Record[T]) {
			for _, r := range b {
				it.msgs <- iterMsg[T]{rec: r}
			}
		})
		ch.earlyCloseOn(result.Status)
		it.msgs <- iterMsg[T]{last: true, result: result}
		close(it.msgs)
	}()
	return it
}

// Next advances to the next record, returning false once every record
// has been yielded (the terminal ResponseAcq is then available via
// Result).
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	msg, ok := <-it.msgs
	if !ok {
		it.done = true
		return false
	}
	if msg.last {
		it.result = msg.result
		it.done = true
		return false
	}
	it.cur = msg.rec
	return true
}

// Record returns the record produced by the most recent Next call.
func (it *Iterator[T]) Record() tstorage.Record[T] { return it.cur }

// Result returns the terminal ResponseAcq. Valid once Next has
// returned false.
func (it *Iterator[T]) Result() tstorage.ResponseAcq { return it.result }
