package channel

import (
	"context"
	"net"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// AsyncChannel is the cooperatively-suspending session driver: §4.F,
// "cooperative flavour". Every method takes a context.Context as its
// first argument; deadlines are derived from it per call instead of
// from a fixed socket timeout, and cancellation at a suspension point
// surfaces as a transport error that still closes the session on the
// unwinding path. It shares all parsing and batching logic with
// Channel through the package's internal engine; only the deadline
// source differs.
type AsyncChannel[T any] struct {
	cfg     Config
	payload tstorage.PayloadType[T]
	conn    net.Conn
}

// NewAsyncChannel constructs a disconnected AsyncChannel for the
// given payload type.
func NewAsyncChannel[T any](cfg Config, pt tstorage.PayloadType[T]) *AsyncChannel[T] {
	cfg.Timeout = 0 // deadlines come from each call's context
	return &AsyncChannel[T]{cfg: cfg, payload: pt}
}

// Connect dials under ctx; cancellation aborts the dial and returns
// ERROR.
func (c *AsyncChannel[T]) Connect(ctx context.Context) tstorage.Response {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := c.cfg.dial()
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return tstorage.Response{Status: tstorage.StatusError}
	case r := <-done:
		if r.err != nil {
			return tstorage.Response{Status: tstorage.StatusError}
		}
		c.conn = r.conn
		return tstorage.Response{Status: tstorage.StatusOK}
	}
}

// Close tears the transport down; ctx is honoured only in the sense
// that a cancelled context still allows the local close to proceed
// (there's no remote round-trip to abort).
func (c *AsyncChannel[T]) Close(context.Context) tstorage.Response {
	if c.conn == nil {
		return tstorage.Response{Status: tstorage.StatusError}
	}
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return tstorage.Response{Status: tstorage.StatusError}
	}
	return tstorage.Response{Status: tstorage.StatusOK}
}

func (c *AsyncChannel[T]) earlyCloseOn(ctx context.Context, status tstorage.Status) tstorage.Status {
	if !status.OK() {
		c.Close(ctx)
	}
	return status
}

// Put sends a PUTSAFE request.
func (c *AsyncChannel[T]) Put(ctx context.Context, records []tstorage.Record[T]) tstorage.Response {
	if c.conn == nil {
		return tstorage.Response{Status: tstorage.StatusDisconnected}
	}
	return doPut(ctx, c.conn, c.cfg.engineConfig(), wire.CommandPutSafe, false, records, c.payload)
}

// PutA sends a PUTASAFE request.
func (c *AsyncChannel[T]) PutA(ctx context.Context, records []tstorage.Record[T]) tstorage.Response {
	if c.conn == nil {
		return tstorage.Response{Status: tstorage.StatusDisconnected}
	}
	return doPut(ctx, c.conn, c.cfg.engineConfig(), wire.CommandPutASafe, true, records, c.payload)
}

// GetAcq issues GETACQ. Unlike get/get_stream/get_iter, an ERROR here
// does not force the session closed: §7 groups get_acq with put/puta
// as safe to keep using after a rejected request.
func (c *AsyncChannel[T]) GetAcq(ctx context.Context, keyMin, keyMax tstorage.Key) tstorage.ResponseAcq {
	if c.conn == nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	return doGetAcq(ctx, c.conn, c.cfg.engineConfig(), keyMin, keyMax)
}

// Get issues GET and buffers every matching record.
func (c *AsyncChannel[T]) Get(ctx context.Context, keyMin, keyMax tstorage.Key) tstorage.ResponseGet[T] {
	if c.conn == nil {
		return tstorage.ResponseGet[T]{Status: tstorage.StatusDisconnected}
	}
	resp := doGet(ctx, c.conn, c.cfg.engineConfig(), keyMin, keyMax, c.payload)
	c.earlyCloseOn(ctx, resp.Status)
	return resp
}

// GetStream issues GET and flushes batches to cb as they are parsed.
func (c *AsyncChannel[T]) GetStream(ctx context.Context, keyMin, keyMax tstorage.Key, cb func([]tstorage.Record[T])) tstorage.ResponseAcq {
	if c.conn == nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	resp := doGetStream(ctx, c.conn, c.cfg.engineConfig(), keyMin, keyMax, c.payload, cb)
	c.earlyCloseOn(ctx, resp.Status)
	return resp
}

// AsyncIterator is the cooperative counterpart of Iterator: each
// advance is an explicit suspension point via ctx.
type AsyncIterator[T any] struct {
	ch     *AsyncChannel[T]
	msgs   chan iterMsg[T]
	cur    tstorage.Record[T]
	result tstorage.ResponseAcq
	done   bool
}

// GetIter issues GET and returns a cooperative iterator; Next blocks
// (suspends) until a record or the terminal result is available, or
// ctx is cancelled.
func (c *AsyncChannel[T]) GetIter(ctx context.Context, keyMin, keyMax tstorage.Key) *AsyncIterator[T] {
	if c.conn == nil {
		return &AsyncIterator[T]{result: tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}, done: true}
	}
	it := &AsyncIterator[T]{ch: c, msgs: make(chan iterMsg[T], 1)}
	go func() {
		result := doGetStream(ctx, c.conn, c.cfg.engineConfig(), keyMin, keyMax, c.payload, func(b []tstorage.Record[T]) {
			for _, r := range b {
				it.msgs <- iterMsg[T]{rec: r}
			}
		})
		c.earlyCloseOn(ctx, result.Status)
		it.msgs <- iterMsg[T]{last: true, result: result}
		close(it.msgs)
	}()
	return it
}

// Next suspends until the next record is available, ctx is
// cancelled, or the stream is exhausted.
func (it *AsyncIterator[T]) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	select {
	case <-ctx.Done():
		it.done = true
		return false
	case msg, ok := <-it.msgs:
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
}

// Record returns the record produced by the most recent Next call.
func (it *AsyncIterator[T]) Record() tstorage.Record[T] { return it.cur }

// Result returns the terminal ResponseAcq. Valid once Next has
// returned false due to exhaustion (not cancellation).
func (it *AsyncIterator[T]) Result() tstorage.ResponseAcq { return it.result }
