package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/atendeindustries/tstorage-clients"
	"github.com/atendeindustries/tstorage-clients/internal/wire"
)

// Config configures a Channel or AsyncChannel session: §6, "Channel
// API" configuration table.
type Config struct {
	Host string
	Port int

	// TLSConfig, if non-nil, wraps the TCP connection in TLS using
	// Host as the server name.
	TLSConfig *tls.Config

	// Timeout bounds the dial and each request of a blocking Channel:
	// the deadline is set once when a request starts and covers all of
	// that request's reads and writes together, not each one
	// separately. AsyncChannel ignores it and derives its deadlines
	// from the context passed to each method.
	Timeout time.Duration

	// MemoryLimit bounds total bytes buffered during a streaming get;
	// zero disables the limit.
	MemoryLimit int

	// RecvBufferSize sizes the initial receive window; zero uses a
	// 64KiB default.
	RecvBufferSize int

	// MaxBatchSize bounds the size of one outbound put/puta frame;
	// zero is unbounded.
	MaxBatchSize int

	// SkipInvalid, when true, skips records with an invalid key
	// during put/puta instead of truncating the batch at that point.
	SkipInvalid bool
}

func (c Config) engineConfig() engineConfig {
	return engineConfig{
		timeout:        c.Timeout,
		recvBufferSize: c.RecvBufferSize,
		memoryLimit:    c.MemoryLimit,
		maxBatchSize:   c.MaxBatchSize,
		skipInvalid:    c.SkipInvalid,
	}
}

func (c Config) dial() (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	conn, err := net.DialTimeout("tcp", addr, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("channel: dial %s: %w", addr, err)
	}
	if c.TLSConfig != nil {
		cfg := c.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = c.Host
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("channel: tls handshake: %w", err)
		}
		return tlsConn, nil
	}
	return conn, nil
}

// Channel is the blocking, synchronous-socket session driver: §4.F,
// "blocking flavour". It is not safe for concurrent use by multiple
// goroutines; a session carries at most one in-flight request.
type Channel[T any] struct {
	cfg     Config
	payload tstorage.PayloadType[T]
	conn    net.Conn
}

// NewChannel constructs a disconnected Channel for the given payload
// type. Call Connect before issuing any other operation.
func NewChannel[T any](cfg Config, pt tstorage.PayloadType[T]) *Channel[T] {
	return &Channel[T]{cfg: cfg, payload: pt}
}

// Connect opens the TCP (optionally TLS-wrapped) connection. Returns
// OK or ERROR; on ERROR the channel remains disconnected.
func (c *Channel[T]) Connect() tstorage.Response {
	conn, err := c.cfg.dial()
	if err != nil {
		return tstorage.Response{Status: tstorage.StatusError}
	}
	c.conn = conn
	return tstorage.Response{Status: tstorage.StatusOK}
}

// Close performs an orderly shutdown and closes the transport. OK if
// the channel had been connected, ERROR otherwise (including on a
// repeated Close).
func (c *Channel[T]) Close() tstorage.Response {
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

// WithConnection runs fn against a newly connected channel and
// guarantees Close is called on every exit path, mirroring the scoped
// acquisition pattern of §4.F.1.
func WithConnection[T any](cfg Config, pt tstorage.PayloadType[T], fn func(*Channel[T]) error) error {
	ch := NewChannel(cfg, pt)
	if resp := ch.Connect(); !resp.Status.OK() {
		return fmt.Errorf("channel: connect: status %s", resp.Status)
	}
	defer ch.Close()
	return fn(ch)
}

func (c *Channel[T]) earlyCloseOn(status tstorage.Status) tstorage.Status {
	if !status.OK() {
		c.Close()
	}
	return status
}

// Put sends a PUTSAFE request: records arrive without caller-supplied
// acqs, and the server assigns one per record.
func (c *Channel[T]) Put(records []tstorage.Record[T]) tstorage.Response {
	if c.conn == nil {
		return tstorage.Response{Status: tstorage.StatusDisconnected}
	}
	return doPut(context.Background(), c.conn, c.cfg.engineConfig(), wire.CommandPutSafe, false, records, c.payload)
}

// PutA sends a PUTASAFE request: records carry the caller's own keys,
// acq included, unmodified by the server.
func (c *Channel[T]) PutA(records []tstorage.Record[T]) tstorage.Response {
	if c.conn == nil {
		return tstorage.Response{Status: tstorage.StatusDisconnected}
	}
	return doPut(context.Background(), c.conn, c.cfg.engineConfig(), wire.CommandPutASafe, true, records, c.payload)
}

// GetAcq issues GETACQ: §4.F.3. Unlike get/get_stream/get_iter, an
// ERROR here does not force the session closed: §7 groups get_acq
// with put/puta as safe to keep using after a rejected request.
func (c *Channel[T]) GetAcq(keyMin, keyMax tstorage.Key) tstorage.ResponseAcq {
	if c.conn == nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	return doGetAcq(context.Background(), c.conn, c.cfg.engineConfig(), keyMin, keyMax)
}

// Get issues GET and buffers every matching record: §4.F.4.
func (c *Channel[T]) Get(keyMin, keyMax tstorage.Key) tstorage.ResponseGet[T] {
	if c.conn == nil {
		return tstorage.ResponseGet[T]{Status: tstorage.StatusDisconnected}
	}
	resp := doGet(context.Background(), c.conn, c.cfg.engineConfig(), keyMin, keyMax, c.payload)
	c.earlyCloseOn(resp.Status)
	return resp
}

// GetStream issues GET and flushes batches to cb as they are parsed:
// §4.F.4.
func (c *Channel[T]) GetStream(keyMin, keyMax tstorage.Key, cb func([]tstorage.Record[T])) tstorage.ResponseAcq {
	if c.conn == nil {
		return tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}
	}
	resp := doGetStream(context.Background(), c.conn, c.cfg.engineConfig(), keyMin, keyMax, c.payload, cb)
	c.earlyCloseOn(resp.Status)
	return resp
}

// GetIter issues GET and returns a scanner-style iterator: call Next
// until it returns false, read Record after each true Next, then
// Result for the terminal ResponseAcq.
func (c *Channel[T]) GetIter(keyMin, keyMax tstorage.Key) *Iterator[T] {
	if c.conn == nil {
		return &Iterator[T]{result: tstorage.ResponseAcq{Status: tstorage.StatusDisconnected}, done: true}
	}
	return newIterator(c, keyMin, keyMax)
}
