// Package mockserver implements a reference TStorage server: an
// in-memory store and the same protocol the client package speaks,
// used for integration tests and for the standalone daemon in
// cmd/tstorage-mockd.
package mockserver

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atendeindustries/tstorage-clients/broker"
)

// DefaultAddr is the address the reference server listens on when
// none is given, matching the protocol's historical default.
const DefaultAddr = "127.0.0.1:2090"

// defaultConnTimeout bounds how long one connection may sit idle
// before the server gives up on it.
const defaultConnTimeout = 20 * time.Second

// Server is a single reference TStorage server instance: one store,
// one last-acq clock, and an optional event broker and traffic
// logger shared by every accepted connection.
type Server struct {
	store   *store
	Broker  *broker.Broker
	Logger  io.Writer // optional; receives indented, hex-dumped traffic
	Timeout time.Duration

	mu      sync.Mutex
	lastAcq int64

	listener net.Listener
}

// New constructs a Server with an empty store. lastAcq starts at the
// minimum possible acq, matching the reference server's MINACQ
// initialization, so a pristine server rejects a range reaching into
// the future until it has actually stored something.
func New() *Server {
	return &Server{store: newStore(), Timeout: defaultConnTimeout, lastAcq: math.MinInt64}
}

// ListenAndServe listens on addr (DefaultAddr if empty) and serves
// connections until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mockserver: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts and handles connections from an already-bound
// listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.listener = ln
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mockserver: accept: %w", err)
		}

		connID := uuid.NewString()
		var wrapped net.Conn = raw
		if s.Logger != nil {
			wrapped = &loggingConn{Conn: raw, id: connID, w: s.Logger}
		}
		c := &conn{
			raw:     wrapped,
			id:      connID,
			srv:     s,
			timeout: s.Timeout,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.serve(ctx)
		}()
	}
}

// Addr returns the listener's bound address; valid only after Serve
// or ListenAndServe has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) publish(ev broker.Event) {
	if s.Broker != nil {
		s.Broker.Publish(ev)
	}
}

// getAcq implements §4.G's GETACQ clamp: if the caller asks further
// forward than acqFollowThreshold past the server's clock, the clock
// is resampled; the result is then clamped to the caller's ceiling.
func (s *Server) getAcq(keyMaxAcq int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keyMaxAcq > s.lastAcq+acqFollowThreshold {
		s.lastAcq = now()
	}
	if keyMaxAcq < s.lastAcq {
		s.lastAcq = keyMaxAcq
	}
	return s.lastAcq
}

// observeAcq folds a timestamp into the server's known-latest clock.
// handlePut calls this with now() after every stored record,
// regardless of whether the record itself carries the client's own
// acq (PUTA), matching the reference server's unconditional clock
// resample on every put.
func (s *Server) observeAcq(acq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acq > s.lastAcq {
		s.lastAcq = acq
	}
}

func (s *Server) currentLastAcq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAcq
}
