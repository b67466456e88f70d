package main

import (
	"crypto/tls"
	"fmt"
	"net"
)

// listenTLS wraps a plain TCP listener with TLS using the given PEM
// certificate/key pair, the opaque transport wrapping described in
// the protocol's TLS negotiation note.
func listenTLS(addr, certPath, keyPath string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("tls listen %s: %w", addr, err)
	}
	return ln, nil
}
