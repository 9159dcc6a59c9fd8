// Package transport provides the byte streams HTTP messages travel over:
// plain TCP or TLS on top of TCP, behind one interface.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/searchktools/webpp/core/errs"
	"github.com/searchktools/webpp/core/http"
)

// DefaultMaxHeaderBytes bounds a message head when no limit is configured.
const DefaultMaxHeaderBytes = 64 << 10

// Transport is one connected byte stream. Reads are buffered; see
// http.Source. A Transport is used by one goroutine at a time, except
// Shutdown which may be called from anywhere, e.g. a Guard.
type Transport interface {
	http.Source
	io.Writer

	// Handshake runs the TLS handshake. It is a no-op for plain streams.
	Handshake(ctx context.Context) error
	// Shutdown shuts the socket down in both directions and closes it.
	// Blocked reads and writes return immediately. It is idempotent.
	Shutdown() error
	// Close closes the stream and releases its buffers.
	Close() error
	// RemoteEndpoint returns the peer address and port.
	RemoteEndpoint() (string, int, error)
	// Secure reports whether the stream is TLS protected.
	Secure() bool
	// NetConn returns the connection the stream reads from and writes to.
	NetConn() net.Conn
}

// Capability creates transports of one kind.
type Capability interface {
	// Accept waits for the next connection on ln.
	Accept(ln net.Listener) (Transport, error)
	// Dial connects to addr. The TLS handshake, if any, is left to
	// Handshake.
	Dial(ctx context.Context, addr string) (Transport, error)
	// Secure reports whether the capability produces TLS streams.
	Secure() bool
}

// Plain produces unencrypted TCP streams.
type Plain struct {
	Dialer         net.Dialer
	MaxHeaderBytes int
}

func (p *Plain) Secure() bool { return false }

func (p *Plain) Accept(ln net.Listener) (Transport, error) {
	raw, err := acceptTCP(ln)
	if err != nil {
		return nil, err
	}
	return newConn(raw, raw, nil, p.MaxHeaderBytes), nil
}

func (p *Plain) Dial(ctx context.Context, addr string) (Transport, error) {
	raw, err := dialTCP(ctx, &p.Dialer, addr)
	if err != nil {
		return nil, err
	}
	return newConn(raw, raw, nil, p.MaxHeaderBytes), nil
}

// Secure produces TLS streams. Config must carry certificates for the
// server role; for the client role an empty ServerName is filled from the
// dialled host.
type Secure struct {
	Config         *tls.Config
	Dialer         net.Dialer
	MaxHeaderBytes int
}

func (s *Secure) Secure() bool { return true }

func (s *Secure) Accept(ln net.Listener) (Transport, error) {
	raw, err := acceptTCP(ln)
	if err != nil {
		return nil, err
	}
	tc := tls.Server(raw, s.config())
	return newConn(raw, tc, tc, s.MaxHeaderBytes), nil
}

func (s *Secure) Dial(ctx context.Context, addr string) (Transport, error) {
	raw, err := dialTCP(ctx, &s.Dialer, addr)
	if err != nil {
		return nil, err
	}
	tc := tls.Client(raw, s.clientConfig(addr))
	return newConn(raw, tc, tc, s.MaxHeaderBytes), nil
}

// Upgrade starts TLS on an established plain stream, e.g. a proxy tunnel.
// The plain stream must not hold buffered bytes.
func (s *Secure) Upgrade(t Transport, addr string) (Transport, error) {
	if t.Buffered() != 0 {
		return nil, errs.Errorf(errs.Transport, "tls upgrade", "%d unexpected bytes before handshake", t.Buffered())
	}
	c, ok := t.(*conn)
	if !ok || c.tls != nil {
		return nil, errs.Errorf(errs.Transport, "tls upgrade", "not a plain stream")
	}
	tc := tls.Client(c.raw, s.clientConfig(addr))
	c.nc, c.tls = tc, tc
	c.src.Reset(tc)
	return c, nil
}

func (s *Secure) config() *tls.Config {
	if s.Config == nil {
		return &tls.Config{}
	}
	return s.Config
}

func (s *Secure) clientConfig(addr string) *tls.Config {
	cfg := s.config()
	if cfg.ServerName != "" {
		return cfg
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	cfg = cfg.Clone()
	cfg.ServerName = host
	return cfg
}

func acceptTCP(ln net.Listener) (net.Conn, error) {
	raw, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return raw, nil
}

func dialTCP(ctx context.Context, d *net.Dialer, addr string) (net.Conn, error) {
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.E(errs.Transport, "dial "+addr, err)
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return raw, nil
}
