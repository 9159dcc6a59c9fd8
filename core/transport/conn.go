package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/webpp/core/errs"
	"github.com/searchktools/webpp/core/http"
	"github.com/searchktools/webpp/core/pools"
)

const (
	readBufferSize     = 4096
	closeNotifyTimeout = 250 * time.Millisecond
)

var readBuffers = pools.NewBytePool()

// conn is the Transport implementation for both capabilities. raw is the
// TCP socket; nc is raw itself or the TLS layer on top of it.
type conn struct {
	raw net.Conn
	nc  net.Conn
	tls *tls.Conn
	src *http.BufSource
	buf []byte

	shutdown sync.Once
	closed   atomic.Bool
}

func newConn(raw, nc net.Conn, tc *tls.Conn, maxHeader int) *conn {
	if maxHeader <= 0 {
		maxHeader = DefaultMaxHeaderBytes
	}
	buf := readBuffers.Get(readBufferSize)
	return &conn{
		raw: raw,
		nc:  nc,
		tls: tc,
		src: http.NewBufSource(nc, buf, maxHeader),
		buf: buf,
	}
}

func (c *conn) ReadUntil(delim string) (int, error) { return c.src.ReadUntil(delim) }
func (c *conn) ReadExactly(n int) error             { return c.src.ReadExactly(n) }
func (c *conn) Buffered() int                       { return c.src.Buffered() }
func (c *conn) Next(n int) []byte                   { return c.src.Next(n) }

func (c *conn) Write(p []byte) (int, error) { return c.nc.Write(p) }

func (c *conn) Secure() bool { return c.tls != nil }

func (c *conn) NetConn() net.Conn { return c.nc }

func (c *conn) Handshake(ctx context.Context) error {
	if c.tls == nil {
		return nil
	}
	if err := c.tls.HandshakeContext(ctx); err != nil {
		return errs.E(errs.Transport, "tls handshake", err)
	}
	return nil
}

func (c *conn) RemoteEndpoint() (string, int, error) {
	addr := c.raw.RemoteAddr()
	if addr == nil {
		return "", 0, errs.Errorf(errs.Transport, "remote endpoint", "not connected")
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", 0, errs.E(errs.Transport, "remote endpoint", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, errs.E(errs.Transport, "remote endpoint", err)
	}
	return host, p, nil
}

func (c *conn) Shutdown() error {
	c.shutdown.Do(func() {
		if sc, ok := c.raw.(interface {
			SyscallConn() (syscall.RawConn, error)
		}); ok {
			if rc, err := sc.SyscallConn(); err == nil {
				_ = rc.Control(func(fd uintptr) {
					_ = unix.Shutdown(int(fd), unix.SHUT_RDWR)
				})
			}
		}
		_ = c.raw.Close()
	})
	return nil
}

func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if c.tls != nil {
		_ = c.tls.SetWriteDeadline(time.Now().Add(closeNotifyTimeout))
		err = c.tls.Close()
	} else {
		err = c.raw.Close()
	}
	readBuffers.Put(c.buf)
	c.buf = nil
	return err
}

// ReadBufferStats reports the pool transports take read buffers from
func ReadBufferStats() pools.BytePoolStats {
	return readBuffers.Stats()
}
