// Package client sends HTTP/1.1 requests over one reusable plain or TLS
// connection, optionally through a proxy.
package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/searchktools/webpp/core/errs"
	"github.com/searchktools/webpp/core/http"
	"github.com/searchktools/webpp/core/pools"
	"github.com/searchktools/webpp/core/transport"
)

// Default ports used when the target has none
const (
	DefaultPort       = 80
	DefaultSecurePort = 443
)

// Response is a response read by the client
type Response struct {
	Version    string
	StatusCode int
	// Status is the code and reason phrase, e.g. "200 OK".
	Status  string
	Header  http.Header
	Content *http.Content
}

// Options configures a Client
type Options struct {
	// Timeout bounds connect, write and read of a whole request. Zero
	// disables it.
	Timeout time.Duration
	// Proxy is the proxy host:port. Empty means no proxy.
	Proxy string
	// TLS enables TLS to the target. ServerName defaults to the host.
	TLS *tls.Config
	// MaxHeaderBytes bounds a response head.
	MaxHeaderBytes int
	// MaxBodyBytes rejects larger response bodies. Zero means unlimited.
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

// Client talks to one host. Requests are serialised over a single
// connection that is kept open while the server allows it.
type Client struct {
	host string
	port int
	opts Options
	log  logrus.FieldLogger

	plain  *transport.Plain
	secure *transport.Secure

	mu sync.Mutex
	t  transport.Transport
}

// New creates a client for hostPort. Without a port the default port of
// the scheme is used.
func New(hostPort string, opts Options) (*Client, error) {
	host, port, err := splitHostPort(hostPort, opts.TLS != nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		host:  host,
		port:  port,
		opts:  opts,
		log:   opts.Logger,
		plain: &transport.Plain{MaxHeaderBytes: opts.MaxHeaderBytes},
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	c.log = c.log.WithField("target", c.Addr())
	if opts.TLS != nil {
		c.secure = &transport.Secure{Config: opts.TLS, MaxHeaderBytes: opts.MaxHeaderBytes}
	}
	return c, nil
}

func splitHostPort(hostPort string, secure bool) (string, int, error) {
	port := DefaultPort
	if secure {
		port = DefaultSecurePort
	}
	host, p, err := net.SplitHostPort(hostPort)
	if err != nil {
		// no port
		return hostPort, port, nil
	}
	if port, err = strconv.Atoi(p); err != nil || port <= 0 || port > 65535 {
		return "", 0, errs.Errorf(errs.Parse, "client target", "invalid port in %q", hostPort)
	}
	return host, port, nil
}

// Addr returns the target host:port
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Connected reports whether a connection is open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t != nil
}

// Connect opens the connection unless one is open already
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.connectTimeout(ctx)
	return err
}

// Close closes the connection. The next request reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidate()
}

func (c *Client) invalidate() error {
	if c.t == nil {
		return nil
	}
	err := c.t.Close()
	c.t = nil
	return err
}

// connectTimeout connects within the total timeout. A dial that runs out
// of time is reported as a timeout.
func (c *Client) connectTimeout(ctx context.Context) (transport.Transport, error) {
	if c.opts.Timeout <= 0 {
		return c.connect(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	t, err := c.connect(dctx)
	if err != nil && ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return nil, errs.E(errs.Timeout, "connect "+c.Addr(), err)
	}
	return t, err
}

// connect must be called with mu held
func (c *Client) connect(ctx context.Context) (transport.Transport, error) {
	if c.t != nil {
		return c.t, nil
	}

	var (
		t   transport.Transport
		err error
	)
	switch {
	case c.opts.Proxy == "":
		t, err = c.dialDirect(ctx)
	case c.secure != nil:
		t, err = c.dialTunnel(ctx)
	default:
		t, err = c.plain.Dial(ctx, c.opts.Proxy)
	}
	if err != nil {
		return nil, err
	}

	if err := t.Handshake(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	c.log.WithField("proxy", c.opts.Proxy).Debug("Connected")
	c.t = t
	return t, nil
}

func (c *Client) dialDirect(ctx context.Context) (transport.Transport, error) {
	if c.secure != nil {
		return c.secure.Dial(ctx, c.Addr())
	}
	return c.plain.Dial(ctx, c.Addr())
}

// dialTunnel opens a CONNECT tunnel through the proxy and starts TLS in it
func (c *Client) dialTunnel(ctx context.Context) (transport.Transport, error) {
	t, err := c.plain.Dial(ctx, c.opts.Proxy)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = t.Shutdown() })
	defer stop()

	addr := c.Addr()
	req := "CONNECT " + addr + " HTTP/1.1\r\nHost: " + addr + "\r\n\r\n"
	if _, err := io.WriteString(t, req); err != nil {
		_ = t.Close()
		return nil, errs.E(errs.Transport, "proxy connect", err)
	}
	head, err := http.ReadResponseHead(t)
	if err != nil {
		_ = t.Close()
		return nil, transport.Classify("proxy connect", err, nil)
	}
	if head.StatusCode != 200 {
		_ = t.Close()
		return nil, errs.Errorf(errs.Transport, "proxy connect", "proxy refused tunnel: %s", head.Status)
	}

	tt, err := c.secure.Upgrade(t, addr)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return tt, nil
}

// Request sends a request with an in-memory body and reads the response
func (c *Client) Request(ctx context.Context, method, path string, body []byte, header *http.Header) (*Response, error) {
	return c.do(ctx, method, path, header, func(w io.Writer, head []byte) error {
		if len(body) > 0 {
			head = appendContentLength(head, int64(len(body)))
		}
		head = append(head, "\r\n"...)
		if _, err := w.Write(head); err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		_, err := w.Write(body)
		return err
	})
}

// RequestStream sends a request whose body is read from body. With a
// "Transfer-Encoding: chunked" header the body is streamed chunk by
// chunk; otherwise it is read completely and sent with the head in one
// write.
func (c *Client) RequestStream(ctx context.Context, method, path string, body io.Reader, header *http.Header) (*Response, error) {
	chunked := header != nil && header.ContainsToken("Transfer-Encoding", "chunked")
	return c.do(ctx, method, path, header, func(w io.Writer, head []byte) error {
		if chunked {
			if _, err := w.Write(append(head, "\r\n"...)); err != nil {
				return err
			}
			cw := http.NewChunkedWriter(w)
			if _, err := io.Copy(cw, body); err != nil {
				return err
			}
			return cw.Close()
		}

		buf := pools.AcquireBuffer(4096)
		defer pools.ReleaseBuffer(buf)
		content, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		out := append((*buf)[:0], head...)
		if len(content) > 0 {
			out = appendContentLength(out, int64(len(content)))
		}
		out = append(out, "\r\n"...)
		out = append(out, content...)
		*buf = out
		_, err = w.Write(out)
		return err
	})
}

func appendContentLength(b []byte, n int64) []byte {
	b = append(b, "Content-Length: "...)
	b = strconv.AppendInt(b, n, 10)
	return append(b, "\r\n"...)
}

// do runs one exchange. writeBody receives the request head without the
// terminating blank line.
func (c *Client) do(ctx context.Context, method, path string, header *http.Header, writeBody func(w io.Writer, head []byte) error) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	t, err := c.connectTimeout(ctx)
	if remaining := c.opts.Timeout - time.Since(start); err == nil && c.opts.Timeout > 0 && remaining <= 0 {
		err = errs.Errorf(errs.Timeout, method+" "+path, "no time left after connect")
	} else if err == nil {
		g := transport.Arm(t, remaining)
		stop := context.AfterFunc(ctx, func() { _ = t.Shutdown() })
		var res *Response
		res, err = c.exchange(t, method, path, header, writeBody)
		stop()
		g.Cancel()
		if err == nil {
			return res, nil
		}
		err = transport.Classify(method+" "+path, err, g)
	}
	_ = c.invalidate()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errs.E(errs.KindOf(err), method+" "+path, ctxErr)
	}
	return nil, err
}

func (c *Client) exchange(t transport.Transport, method, path string, header *http.Header, writeBody func(w io.Writer, head []byte) error) (*Response, error) {
	buf := pools.AcquireBuffer(512)
	head := c.appendHead((*buf)[:0], method, path, header)
	err := writeBody(t, head)
	*buf = head
	pools.ReleaseBuffer(buf)
	if err != nil {
		return nil, errs.E(errs.Transport, "write request", err)
	}

	rh, err := http.ReadResponseHead(t)
	if err != nil {
		return nil, err
	}
	res := &Response{
		Version:    rh.Version,
		StatusCode: rh.StatusCode,
		Status:     rh.Status,
		Header:     rh.Header,
	}

	closeAfter := http.ParseVersion(rh.Version) < 1.05 || rh.Header.ContainsToken("Connection", "close")
	body, untilClose, err := c.readBody(t, method, rh, closeAfter)
	if err != nil {
		return nil, err
	}
	res.Content = http.NewContent(body)

	if closeAfter || untilClose {
		_ = c.invalidate()
	}
	return res, nil
}

func (c *Client) readBody(t transport.Transport, method string, rh http.ResponseHead, closeAfter bool) ([]byte, bool, error) {
	if method == "HEAD" || rh.StatusCode < 200 || rh.StatusCode == 204 || rh.StatusCode == 304 {
		return nil, false, nil
	}
	kind, length, err := http.BodyFraming(&rh.Header)
	if err != nil {
		return nil, false, err
	}
	switch kind {
	case http.BodyFixed:
		if limit := c.opts.MaxBodyBytes; limit > 0 && length > limit {
			return nil, false, errs.Errorf(errs.Parse, "read response body", "Content-Length %d exceeds %d", length, limit)
		}
		body, err := http.ReadFixedBody(t, length)
		return body, false, err
	case http.BodyChunked:
		body, err := http.ReadChunkedBody(t, c.opts.MaxBodyBytes)
		return body, false, err
	}
	if !closeAfter || rh.Header.Has("Content-Length") {
		return nil, false, nil
	}

	// delimited by the server closing the connection
	body := append([]byte(nil), t.Next(t.Buffered())...)
	var r io.Reader = t.NetConn()
	if limit := c.opts.MaxBodyBytes; limit > 0 {
		r = io.LimitReader(r, limit-int64(len(body))+1)
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, true, err
	}
	body = append(body, rest...)
	if limit := c.opts.MaxBodyBytes; limit > 0 && int64(len(body)) > limit {
		return nil, true, errs.Errorf(errs.Parse, "read response body", "body exceeds %d bytes", limit)
	}
	return body, true, nil
}

func (c *Client) appendHead(b []byte, method, path string, header *http.Header) []byte {
	if path == "" {
		path = "/"
	}
	b = append(b, method...)
	b = append(b, ' ')
	if c.opts.Proxy != "" && c.secure == nil {
		b = append(b, "http://"...)
		b = append(b, c.Addr()...)
	}
	b = append(b, path...)
	b = append(b, " HTTP/1.1\r\n"...)

	if header == nil || !header.Has("Host") {
		b = append(b, "Host: "...)
		b = append(b, c.hostHeader()...)
		b = append(b, "\r\n"...)
	}
	if header != nil {
		b = header.AppendTo(b)
	}
	return b
}

func (c *Client) hostHeader() string {
	def := DefaultPort
	if c.secure != nil {
		def = DefaultSecurePort
	}
	if c.port == def {
		return c.host
	}
	return c.Addr()
}
