package core

import (
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/searchktools/webpp/core/errs"
	"github.com/searchktools/webpp/core/http"
	"github.com/searchktools/webpp/core/transport"
)

// State is the phase a connection is in
type State uint32

// Connection states
const (
	StateAccepting State = iota
	StateHandshaking
	StateReadingHeaders
	StateReadingBody
	StateDispatching
	StateWritingResponse
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateHandshaking:
		return "handshaking"
	case StateReadingHeaders:
		return "reading-headers"
	case StateReadingBody:
		return "reading-body"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing-response"
	default:
		return "closed"
	}
}

var connectionIDs atomic.Uint64

// Connection is one accepted transport and the requests served on it
type Connection struct {
	ID         uint64
	RemoteAddr string
	RemotePort int
	CreatedAt  time.Time

	engine *Engine
	t      transport.Transport
	log    logrus.FieldLogger
	state  atomic.Uint32
	served atomic.Uint64
}

func newConnection(e *Engine, t transport.Transport) *Connection {
	c := &Connection{
		ID:        connectionIDs.Add(1),
		CreatedAt: time.Now(),
		engine:    e,
		t:         t,
	}
	c.log = e.log.WithField("conn", c.ID)
	if host, port, err := t.RemoteEndpoint(); err == nil {
		c.RemoteAddr, c.RemotePort = host, port
		c.log = c.log.WithField("remote", net.JoinHostPort(host, strconv.Itoa(port)))
	}
	return c
}

// State returns the current phase
func (c *Connection) State() State { return State(c.state.Load()) }

// Served returns how many requests completed on the connection
func (c *Connection) Served() uint64 { return c.served.Load() }

// Shutdown force-closes the connection from any goroutine
func (c *Connection) Shutdown() error { return c.t.Shutdown() }

func (c *Connection) setState(s State) {
	c.state.Store(uint32(s))
}

func (c *Connection) serve() {
	c.engine.hub.Add(c)
	defer func() {
		c.setState(StateClosed)
		c.engine.hub.Remove(c)
		_ = c.t.Close()
		c.log.WithField("served", c.Served()).Debug("Connection closed")
	}()
	if c.engine.closed.Load() {
		return
	}

	if c.t.Secure() {
		c.setState(StateHandshaking)
		g := transport.Arm(c.t, c.engine.opts.RequestTimeout)
		err := c.t.Handshake(c.engine.ctx)
		g.Cancel()
		if err != nil {
			c.log.WithError(transport.Classify("tls handshake", err, g)).Debug("Handshake failed")
			return
		}
	}

	for c.serveOne() {
	}
}

// serveOne runs one request through the pipeline and reports whether the
// connection may be reused
func (c *Connection) serveOne() bool {
	e := c.engine

	c.setState(StateReadingHeaders)
	g := transport.Arm(c.t, e.opts.RequestTimeout)
	head, err := http.ReadRequestHead(c.t)
	g.Cancel()
	if err != nil {
		c.readFailed("read request head", err, g)
		return false
	}

	c.setState(StateReadingBody)
	body, err := c.readBody(&head)
	if err != nil {
		return false
	}

	req := http.NewRequest(e.ctx, head, body)

	c.setState(StateDispatching)
	if host, port, err := c.t.RemoteEndpoint(); err != nil {
		e.exception(err)
	} else {
		req.RemoteAddr, req.RemotePort = host, port
	}

	h, captures, ok := e.router.Dispatch(req.Method, req.Path)
	if !ok {
		if !e.opts.NotFoundResponse {
			c.log.WithFields(logrus.Fields{"method": req.Method, "path": req.Path}).
				Debug(errs.E(errs.RouteMiss, "dispatch", nil))
			return false
		}
		h = notFound
	}
	req.PathMatch = captures

	res := http.NewResponseFor(&guardedWriter{t: c.t, timeout: e.opts.ContentTimeout}, req)
	if !c.invoke(h, res, req) {
		return false
	}

	c.setState(StateWritingResponse)
	if !res.Detached() {
		_ = res.Finish()
	}
	select {
	case <-res.Done():
	case <-e.ctx.Done():
		return false
	}
	if err := res.Err(); err != nil {
		c.log.WithError(err).Debug("Write failed")
		return false
	}

	c.served.Add(1)
	return req.KeepAlive() && !res.Header.ContainsToken("Connection", "close")
}

func (c *Connection) readBody(head *http.RequestHead) ([]byte, error) {
	e := c.engine

	kind, length, err := http.BodyFraming(&head.Header)
	if err != nil {
		e.exception(err)
		return nil, err
	}
	if kind == http.BodyNone {
		return nil, nil
	}
	if limit := e.opts.MaxBodyBytes; limit > 0 && kind == http.BodyFixed && length > limit {
		err := errs.Errorf(errs.Parse, "read request body", "Content-Length %d exceeds %d", length, limit)
		e.exception(err)
		return nil, err
	}

	g := transport.Arm(c.t, e.opts.ContentTimeout)
	var body []byte
	if kind == http.BodyChunked {
		body, err = http.ReadChunkedBody(c.t, e.opts.MaxBodyBytes)
	} else {
		body, err = http.ReadFixedBody(c.t, length)
	}
	g.Cancel()
	if err != nil {
		c.readFailed("read request body", err, g)
		return nil, err
	}
	return body, nil
}

// readFailed logs a failed read. A peer closing between requests is the
// normal end of a keep-alive connection.
func (c *Connection) readFailed(op string, err error, g *transport.Guard) {
	err = transport.Classify(op, err, g)
	switch {
	case errs.Is(err, errs.Transport) && errors.Is(err, io.EOF):
		c.log.Debug("Peer closed connection")
	case errs.Is(err, errs.Parse):
		c.log.WithError(err).Debug("Malformed request")
	default:
		c.log.WithError(err).Debug("Read failed")
	}
}

// invoke runs the handler behind the middleware pipeline. A panic is
// reported as a handler error and ends the connection.
func (c *Connection) invoke(h http.HandlerFunc, res *http.Response, req *http.Request) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errs.Errorf(errs.Handler, "handler", "panic serving %s %s: %v", req.Method, req.Path, r)
			c.log.WithError(err).WithField("stack", string(debug.Stack())).Error("Handler panicked")
			c.engine.exception(err)
			ok = false
		}
	}()
	c.engine.pipeline.Execute(res, req, h)
	return true
}

func notFound(res *http.Response, _ *http.Request) {
	_ = res.String(404, "Not Found")
}

// guardedWriter bounds every response write with the content timeout
type guardedWriter struct {
	t       transport.Transport
	timeout time.Duration
}

func (w *guardedWriter) Write(p []byte) (int, error) {
	g := transport.Arm(w.t, w.timeout)
	n, err := w.t.Write(p)
	g.Cancel()
	return n, transport.Classify("write response", err, g)
}
