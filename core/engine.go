package core

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/searchktools/webpp/core/http"
	"github.com/searchktools/webpp/core/middleware"
	"github.com/searchktools/webpp/core/router"
	"github.com/searchktools/webpp/core/transport"
)

// Engine is an HTTP/1.x server over plain TCP or TLS. Every accepted
// connection is served by its own goroutine, one request at a time.
type Engine struct {
	opts       Options
	capability transport.Capability
	router     *router.Router[http.HandlerFunc]
	pipeline   *middleware.Pipeline
	hub        *Hub
	log        logrus.FieldLogger
	onError    func(error)

	mu     sync.Mutex
	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewEngine creates a new engine instance
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		opts:     DefaultOptions(),
		router:   router.New[http.HandlerFunc](),
		pipeline: middleware.NewPipeline(),
		hub:      NewHub(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Options returns the effective configuration
func (e *Engine) Options() Options { return e.opts }

// Hub returns the registry of live connections
func (e *Engine) Hub() *Hub { return e.hub }

// Use adds middlewares wrapping every handler
func (e *Engine) Use(mw ...middleware.Middleware) {
	e.pipeline.Use(mw...)
}

// On registers h for requests of method whose whole path matches the
// regular expression pattern. Routes are tried in registration order.
func (e *Engine) On(method, pattern string, h http.HandlerFunc) error {
	return e.router.Register(method, pattern, h)
}

// OnDefault registers the handler used for method when no pattern matches
func (e *Engine) OnDefault(method string, h http.HandlerFunc) error {
	return e.router.RegisterDefault(method, h)
}

// handle registers a route and panics once routes are sealed
func (e *Engine) handle(method, pattern string, h http.HandlerFunc) {
	if err := e.On(method, pattern, h); err != nil {
		panic(err)
	}
}

// GET registers a GET route
func (e *Engine) GET(pattern string, h http.HandlerFunc) { e.handle("GET", pattern, h) }

// POST registers a POST route
func (e *Engine) POST(pattern string, h http.HandlerFunc) { e.handle("POST", pattern, h) }

// PUT registers a PUT route
func (e *Engine) PUT(pattern string, h http.HandlerFunc) { e.handle("PUT", pattern, h) }

// DELETE registers a DELETE route
func (e *Engine) DELETE(pattern string, h http.HandlerFunc) { e.handle("DELETE", pattern, h) }

// PATCH registers a PATCH route
func (e *Engine) PATCH(pattern string, h http.HandlerFunc) { e.handle("PATCH", pattern, h) }

// HEAD registers a HEAD route
func (e *Engine) HEAD(pattern string, h http.HandlerFunc) { e.handle("HEAD", pattern, h) }

// OPTIONS registers an OPTIONS route
func (e *Engine) OPTIONS(pattern string, h http.HandlerFunc) { e.handle("OPTIONS", pattern, h) }

// Listen compiles the routes and binds the listening socket
func (e *Engine) Listen() error {
	if err := e.router.Compile(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return ErrServerClosed
	}
	if e.ln != nil {
		return ErrAlreadyServed
	}

	addr := net.JoinHostPort(e.opts.Address, strconv.Itoa(e.opts.Port))
	ln, err := transport.Listen(e.ctx, addr, e.opts.ReuseAddress)
	if err != nil {
		return err
	}
	e.ln = ln

	if e.opts.TLS != nil {
		e.capability = &transport.Secure{Config: e.opts.TLS, MaxHeaderBytes: e.opts.MaxHeaderBytes}
	} else {
		e.capability = &transport.Plain{MaxHeaderBytes: e.opts.MaxHeaderBytes}
	}

	e.log.WithFields(logrus.Fields{
		"addr":   ln.Addr().String(),
		"tls":    e.opts.TLS != nil,
		"routes": e.router.Len(),
	}).Info("Server listening")
	return nil
}

// Addr returns the bound address, or nil before Listen
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Serve accepts connections until Stop. It returns nil after Stop.
func (e *Engine) Serve() error {
	e.mu.Lock()
	ln, capability := e.ln, e.capability
	e.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	var backoff time.Duration
	for {
		t, err := capability.Accept(ln)
		if err != nil {
			if e.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			e.log.WithError(err).WithField("retry", backoff).Warn("Accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		e.mu.Lock()
		if e.closed.Load() {
			e.mu.Unlock()
			_ = t.Close()
			return nil
		}
		e.wg.Add(1)
		e.mu.Unlock()

		c := newConnection(e, t)
		go func() {
			defer e.wg.Done()
			c.serve()
		}()
	}
}

// Start listens and serves; it blocks until Stop
func (e *Engine) Start() error {
	if err := e.Listen(); err != nil {
		return err
	}
	return e.Serve()
}

// Stop closes the listener, shuts every live connection down and waits
// for their goroutines to exit
func (e *Engine) Stop() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.cancel()

	e.mu.Lock()
	if e.ln != nil {
		_ = e.ln.Close()
	}
	e.mu.Unlock()

	n := e.hub.ShutdownAll()
	e.wg.Wait()
	e.log.WithField("connections", n).Info("Server stopped")
}

func (e *Engine) exception(err error) {
	if e.onError != nil {
		e.onError(err)
		return
	}
	e.log.WithError(err).Warn("Request failed")
}
