package core

import (
	"crypto/tls"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults
const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultContentTimeout = 300 * time.Second
	DefaultMaxBodyBytes   = 64 << 20
)

// Options configures an Engine. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// Address is the interface to listen on; empty means all of them.
	Address string
	Port    int
	// ReuseAddress sets SO_REUSEADDR on the listening socket.
	ReuseAddress bool

	// RequestTimeout bounds the TLS handshake and reading a request head.
	// It also bounds how long an idle keep-alive connection is kept.
	RequestTimeout time.Duration
	// ContentTimeout bounds reading a request body and every response
	// write. Zero disables it.
	ContentTimeout time.Duration

	MaxHeaderBytes int
	// MaxBodyBytes rejects larger request bodies. Zero means unlimited.
	MaxBodyBytes int64

	// NotFoundResponse answers unmatched requests with 404 instead of
	// closing the connection silently.
	NotFoundResponse bool

	// TLS switches the server to TLS transports.
	TLS *tls.Config
}

// DefaultOptions returns the defaults: every interface, port 80, address
// reuse on, 5s request and 300s content timeouts, 64 MiB bodies.
func DefaultOptions() Options {
	return Options{
		Port:           80,
		ReuseAddress:   true,
		RequestTimeout: DefaultRequestTimeout,
		ContentTimeout: DefaultContentTimeout,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Option customises an Engine
type Option func(*Engine)

// WithOptions replaces every setting at once
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// WithAddress sets the listening interface and port
func WithAddress(address string, port int) Option {
	return func(e *Engine) {
		e.opts.Address = address
		e.opts.Port = port
	}
}

// WithReuseAddress toggles SO_REUSEADDR
func WithReuseAddress(on bool) Option {
	return func(e *Engine) { e.opts.ReuseAddress = on }
}

// WithTimeouts sets the request and content timeouts
func WithTimeouts(request, content time.Duration) Option {
	return func(e *Engine) {
		e.opts.RequestTimeout = request
		e.opts.ContentTimeout = content
	}
}

// WithTLS serves TLS with cfg
func WithTLS(cfg *tls.Config) Option {
	return func(e *Engine) { e.opts.TLS = cfg }
}

// WithMaxBodyBytes limits request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(e *Engine) { e.opts.MaxBodyBytes = n }
}

// WithNotFoundResponse answers unmatched requests with 404
func WithNotFoundResponse(on bool) Option {
	return func(e *Engine) { e.opts.NotFoundResponse = on }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithExceptionHandler sets the callback receiving handler panics and
// malformed requests. It may be called from many goroutines at once.
func WithExceptionHandler(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}
