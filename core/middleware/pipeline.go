package middleware

import (
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/searchktools/webpp/core/http"
	"github.com/searchktools/webpp/core/observability"
)

// Middleware wraps a handler. Not calling next stops the chain.
type Middleware func(next http.HandlerFunc) http.HandlerFunc

// Pipeline is an ordered middleware chain. The first middleware added is
// the outermost one.
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		middlewares: make([]Middleware, 0, 8),
	}
}

// Use appends middlewares to the pipeline
func (p *Pipeline) Use(mw ...Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, mw...)
	return p
}

// Len returns the number of middlewares
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// Then returns final wrapped by every middleware
func (p *Pipeline) Then(final http.HandlerFunc) http.HandlerFunc {
	h := final
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return h
}

// Execute runs the pipeline for one request
func (p *Pipeline) Execute(res *http.Response, req *http.Request, final http.HandlerFunc) {
	// Fast path: no middlewares
	if len(p.middlewares) == 0 {
		final(res, req)
		return
	}
	p.Then(final)(res, req)
}

// afterFinish runs fn once res is finished: right away for a finished
// response, when the handler returns for a regular one, or on Done for a
// detached one.
func afterFinish(res *http.Response, fn func()) {
	if res.Detached() && !res.Finished() {
		go func() {
			<-res.Done()
			fn()
		}()
		return
	}
	fn()
}

// Common middleware implementations

// Recovery turns a handler panic into a 500 response
func Recovery(log logrus.FieldLogger) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"method": req.Method,
						"path":   req.Path,
						"panic":  err,
					}).Error("Panic recovered\n" + string(debug.Stack()))
					if !res.Finished() {
						_ = res.Error(500, "Internal Server Error")
					}
				}
			}()
			next(res, req)
		}
	}
}

// Logger logs one line per request once the response is finished
func Logger(log logrus.FieldLogger) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			start := time.Now()
			next(res, req)
			afterFinish(res, func() {
				log.WithFields(logrus.Fields{
					"method":   req.Method,
					"path":     req.Path,
					"status":   res.StatusCode(),
					"remote":   req.RemoteAddr,
					"duration": time.Since(start),
				}).Info("request")
			})
		}
	}
}

// CORS adds permissive CORS headers and answers preflight requests
func CORS() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			res.SetHeader("Access-Control-Allow-Origin", "*")
			res.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			res.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if req.Method == "OPTIONS" {
				_ = res.Status(204).Finish()
				return
			}
			next(res, req)
		}
	}
}

// RateLimit rejects requests above requestsPerSecond with 429. burst is
// the number of requests allowed at once.
func RateLimit(requestsPerSecond float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			if !limiter.Allow() {
				_ = res.Error(429, "Too Many Requests")
				return
			}
			next(res, req)
		}
	}
}

// RequestID tags every response with X-Request-ID. An ID sent by the
// client is echoed back; otherwise a sequential one is assigned.
func RequestID() Middleware {
	var counter atomic.Uint64

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			id := req.Header.Get("X-Request-ID")
			if id == "" {
				id = strconv.FormatUint(counter.Add(1), 10)
			}
			res.SetHeader("X-Request-ID", id)
			next(res, req)
		}
	}
}

// Metrics records every request in pm, keyed by method and path without
// query string. Responses with a 5xx status count as errors.
func Metrics(pm *observability.PerformanceMonitor) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(res *http.Response, req *http.Request) {
			start := time.Now()
			next(res, req)
			afterFinish(res, func() {
				pm.RecordRequest(routeKey(req), time.Since(start), res.StatusCode() >= 500)
			})
		}
	}
}

func routeKey(req *http.Request) string {
	return req.Method + " " + req.URLPath()
}
