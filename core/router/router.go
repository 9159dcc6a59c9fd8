// Package router dispatches request paths to handlers through ordered
// regular expressions.
package router

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	// ErrSealed is returned when routes are added after Compile.
	ErrSealed = errors.New("router: routes are compiled and can no longer change")
)

// Router is an ordered route table. Routes of one method are tried in
// registration order and every pattern must match the whole path. When no
// pattern matches, the method's default handler is used.
//
// Routes are registered before Compile and read-only afterwards; lookups
// are safe from many goroutines once compiled.
type Router[H any] struct {
	mu       sync.Mutex
	methods  []string
	routes   map[string][]*route[H]
	defaults map[string]H

	once     sync.Once
	sealed   bool
	compiled error
}

type route[H any] struct {
	pattern string
	handler H

	re *regexp.Regexp
	// literal is set when the pattern has no metacharacters; such routes
	// compare strings instead of running the regex.
	literal   string
	isLiteral bool
}

// New creates an empty router
func New[H any]() *Router[H] {
	return &Router[H]{
		routes:   make(map[string][]*route[H]),
		defaults: make(map[string]H),
	}
}

// Register adds a pattern route for method.
func (r *Router[H]) Register(method, pattern string, h H) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, ok := r.routes[method]; !ok {
		r.methods = append(r.methods, method)
	}
	r.routes[method] = append(r.routes[method], &route[H]{pattern: pattern, handler: h})
	return nil
}

// RegisterDefault sets the handler used for method when no pattern
// matches. A later call replaces an earlier one.
func (r *Router[H]) RegisterDefault(method string, h H) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.defaults[method] = h
	return nil
}

// Compile compiles every pattern and seals the table. Only the first call
// does work; every call returns its result.
func (r *Router[H]) Compile() error {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sealed = true
		for _, method := range r.methods {
			for _, rt := range r.routes[method] {
				if err := rt.compile(); err != nil {
					r.compiled = fmt.Errorf("router: %s %q: %w", method, rt.pattern, err)
					return
				}
			}
		}
	})
	return r.compiled
}

func (rt *route[H]) compile() error {
	re, err := regexp.Compile(`^(?:` + rt.pattern + `)$`)
	if err != nil {
		return err
	}
	rt.re = re
	lit := strings.TrimSuffix(strings.TrimPrefix(rt.pattern, "^"), "$")
	if regexp.QuoteMeta(lit) == lit {
		rt.literal, rt.isLiteral = lit, true
	}
	return nil
}

// Dispatch finds the handler for method and path. captures holds the
// whole match followed by the capture groups, and is nil when the default
// handler was chosen. ok is false when nothing handles the request.
// Dispatch must only be called after a successful Compile.
func (r *Router[H]) Dispatch(method, path string) (h H, captures []string, ok bool) {
	for _, rt := range r.routes[method] {
		if rt.isLiteral {
			if path == rt.literal {
				return rt.handler, []string{path}, true
			}
			continue
		}
		if m := rt.re.FindStringSubmatch(path); m != nil {
			return rt.handler, m, true
		}
	}
	if h, ok := r.defaults[method]; ok {
		return h, nil, true
	}
	return h, nil, false
}

// Methods returns the methods with at least one pattern route, in the
// order they were first registered.
func (r *Router[H]) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.methods...)
}

// Len returns the number of pattern routes.
func (r *Router[H]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rs := range r.routes {
		n += len(rs)
	}
	return n
}
