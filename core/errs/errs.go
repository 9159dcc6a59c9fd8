// Package errs classifies the failures of the HTTP engine.
//
// Every error that leaves a connection pipeline or a client request is an
// *Error carrying one of the Kind values below, so callers can decide what
// to do with it through Is without string matching.
package errs

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the class of a failure.
type Kind uint8

const (
	// Unknown is never produced by the engine itself.
	Unknown Kind = iota
	// Parse means malformed wire data: a bad start line, a header block
	// that never terminates, an invalid chunk size or Content-Length.
	Parse
	// Transport means the socket, TLS or resolver failed.
	Transport
	// Timeout means a guard expired and force-closed the transport.
	Timeout
	// Handler means a user handler panicked.
	Handler
	// RouteMiss means neither a pattern nor a default handler matched.
	RouteMiss
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse error"
	case Transport:
		return "transport error"
	case Timeout:
		return "timeout"
	case Handler:
		return "handler error"
	case RouteMiss:
		return "route miss"
	default:
		return "unknown error"
	}
}

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. A nil err yields nil, except for RouteMiss
// which carries no cause.
func E(kind Kind, op string, err error) error {
	if err == nil && kind != RouteMiss {
		return nil
	}
	if err != nil {
		err = errors.WithStack(err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
