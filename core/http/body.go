package http

import (
	"math"
	"strconv"
	"strings"

	"github.com/searchktools/webpp/core/errs"
)

// BodyKind says how a message body is delimited.
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyFixed
	BodyChunked
	// BodyUntilClose is only valid for responses.
	BodyUntilClose
)

// BodyFraming inspects h and returns how the body that follows is
// delimited and, for BodyFixed, its length. Chunked transfer coding wins
// over Content-Length.
func BodyFraming(h *Header) (BodyKind, int64, error) {
	if h.ContainsToken("Transfer-Encoding", "chunked") {
		return BodyChunked, 0, nil
	}
	v, ok := h.Lookup("Content-Length")
	if !ok {
		return BodyNone, 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return BodyNone, 0, errs.Errorf(errs.Parse, "content length", "invalid Content-Length %q", v)
	}
	if n == 0 {
		return BodyNone, 0, nil
	}
	return BodyFixed, n, nil
}

// readStep caps how far ahead of the arriving data the buffer grows, so
// a declared length only costs memory once its bytes are received.
const readStep = 64 << 10

// ReadFixedBody reads a body of exactly length bytes. Bytes that are
// already buffered count towards length; only the missing remainder is
// requested from the underlying stream.
func ReadFixedBody(src Source, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	if length > math.MaxInt {
		return nil, errs.Errorf(errs.Parse, "content length", "Content-Length %d is too large", length)
	}
	if err := fillTo(src, length); err != nil {
		return nil, err
	}
	return append([]byte(nil), src.Next(int(length))...), nil
}

// fillTo reads until src buffers at least n bytes, at most readStep at a
// time.
func fillTo(src Source, n int64) error {
	for {
		missing := n - int64(src.Buffered())
		if missing <= 0 {
			return nil
		}
		if err := src.ReadExactly(int(min(missing, readStep))); err != nil {
			return err
		}
	}
}
