package http

import (
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/searchktools/webpp/core/codec"
	"github.com/searchktools/webpp/core/pools"
)

var (
	// ErrFinished is returned by writes to a response that was finished.
	ErrFinished = errors.New("http: response already finished")
)

// HandlerFunc serves one request. It fills res and either returns, after
// which the response is finished for it, or calls res.Detach and finishes
// the response later from another goroutine.
type HandlerFunc func(res *Response, req *Request)

// Response is an outgoing server response. Body bytes are buffered until
// Flush or Finish. A Response belongs to one goroutine at a time.
type Response struct {
	Header Header

	w      io.Writer
	status int
	buf    *[]byte
	noBody bool

	mu       sync.Mutex
	headSent bool
	chunked  bool
	detached bool
	finished bool
	err      error
	done     chan struct{}
}

// NewResponse returns a response that writes to w.
func NewResponse(w io.Writer) *Response {
	return &Response{
		w:      w,
		status: 200,
		buf:    pools.AcquireBuffer(0),
		done:   make(chan struct{}),
	}
}

// NewResponseFor returns a response answering req. Responses to HEAD
// requests keep their headers but never write a body.
func NewResponseFor(w io.Writer, req *Request) *Response {
	r := NewResponse(w)
	r.noBody = req != nil && req.Method == "HEAD"
	return r
}

// Status sets the status code. It has no effect once the head was flushed.
func (r *Response) Status(code int) *Response {
	r.status = code
	return r
}

// StatusCode returns the status code.
func (r *Response) StatusCode() int { return r.status }

// ContentType sets the Content-Type field.
func (r *Response) ContentType(t string) *Response {
	r.Header.Set("Content-Type", t)
	return r
}

// SetHeader replaces the field name.
func (r *Response) SetHeader(name, value string) *Response {
	r.Header.Set(name, value)
	return r
}

// Write appends p to the body buffer.
func (r *Response) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return 0, ErrFinished
	}
	*r.buf = append(*r.buf, p...)
	return len(p), nil
}

// WriteString appends s to the body buffer.
func (r *Response) WriteString(s string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return 0, ErrFinished
	}
	*r.buf = append(*r.buf, s...)
	return len(s), nil
}

// Buffered returns the number of body bytes not yet sent.
func (r *Response) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return 0
	}
	return len(*r.buf)
}

// Send appends body and finishes the response. Content-Length is derived
// from the complete body.
func (r *Response) Send(body string) error {
	if _, err := r.WriteString(body); err != nil {
		return err
	}
	return r.Finish()
}

// String sends a text/plain response.
func (r *Response) String(code int, s string) error {
	return r.Status(code).ContentType("text/plain; charset=utf-8").Send(s)
}

// Data sends data with the given content type.
func (r *Response) Data(code int, contentType string, data []byte) error {
	r.Status(code).ContentType(contentType)
	if _, err := r.Write(data); err != nil {
		return err
	}
	return r.Finish()
}

// SendChunked streams src to the peer with chunked transfer coding, one
// chunk per read, and finishes the response.
func (r *Response) SendChunked(code int, src io.Reader) error {
	r.Status(code)
	r.Header.Del("Content-Length")

	chunk := pools.GetBytes(16 << 10)
	defer pools.PutBytes(chunk)
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if _, werr := r.Write(chunk[:n]); werr != nil {
				return werr
			}
			if werr := r.Flush(); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = r.Finish()
			return err
		}
	}
	return r.Finish()
}

// Bytes sends an application/octet-stream response.
func (r *Response) Bytes(code int, data []byte) error {
	return r.Data(code, "application/octet-stream", data)
}

// Encode sends v encoded with c.
func (r *Response) Encode(code int, c codec.Codec, v any) error {
	data, err := c.Encode(v)
	if err != nil {
		return r.String(500, c.Name()+" encode error")
	}
	return r.Data(code, c.ContentType(), data)
}

// JSON sends v as application/json.
func (r *Response) JSON(code int, v any) error {
	return r.Encode(code, &codec.JSONCodec{}, v)
}

// Error sends a JSON error document.
func (r *Response) Error(code int, message string) error {
	return r.JSON(code, map[string]any{
		"code":    code,
		"message": message,
	})
}

// Detach takes the response out of the handler's lifetime. The server
// waits for Finish instead of finishing it when the handler returns.
func (r *Response) Detach() {
	r.mu.Lock()
	r.detached = true
	r.mu.Unlock()
}

// Detached reports whether Detach was called.
func (r *Response) Detached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// Finished reports whether Finish was called.
func (r *Response) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Done is closed once the response is finished.
func (r *Response) Done() <-chan struct{} { return r.done }

// Err returns the write error of the last Flush or Finish.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flush sends the head, if not sent yet, and the buffered body bytes.
// Without an explicit Content-Length the body continues with chunked
// transfer coding.
func (r *Response) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return ErrFinished
	}

	var out []byte
	if !r.headSent {
		r.chunked = !r.Header.Has("Content-Length") && bodyAllowed(r.status)
		out = r.appendHead(out, -1)
		r.headSent = true
	}
	out = r.appendBody(out)
	*r.buf = (*r.buf)[:0]

	if len(out) == 0 {
		return nil
	}
	_, err := r.w.Write(out)
	if err != nil {
		r.err = err
	}
	return err
}

// Finish sends whatever remains and ends the response. Only the first
// call has an effect; later calls return ErrFinished.
func (r *Response) Finish() error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return ErrFinished
	}
	r.finished = true

	scratch := pools.AcquireBuffer(len(*r.buf) + 256)
	out := (*scratch)[:0]
	if !r.headSent {
		out = r.appendHead(out, len(*r.buf))
		r.headSent = true
		if !r.noBody && bodyAllowed(r.status) {
			out = append(out, *r.buf...)
		}
	} else {
		out = r.appendBody(out)
		if r.chunked && !r.noBody {
			out = append(out, lastChunk...)
		}
	}

	var err error
	if len(out) > 0 {
		_, err = r.w.Write(out)
	}
	if err != nil {
		r.err = err
	} else {
		err = r.err
	}

	*scratch = out
	pools.ReleaseBuffer(scratch)
	pools.ReleaseBuffer(r.buf)
	r.buf = nil
	r.mu.Unlock()
	close(r.done)
	return err
}

// appendHead appends the status line and header block. length is the
// complete body length, or -1 while streaming.
func (r *Response) appendHead(b []byte, length int) []byte {
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.status), 10)
	b = append(b, ' ')
	b = append(b, StatusText(r.status)...)
	b = append(b, "\r\n"...)

	switch {
	case !bodyAllowed(r.status):
		r.Header.Del("Content-Length")
		r.Header.Del("Transfer-Encoding")
	case r.chunked:
		r.Header.Del("Content-Length")
		r.Header.Set("Transfer-Encoding", "chunked")
	case length >= 0:
		r.Header.Set("Content-Length", strconv.Itoa(length))
	}

	b = r.Header.AppendTo(b)
	return append(b, "\r\n"...)
}

// appendBody appends the buffered body in the framing chosen for the head.
func (r *Response) appendBody(b []byte) []byte {
	if r.noBody || !bodyAllowed(r.status) || len(*r.buf) == 0 {
		return b
	}
	if r.chunked {
		return AppendChunk(b, *r.buf)
	}
	return append(b, *r.buf...)
}
