package http

import (
	"context"
	"net/url"
	"strings"

	"github.com/searchktools/webpp/core/codec"
)

// Request is an incoming server request.
type Request struct {
	Method string
	// Path is the request target as sent, query string included.
	Path string
	// Version is the protocol version without the "HTTP/" prefix.
	Version string
	Header  Header
	Content *Content

	// PathMatch holds the regex captures of the matched route. Index 0 is
	// the whole path. It is empty for requests served by a default handler.
	PathMatch []string

	RemoteAddr string
	RemotePort int

	ctx   context.Context
	query url.Values
}

// NewRequest builds a request from a parsed head and a body.
func NewRequest(ctx context.Context, head RequestHead, body []byte) *Request {
	return &Request{
		Method:  head.Method,
		Path:    head.Path,
		Version: head.Version,
		Header:  head.Header,
		Content: NewContent(body),
		ctx:     ctx,
	}
}

// Context returns the request context. It is cancelled when the server
// stops.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Param returns the i-th regex capture, or "".
func (r *Request) Param(i int) string {
	if i < 0 || i >= len(r.PathMatch) {
		return ""
	}
	return r.PathMatch[i]
}

// URLPath returns Path without the query string.
func (r *Request) URLPath() string {
	p, _, _ := strings.Cut(r.Path, "?")
	return p
}

// Query returns the first value of the query parameter key.
func (r *Request) Query(key string) string {
	if r.query == nil {
		_, raw, _ := strings.Cut(r.Path, "?")
		r.query, _ = url.ParseQuery(raw)
	}
	return r.query.Get(key)
}

// KeepAlive reports whether the connection may serve another request
// after this one: the version must be above 1.0 and no Connection field
// may carry "close".
func (r *Request) KeepAlive() bool {
	return ParseVersion(r.Version) > 1.05 && !r.Header.ContainsToken("Connection", "close")
}

// Decode decodes the body with c. A nil codec is chosen from Content-Type.
func (r *Request) Decode(c codec.Codec, v any) error {
	if c == nil {
		var err error
		if c, err = codec.ForContentType(r.Header.Get("Content-Type")); err != nil {
			return err
		}
	}
	return c.Decode(r.Content.Bytes(), v)
}

// Bind decodes a JSON body into v.
func (r *Request) Bind(v any) error {
	return r.Decode(&codec.JSONCodec{}, v)
}
