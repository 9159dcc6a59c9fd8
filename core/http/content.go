package http

import (
	"bytes"
	"io"
)

// Content is a fully received message body. It is consumed through Read
// and can always be inspected whole with Bytes or String.
type Content struct {
	data []byte
	r    bytes.Reader
}

// NewContent wraps b. The caller must not modify b afterwards.
func NewContent(b []byte) *Content {
	c := &Content{data: b}
	c.r.Reset(b)
	return c
}

func (c *Content) Read(p []byte) (int, error) {
	if c == nil {
		return 0, io.EOF
	}
	return c.r.Read(p)
}

// Size returns the total body length.
func (c *Content) Size() int64 {
	if c == nil {
		return 0
	}
	return int64(len(c.data))
}

// Bytes returns the whole body regardless of how much was read.
func (c *Content) Bytes() []byte {
	if c == nil {
		return nil
	}
	return c.data
}

// String returns the whole body as a string.
func (c *Content) String() string {
	if c == nil {
		return ""
	}
	return string(c.data)
}
