package http

import (
	"io"
	"iter"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header is a multimap of header fields. Names compare ASCII
// case-insensitively, duplicates are kept in insertion order and the
// original spelling of each name is preserved for output.
type Header struct {
	fields []field
}

type field struct {
	name  string
	value string
}

// Add appends a field. It never replaces an existing one.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, field{name: name, value: value})
}

// Set replaces every field named name with a single one.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.name, name) {
			kept = append(kept, f)
		}
	}
	clear(h.fields[len(kept):])
	h.fields = kept
}

// Get returns the first value of name, or "".
func (h *Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the first value of name and whether it exists.
func (h *Header) Lookup(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value, true
		}
	}
	return "", false
}

// Has reports whether a field named name exists.
func (h *Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Values returns every value of name in insertion order.
func (h *Header) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// ContainsValueFold reports whether any value of name equals expected,
// ignoring ASCII case.
func (h *Header) ContainsValueFold(name, expected string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) && strings.EqualFold(f.value, expected) {
			return true
		}
	}
	return false
}

// ContainsToken reports whether any value of name, read as a comma
// separated list, carries token. "Connection: keep-alive, close" contains
// the token "close".
func (h *Header) ContainsToken(name, token string) bool {
	return httpguts.HeaderValuesContainsToken(h.Values(name), token)
}

// Len returns the number of fields.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// All iterates every field in insertion order.
func (h *Header) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if h == nil {
			return
		}
		for _, f := range h.fields {
			if !yield(f.name, f.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (h *Header) Clone() Header {
	if h == nil {
		return Header{}
	}
	return Header{fields: append([]field(nil), h.fields...)}
}

// Reset drops every field and keeps the storage.
func (h *Header) Reset() {
	clear(h.fields)
	h.fields = h.fields[:0]
}

// AppendTo appends the wire form of the fields to b. Fields with invalid
// names are skipped and CR/LF inside values are replaced by spaces.
func (h *Header) AppendTo(b []byte) []byte {
	if h == nil {
		return b
	}
	for _, f := range h.fields {
		if !httpguts.ValidHeaderFieldName(f.name) {
			continue
		}
		b = append(b, f.name...)
		b = append(b, ": "...)
		b = appendSanitized(b, f.value)
		b = append(b, "\r\n"...)
	}
	return b
}

// WriteTo writes the wire form of the fields to w.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.AppendTo(nil))
	return int64(n), err
}

func appendSanitized(b []byte, v string) []byte {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\r' || c == '\n' {
			c = ' '
		}
		b = append(b, c)
	}
	return b
}
