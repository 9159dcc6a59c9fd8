package http

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/webpp/core/errs"
)

func TestChunkedRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		body      []byte
		chunkSize int
	}{
		{"empty", nil, 4},
		{"single chunk", []byte("hello"), 16},
		{"many chunks", bytes.Repeat([]byte("0123456789"), 100), 7},
		{"exact multiple", []byte("abcdefgh"), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wire bytes.Buffer
			require.NoError(t, EncodeChunked(&wire, tt.body, tt.chunkSize))
			assert.True(t, strings.HasSuffix(wire.String(), "0\r\n\r\n"))

			src := NewBufSource(&wire, nil, 0)
			got, err := ReadChunkedBody(src, 0)
			require.NoError(t, err)
			assert.Equal(t, string(tt.body), string(got))
			assert.Zero(t, src.Buffered())
		})
	}
}

func TestReadChunkedBodyExtensionsAndTrailers(t *testing.T) {
	wire := "4;name=value\r\nWiki\r\n5\r\npedia\r\n0\r\nExpires: never\r\n\r\nNEXT"
	src := NewBufSource(strings.NewReader(wire), nil, 0)

	got, err := ReadChunkedBody(src, 0)
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia", string(got))

	n, err := src.ReadUntil("T")
	require.NoError(t, err)
	assert.Equal(t, "NEXT", string(src.Next(n)))
}

func TestReadChunkedBodyErrors(t *testing.T) {
	tests := []struct {
		name string
		wire string
		kind errs.Kind
	}{
		{"bad size", "zz\r\nabc\r\n0\r\n\r\n", errs.Parse},
		{"missing crlf", "3\r\nabcX\r\n0\r\n\r\n", errs.Parse},
		{"over limit", "10\r\n0123456789abcdef\r\n0\r\n\r\n", errs.Parse},
		{"signed size", "+5\r\nabcde\r\n0\r\n\r\n", errs.Parse},
		{"empty size", "\r\nabc\r\n0\r\n\r\n", errs.Parse},
		{"size past limit after a chunk", "1\r\na\r\n7fffffffffffffff\r\n", errs.Parse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadChunkedBody(NewBufSource(strings.NewReader(tt.wire), nil, 0), 8)
			assert.True(t, errs.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestReadChunkedBodyHugeSizes(t *testing.T) {
	tests := []struct {
		name  string
		wire  string
		limit int64
	}{
		{"max int64 unbounded", "7fffffffffffffff\r\n", 0},
		{"overflows int64", "ffffffffffffffff\r\n", 0},
		{"max int64 after a chunk", "1\r\na\r\n7fffffffffffffff\r\n", 0},
		{"max int64 after a chunk with limit", "1\r\na\r\n7fffffffffffffff\r\n", 1 << 20},
		{"near max after a chunk", "3\r\nabc\r\n7ffffffffffffffd\r\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = ReadChunkedBody(NewBufSource(strings.NewReader(tt.wire), nil, 0), tt.limit)
			})
			assert.True(t, errs.Is(err, errs.Parse), "got %v", err)
		})
	}
}

func TestReadChunkedBodyLargeDeclaredSizeIsReadIncrementally(t *testing.T) {
	// 1 GiB declared, three bytes sent
	src := NewBufSource(strings.NewReader("40000000\r\nabc"), nil, 0)
	_, err := ReadChunkedBody(src, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadChunkedBodyShortRead(t *testing.T) {
	_, err := ReadChunkedBody(NewBufSource(strings.NewReader("a\r\nabc"), nil, 0), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestChunkedWriterClose(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkedWriter(&buf)

	_, err := cw.Write([]byte("abc"))
	require.NoError(t, err)
	n, err := cw.Write(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, cw.Close())
	require.NoError(t, cw.Close())
	assert.Equal(t, "3\r\nabc\r\n0\r\n\r\n", buf.String())

	_, err = cw.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
