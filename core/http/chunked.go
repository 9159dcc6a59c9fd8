package http

import (
	"bytes"
	"io"
	"math"
	"strconv"

	"github.com/searchktools/webpp/core/errs"
)

// ReadChunkedBody decodes a chunked body from src. limit bounds the
// decoded size; zero means unbounded. Chunk extensions and trailer fields
// are discarded.
func ReadChunkedBody(src Source, limit int64) ([]byte, error) {
	var body []byte
	for {
		n, err := src.ReadUntil("\r\n")
		if err != nil {
			return nil, err
		}
		line := bytes.TrimRight(src.Next(n), "\r\n")
		if i := bytes.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = bytes.TrimSpace(line)

		size, ok := parseChunkSize(line)
		if !ok {
			return nil, errs.Errorf(errs.Parse, "chunk size", "invalid chunk size %q", line)
		}
		if size == 0 {
			return body, skipTrailers(src)
		}
		if size > math.MaxInt-2-int64(len(body)) {
			return nil, errs.Errorf(errs.Parse, "chunk size", "chunk of %d bytes is too large", size)
		}
		if limit > 0 && size > limit-int64(len(body)) {
			return nil, errs.Errorf(errs.Parse, "chunk size", "body exceeds %d bytes", limit)
		}

		need := size + 2
		if err := fillTo(src, need); err != nil {
			return nil, err
		}
		chunk := src.Next(int(need))
		if chunk[size] != '\r' || chunk[size+1] != '\n' {
			return nil, errs.Errorf(errs.Parse, "chunk data", "missing CRLF after %d byte chunk", size)
		}
		body = append(body, chunk[:size]...)
	}
}

// parseChunkSize accepts bare hex digits; signs and empty sizes fail.
func parseChunkSize(line []byte) (int64, bool) {
	if len(line) == 0 {
		return 0, false
	}
	for _, c := range line {
		if !isHex(c) {
			return 0, false
		}
	}
	size, err := strconv.ParseInt(string(line), 16, 64)
	return size, err == nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func skipTrailers(src Source) error {
	for {
		n, err := src.ReadUntil("\r\n")
		if err != nil {
			return err
		}
		if n == 2 {
			src.Next(n)
			return nil
		}
		src.Next(n)
	}
}

// ChunkedWriter encodes everything written to it as chunks. Close writes
// the terminating zero-length chunk but does not close the underlying
// writer.
type ChunkedWriter struct {
	w      io.Writer
	buf    []byte
	closed bool
}

// NewChunkedWriter returns a writer producing chunked transfer coding on w.
func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (cw *ChunkedWriter) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	cw.buf = AppendChunk(cw.buf[:0], p)
	if _, err := cw.w.Write(cw.buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	_, err := io.WriteString(cw.w, lastChunk)
	return err
}

const lastChunk = "0\r\n\r\n"

// AppendChunk appends p as one chunk to b. An empty p appends nothing.
func AppendChunk(b, p []byte) []byte {
	if len(p) == 0 {
		return b
	}
	b = strconv.AppendInt(b, int64(len(p)), 16)
	b = append(b, "\r\n"...)
	b = append(b, p...)
	return append(b, "\r\n"...)
}

// EncodeChunked writes body to w as chunks of at most chunkSize bytes
// followed by the terminating chunk.
func EncodeChunked(w io.Writer, body []byte, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = len(body)
	}
	cw := NewChunkedWriter(w)
	for len(body) > 0 {
		n := min(chunkSize, len(body))
		if _, err := cw.Write(body[:n]); err != nil {
			return err
		}
		body = body[n:]
	}
	return cw.Close()
}
