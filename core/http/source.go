package http

import (
	"bytes"
	"errors"
	"io"
)

// Source is a buffered byte stream with delimiter and exact-count reads.
// Bytes already read from the underlying stream but not yet consumed stay
// buffered; Next consumes them.
type Source interface {
	// ReadUntil fills the buffer until it holds delim and returns the
	// number of buffered bytes up to and including delim. The buffer may
	// hold more bytes than that.
	ReadUntil(delim string) (int, error)
	// ReadExactly reads exactly n more bytes from the underlying stream
	// into the buffer.
	ReadExactly(n int) error
	// Buffered returns the number of unconsumed buffered bytes.
	Buffered() int
	// Next consumes up to n buffered bytes. The returned slice is only
	// valid until the next read.
	Next(n int) []byte
}

var (
	// ErrHeaderTooLarge is returned when a delimiter is not found within
	// the configured buffer limit.
	ErrHeaderTooLarge = errors.New("http: message head too large")
)

const minRead = 512

// BufSource implements Source over an io.Reader.
type BufSource struct {
	r          io.Reader
	buf        []byte
	start, end int
	max        int
	err        error
}

// NewBufSource returns a Source reading from r. buf is the initial
// storage and may be nil. max bounds how many bytes ReadUntil may buffer
// while looking for its delimiter; zero means unbounded.
func NewBufSource(r io.Reader, buf []byte, max int) *BufSource {
	return &BufSource{r: r, buf: buf[:cap(buf)], max: max}
}

// Reset points the source at a new reader and drops buffered bytes.
func (s *BufSource) Reset(r io.Reader) {
	s.r = r
	s.start, s.end = 0, 0
	s.err = nil
}

func (s *BufSource) Buffered() int { return s.end - s.start }

func (s *BufSource) Next(n int) []byte {
	if n > s.Buffered() {
		n = s.Buffered()
	}
	p := s.buf[s.start : s.start+n]
	s.start += n
	return p
}

func (s *BufSource) ReadUntil(delim string) (int, error) {
	scanned := 0
	for {
		if i := bytes.Index(s.buf[s.start+scanned:s.end], []byte(delim)); i >= 0 {
			return scanned + i + len(delim), nil
		}
		if n := s.Buffered() - len(delim) + 1; n > scanned {
			scanned = n
		}
		if s.max > 0 && s.Buffered() >= s.max {
			return 0, ErrHeaderTooLarge
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
}

func (s *BufSource) ReadExactly(n int) error {
	if n <= 0 {
		return nil
	}
	s.makeRoom(n)
	target := s.end + n
	for s.end < target {
		if s.err != nil {
			if s.err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return s.err
		}
		m, err := s.r.Read(s.buf[s.end:target])
		s.end += m
		if err != nil {
			s.err = err
		}
	}
	return nil
}

// fill reads at least one byte into the buffer.
func (s *BufSource) fill() error {
	s.makeRoom(minRead)
	for tries := 0; tries < 100; tries++ {
		if s.err != nil {
			return s.readErr()
		}
		n, err := s.r.Read(s.buf[s.end:])
		s.end += n
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return nil
		}
	}
	return io.ErrNoProgress
}

func (s *BufSource) readErr() error {
	err := s.err
	if err == io.EOF {
		// A stream closed in the middle of a message is always short.
		if s.Buffered() > 0 {
			return io.ErrUnexpectedEOF
		}
	}
	return err
}

// makeRoom guarantees n free bytes after end.
func (s *BufSource) makeRoom(n int) {
	if len(s.buf)-s.end >= n {
		return
	}
	if s.start > 0 {
		copy(s.buf, s.buf[s.start:s.end])
		s.end -= s.start
		s.start = 0
		if len(s.buf)-s.end >= n {
			return
		}
	}
	grown := make([]byte, max(2*len(s.buf), s.end+n, minRead))
	copy(grown, s.buf[:s.end])
	s.buf = grown
}
