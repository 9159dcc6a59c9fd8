package http

import (
	"bytes"
	"strconv"

	"github.com/searchktools/webpp/core/errs"
)

// RequestHead is a parsed request line plus header block.
type RequestHead struct {
	Method  string
	Path    string
	Version string
	Header  Header
}

// ResponseHead is a parsed status line plus header block.
type ResponseHead struct {
	Version    string
	StatusCode int
	// Status is the code and reason phrase, e.g. "200 OK".
	Status string
	Header Header
}

// ReadRequestHead reads and parses one request head from src.
func ReadRequestHead(src Source) (RequestHead, error) {
	n, err := src.ReadUntil("\r\n\r\n")
	if err != nil {
		return RequestHead{}, err
	}
	return ParseRequestHead(src.Next(n))
}

// ReadResponseHead reads and parses one response head from src.
func ReadResponseHead(src Source) (ResponseHead, error) {
	n, err := src.ReadUntil("\r\n\r\n")
	if err != nil {
		return ResponseHead{}, err
	}
	return ParseResponseHead(src.Next(n))
}

// ParseRequestHead parses "METHOD SP PATH SP HTTP/VERSION" followed by
// header lines.
func ParseRequestHead(head []byte) (RequestHead, error) {
	line, rest := cutLine(head)

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return RequestHead{}, errs.Errorf(errs.Parse, "request line", "missing method in %q", line)
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 < 0 {
		return RequestHead{}, errs.Errorf(errs.Parse, "request line", "missing protocol in %q", line)
	}
	sp2 += sp1 + 1

	proto := line[sp2+1:]
	if !bytes.HasPrefix(proto, []byte("HTTP/")) || len(proto) == len("HTTP/") {
		return RequestHead{}, errs.Errorf(errs.Parse, "request line", "invalid protocol %q", proto)
	}

	h := RequestHead{
		Method:  string(line[:sp1]),
		Path:    string(line[sp1+1 : sp2]),
		Version: string(proto[len("HTTP/"):]),
	}
	parseHeaders(&h.Header, rest)
	return h, nil
}

// ParseResponseHead parses "HTTP/VERSION SP CODE [SP REASON]" followed by
// header lines.
func ParseResponseHead(head []byte) (ResponseHead, error) {
	line, rest := cutLine(head)

	if !bytes.HasPrefix(line, []byte("HTTP/")) {
		return ResponseHead{}, errs.Errorf(errs.Parse, "status line", "invalid protocol in %q", line)
	}
	sp := bytes.IndexByte(line, ' ')
	if sp < 0 {
		return ResponseHead{}, errs.Errorf(errs.Parse, "status line", "missing status in %q", line)
	}

	h := ResponseHead{
		Version: string(line[len("HTTP/"):sp]),
		Status:  string(line[sp+1:]),
	}
	code, _, _ := bytes.Cut(line[sp+1:], []byte(" "))
	c, err := strconv.Atoi(string(code))
	if err != nil || len(code) != 3 {
		return ResponseHead{}, errs.Errorf(errs.Parse, "status line", "invalid status code %q", code)
	}
	h.StatusCode = c
	parseHeaders(&h.Header, rest)
	return h, nil
}

// parseHeaders reads "Name: value" lines until the first line without a
// colon, the blank line included. At most one space after the colon is
// dropped and lines with an empty value are ignored. A line starting with
// a space or tab continues the previous field.
func parseHeaders(h *Header, data []byte) {
	for len(data) > 0 {
		var line []byte
		line, data = cutLine(data)

		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if n := len(h.fields); n > 0 {
				cont := bytes.TrimLeft(line, " \t")
				if len(cont) > 0 {
					h.fields[n-1].value += " " + string(cont)
				}
				continue
			}
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return
		}
		value := line[colon+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		if len(value) > 0 {
			h.Add(string(line[:colon]), string(value))
		}
	}
}

// cutLine splits off the first line, dropping "\n" and a trailing "\r".
func cutLine(data []byte) (line, rest []byte) {
	line, rest, _ = bytes.Cut(data, []byte("\n"))
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, rest
}

// ParseVersion returns the numeric value of an HTTP version such as "1.1".
// It returns 0 for anything unparseable.
func ParseVersion(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
