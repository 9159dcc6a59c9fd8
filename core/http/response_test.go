package http

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/webpp/core/codec"
)

func TestResponseSend(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	require.NoError(t, res.Status(201).ContentType("text/plain").Send("created"))
	assert.Equal(t, "HTTP/1.1 201 Created\r\nContent-Type: text/plain\r\nContent-Length: 7\r\n\r\ncreated", wire.String())
	assert.True(t, res.Finished())

	select {
	case <-res.Done():
	default:
		t.Fatal("Done not closed after Finish")
	}
}

func TestResponseFinishOnce(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	require.NoError(t, res.Finish())
	assert.ErrorIs(t, res.Finish(), ErrFinished)
	_, err := res.WriteString("late")
	assert.ErrorIs(t, err, ErrFinished)
	assert.Equal(t, 1, strings.Count(wire.String(), "HTTP/1.1 200 OK"))
}

func TestResponseFlushStreamsChunks(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	_, _ = res.WriteString("part one,")
	require.NoError(t, res.Flush())
	_, _ = res.WriteString("part two")
	require.NoError(t, res.Finish())

	head, body, ok := strings.Cut(wire.String(), "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "Transfer-Encoding: chunked")
	assert.NotContains(t, head, "Content-Length")

	decoded, err := ReadChunkedBody(NewBufSource(strings.NewReader(body), nil, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, "part one,part two", string(decoded))
}

func TestResponseSendChunked(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	require.NoError(t, res.SendChunked(200, strings.NewReader("streamed body")))

	head, body, ok := strings.Cut(wire.String(), "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "Transfer-Encoding: chunked")
	assert.True(t, strings.HasSuffix(body, "0\r\n\r\n"))

	decoded, err := ReadChunkedBody(NewBufSource(strings.NewReader(body), nil, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, "streamed body", string(decoded))
}

func TestResponseFlushWithContentLength(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)
	res.SetHeader("Content-Length", "6")

	_, _ = res.WriteString("abc")
	require.NoError(t, res.Flush())
	_, _ = res.WriteString("def")
	require.NoError(t, res.Finish())

	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nabcdef", wire.String())
}

func TestResponseHeadRequestOmitsBody(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponseFor(&wire, &Request{Method: "HEAD"})

	require.NoError(t, res.String(200, "hello"))
	assert.True(t, strings.HasSuffix(wire.String(), "Content-Length: 5\r\n\r\n"))
}

func TestResponseNoContent(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	require.NoError(t, res.Status(204).Send("ignored"))
	assert.Equal(t, "HTTP/1.1 204 No Content\r\n\r\n", wire.String())
}

func TestResponseEncode(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)

	require.NoError(t, res.JSON(200, map[string]int{"n": 1}))
	assert.Contains(t, wire.String(), "Content-Type: application/json\r\n")
	assert.True(t, strings.HasSuffix(wire.String(), `{"n":1}`))

	wire.Reset()
	res = NewResponse(&wire)
	require.NoError(t, res.Encode(200, &codec.MsgPackCodec{}, map[string]int{"n": 1}))
	assert.Contains(t, wire.String(), "Content-Type: application/msgpack\r\n")
}

func TestResponseDetach(t *testing.T) {
	var wire bytes.Buffer
	res := NewResponse(&wire)
	res.Detach()
	assert.True(t, res.Detached())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = res.String(200, "later")
	}()
	<-res.Done()
	<-done
	assert.Contains(t, wire.String(), "later")
}

func TestRequestHelpers(t *testing.T) {
	head, err := ParseRequestHead([]byte("POST /match/7?name=x&y=2 HTTP/1.1\r\nContent-Type: application/json\r\n\r\n"))
	require.NoError(t, err)

	req := NewRequest(context.Background(), head, []byte(`{"id":3}`))
	req.PathMatch = []string{"/match/7", "7"}

	assert.Equal(t, "7", req.Param(1))
	assert.Equal(t, "", req.Param(5))
	assert.Equal(t, "x", req.Query("name"))
	assert.Equal(t, "/match/7", req.URLPath())
	assert.True(t, req.KeepAlive())
	assert.NotNil(t, req.Context())

	var v struct{ ID int }
	require.NoError(t, req.Decode(nil, &v))
	assert.Equal(t, 3, v.ID)
}

func TestRequestKeepAlive(t *testing.T) {
	tests := []struct {
		version, connection string
		want                bool
	}{
		{"1.1", "", true},
		{"1.1", "keep-alive", true},
		{"1.1", "Close", false},
		{"1.0", "", false},
		{"1.0", "keep-alive", false},
		{"2", "", true},
	}

	for _, tt := range tests {
		req := &Request{Version: tt.version}
		if tt.connection != "" {
			req.Header.Add("Connection", tt.connection)
		}
		if got := req.KeepAlive(); got != tt.want {
			t.Errorf("KeepAlive(%s, %q) = %v, want %v", tt.version, tt.connection, got, tt.want)
		}
	}
}
