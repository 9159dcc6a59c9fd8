package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/webpp/core"
)

func startDemo(t *testing.T) string {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := core.NewEngine(core.WithAddress("127.0.0.1", 0), core.WithLogger(logger))
	demoRoutes(e)
	require.NoError(t, e.Listen())
	served := make(chan error, 1)
	go func() { served <- e.Serve() }()
	t.Cleanup(func() {
		e.Stop()
		<-served
	})
	return e.Addr().String()
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestGetCommand(t *testing.T) {
	addr := startDemo(t)

	assert.Equal(t, "42", run(t, "get", "/match/42", "--target", addr))
	assert.Equal(t, "No route for /nowhere", run(t, "get", "/nowhere", "-t", addr))

	out := run(t, "get", "/string", "-t", addr, "-i", "-H", "X-Test: 1")
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Length: 16\r\n")
	assert.Contains(t, out, "\r\n\r\nHello from webpp")
}

func TestPostCommand(t *testing.T) {
	addr := startDemo(t)

	out := run(t, "post", "/echo", "-t", addr, "-d", "payload", "-H", "Content-Type: text/plain")
	assert.Equal(t, "payload", out)
}

func TestRequestCommandRejectsBadHeader(t *testing.T) {
	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "-H", "no-colon"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
