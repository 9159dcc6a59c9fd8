package app

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/webpp/config"
	"github.com/searchktools/webpp/core/client"
	"github.com/searchktools/webpp/core/http"
)

func TestAppRun(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	logger, hook := test.NewNullLogger()

	a, err := New(cfg, logger)
	require.NoError(t, err)
	a.Engine().GET(`/ping`, func(res *http.Response, _ *http.Request) {
		_ = res.String(200, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Engine().Addr() != nil }, time.Second, time.Millisecond)

	c, err := client.New(a.Engine().Addr().String(), client.Options{Logger: logger})
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Content.String())
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	stats, ok := a.Monitor().Route("GET /ping")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Count)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var stopped bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Server stopped" {
			stopped = true
		}
	}
	assert.True(t, stopped)
}

func TestNewRejectsBadLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "loud"
	_, err := New(cfg, logrus.New())
	assert.Error(t, err)
}
