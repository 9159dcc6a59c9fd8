package main

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchktools/webpp/app"
	"github.com/searchktools/webpp/core"
	"github.com/searchktools/webpp/core/http"
)

type cmdServe struct {
	root *rootCommand
}

func getServeCmd(root *rootCommand) *cobra.Command {
	c := &cmdServe{root: root}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo server",
		Long: `Run the demo server until SIGINT or SIGTERM.

Routes:
  GET  /string            plain text
  GET  /json              JSON document
  GET  /info              request details
  GET  /match/<digits>    regex capture
  GET  /work              response finished by a background goroutine
  GET  /stats             connection and buffer statistics
  POST /echo              echoes the request body
  GET  anything else      default handler`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	root.cfg.Server.BindFlags(cmd.Flags())
	return cmd
}

func (c *cmdServe) run(cmd *cobra.Command, _ []string) error {
	a, err := app.New(c.root.cfg, c.root.logger)
	if err != nil {
		return err
	}
	demoRoutes(a.Engine())
	return a.Run(cmd.Context())
}

func demoRoutes(e *core.Engine) {
	e.GET(`/string`, func(res *http.Response, _ *http.Request) {
		_ = res.String(200, "Hello from webpp")
	})
	e.GET(`/json`, func(res *http.Response, _ *http.Request) {
		_ = res.JSON(200, map[string]any{
			"server":     "webpp",
			"goroutines": runtime.NumGoroutine(),
			"time":       time.Now().UTC(),
		})
	})
	e.GET(`/info`, func(res *http.Response, req *http.Request) {
		headers := map[string][]string{}
		for name, value := range req.Header.All() {
			headers[name] = append(headers[name], value)
		}
		_ = res.JSON(200, map[string]any{
			"remote":  req.RemoteAddr,
			"port":    req.RemotePort,
			"method":  req.Method,
			"path":    req.Path,
			"version": req.Version,
			"headers": headers,
		})
	})
	e.GET(`/match/([0-9]+)`, func(res *http.Response, req *http.Request) {
		_ = res.String(200, req.Param(1))
	})
	e.GET(`/work`, func(res *http.Response, _ *http.Request) {
		res.Detach()
		go func() {
			time.Sleep(time.Second)
			_ = res.String(200, "Work done")
		}()
	})
	e.GET(`/stats`, func(res *http.Response, _ *http.Request) {
		_ = res.Data(200, "application/json", []byte(e.StatsJSON()))
	})
	e.POST(`/echo`, func(res *http.Response, req *http.Request) {
		ct := req.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		_ = res.Data(200, ct, req.Content.Bytes())
	})
	_ = e.OnDefault("GET", func(res *http.Response, req *http.Request) {
		_ = res.String(200, "No route for "+req.URLPath())
	})
}
