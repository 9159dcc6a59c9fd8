/*
Package webpp is an embeddable HTTP/1.x engine for servers and clients over
plain TCP or TLS.

Every accepted connection is served by its own goroutine: the request head
is read under the request timeout, the body (Content-Length or chunked)
under the content timeout, the request is dispatched through a regex route
table and the response is written before the connection is reused or
closed. The client side sends requests over one kept-alive connection,
directly or through a proxy.

Quick Start

	package main

	import (
		"context"

		"github.com/searchktools/webpp/app"
		"github.com/searchktools/webpp/config"
		"github.com/searchktools/webpp/core/http"
	)

	func main() {
		cfg, err := config.Load()
		if err != nil {
			panic(err)
		}
		application, err := app.New(cfg, nil)
		if err != nil {
			panic(err)
		}

		engine := application.Engine()
		engine.GET(`/hello`, func(res *http.Response, req *http.Request) {
			_ = res.String(200, "Hello, World!")
		})
		engine.GET(`/users/([0-9]+)`, func(res *http.Response, req *http.Request) {
			_ = res.JSON(200, map[string]string{"id": req.Param(1)})
		})

		_ = application.Run(context.Background())
	}

Modules

  - app: application lifecycle and signal handling
  - config: server, client and logging settings from env and flags
  - core: Engine, connection pipeline, Hub of live connections
  - core/http: headers, message heads, bodies, Request and Response
  - core/transport: plain and TLS transports, timeout guards, listener
  - core/router: regex route table
  - core/client: request engine with proxy support
  - core/errs: error kinds
  - core/codec: JSON, MessagePack and Protobuf bodies
  - core/middleware: middleware pipeline
  - core/observability: per-route performance monitor
  - core/pools: byte and buffer pools
*/
package webpp
