package client

import (
	"net"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// ProxyFromEnvironment returns the proxy host:port the HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY variables select for target, or "" for a
// direct connection.
func ProxyFromEnvironment(target string, secure bool) (string, error) {
	return proxyFor(httpproxy.FromEnvironment(), target, secure)
}

func proxyFor(cfg *httpproxy.Config, target string, secure bool) (string, error) {
	u := &url.URL{Scheme: "http", Host: target}
	if secure {
		u.Scheme = "https"
	}
	p, err := cfg.ProxyFunc()(u)
	if err != nil || p == nil {
		return "", err
	}
	if p.Port() != "" {
		return p.Host, nil
	}
	port := "80"
	if p.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(p.Hostname(), port), nil
}
