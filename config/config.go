// Package config holds the server, client and logging settings. Values
// start from defaults, are overridden by WEBPP_* environment variables and
// then by command line flags.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/searchktools/webpp/core"
	"github.com/searchktools/webpp/core/client"
)

// TLS verification modes of the client
const (
	VerifyPeer = "verify-peer"
	VerifyNone = "verify-none"
)

// Server configures the HTTP server
type Server struct {
	Address          string        `envconfig:"WEBPP_ADDRESS"`
	Port             int           `envconfig:"WEBPP_PORT"`
	ReuseAddress     bool          `envconfig:"WEBPP_REUSE_ADDRESS"`
	RequestTimeout   time.Duration `envconfig:"WEBPP_REQUEST_TIMEOUT"`
	ContentTimeout   time.Duration `envconfig:"WEBPP_CONTENT_TIMEOUT"`
	MaxHeaderBytes   int           `envconfig:"WEBPP_MAX_HEADER_BYTES"`
	MaxBodyBytes     int64         `envconfig:"WEBPP_MAX_BODY_BYTES"`
	NotFoundResponse bool          `envconfig:"WEBPP_NOT_FOUND_RESPONSE"`

	// CertFile and KeyFile switch the server to TLS.
	CertFile string `envconfig:"WEBPP_TLS_CERT"`
	KeyFile  string `envconfig:"WEBPP_TLS_KEY"`
	// CAFile makes the server require client certificates signed by it.
	CAFile string `envconfig:"WEBPP_TLS_CA"`
}

// Client configures the HTTP client
type Client struct {
	Target               string        `envconfig:"WEBPP_CLIENT_TARGET"`
	Secure               bool          `envconfig:"WEBPP_CLIENT_TLS"`
	Proxy                string        `envconfig:"WEBPP_CLIENT_PROXY"`
	ProxyFromEnvironment bool          `envconfig:"WEBPP_CLIENT_PROXY_FROM_ENV"`
	Timeout              time.Duration `envconfig:"WEBPP_CLIENT_TIMEOUT"`
	Verify               string        `envconfig:"WEBPP_CLIENT_VERIFY"`
	CertFile             string        `envconfig:"WEBPP_CLIENT_CERT"`
	KeyFile              string        `envconfig:"WEBPP_CLIENT_KEY"`
	CAFile               string        `envconfig:"WEBPP_CLIENT_CA"`
}

// Logging configures the logrus logger
type Logging struct {
	Level  string `envconfig:"WEBPP_LOG_LEVEL"`
	Format string `envconfig:"WEBPP_LOG_FORMAT"`
}

// Config holds all application configuration.
type Config struct {
	Server  Server
	Client  Client
	Logging Logging
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Server: Server{
			Port:           8080,
			ReuseAddress:   true,
			RequestTimeout: core.DefaultRequestTimeout,
			ContentTimeout: core.DefaultContentTimeout,
			MaxBodyBytes:   core.DefaultMaxBodyBytes,
		},
		Client: Client{
			Target: "localhost:8080",
			Verify: VerifyPeer,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns the defaults overridden from the process environment
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom returns the defaults overridden by the variables lookup finds
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	for _, part := range []any{&cfg.Server, &cfg.Client, &cfg.Logging} {
		if err := envconfig.Process("", part, lookup); err != nil {
			return cfg, errors.Wrap(err, "read environment")
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no component can run with
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server port %d", c.Server.Port)
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return errors.New("server TLS needs both a certificate and a key")
	}
	if c.Client.Verify != VerifyPeer && c.Client.Verify != VerifyNone {
		return errors.Errorf("invalid TLS verify mode %q", c.Client.Verify)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}

// BindFlags registers the server flags on fs
func (s *Server) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "interface to listen on, empty for all")
	fs.IntVarP(&s.Port, "port", "p", s.Port, "port to listen on")
	fs.BoolVar(&s.ReuseAddress, "reuse-address", s.ReuseAddress, "set SO_REUSEADDR on the listener")
	fs.DurationVar(&s.RequestTimeout, "request-timeout", s.RequestTimeout, "limit for the handshake and request head, 0 to disable")
	fs.DurationVar(&s.ContentTimeout, "content-timeout", s.ContentTimeout, "limit for request bodies and response writes, 0 to disable")
	fs.IntVar(&s.MaxHeaderBytes, "max-header-bytes", s.MaxHeaderBytes, "largest accepted request head")
	fs.Int64Var(&s.MaxBodyBytes, "max-body-bytes", s.MaxBodyBytes, "largest accepted request body, 0 for no limit")
	fs.BoolVar(&s.NotFoundResponse, "not-found", s.NotFoundResponse, "answer unmatched requests with 404")
	fs.StringVar(&s.CertFile, "tls-cert", s.CertFile, "certificate file, enables TLS")
	fs.StringVar(&s.KeyFile, "tls-key", s.KeyFile, "private key file")
	fs.StringVar(&s.CAFile, "tls-ca", s.CAFile, "CA file for client certificates")
}

// BindFlags registers the client flags on fs
func (c *Client) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Target, "target", "t", c.Target, "server host:port")
	fs.BoolVar(&c.Secure, "tls", c.Secure, "connect with TLS")
	fs.StringVar(&c.Proxy, "proxy", c.Proxy, "proxy host:port")
	fs.BoolVar(&c.ProxyFromEnvironment, "proxy-from-env", c.ProxyFromEnvironment, "pick the proxy from HTTP_PROXY/HTTPS_PROXY/NO_PROXY")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "total request timeout, 0 to disable")
	fs.StringVar(&c.Verify, "verify", c.Verify, "TLS verification: verify-peer or verify-none")
	fs.StringVar(&c.CertFile, "cert", c.CertFile, "client certificate file")
	fs.StringVar(&c.KeyFile, "key", c.KeyFile, "client private key file")
	fs.StringVar(&c.CAFile, "ca", c.CAFile, "CA file to verify the server with")
}

// BindFlags registers the logging flags on fs
func (l *Logging) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&l.Level, "log-level", l.Level, "log level")
	fs.StringVar(&l.Format, "log-format", l.Format, "log format: text or json")
}

// EngineOptions converts the settings for core.NewEngine
func (s Server) EngineOptions() (core.Options, error) {
	tlsConfig, err := s.TLSConfig()
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Address:          s.Address,
		Port:             s.Port,
		ReuseAddress:     s.ReuseAddress,
		RequestTimeout:   s.RequestTimeout,
		ContentTimeout:   s.ContentTimeout,
		MaxHeaderBytes:   s.MaxHeaderBytes,
		MaxBodyBytes:     s.MaxBodyBytes,
		NotFoundResponse: s.NotFoundResponse,
		TLS:              tlsConfig,
	}, nil
}

// TLSConfig loads the server certificate, or returns nil without one
func (s Server) TLSConfig() (*tls.Config, error) {
	if s.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "load server certificate")
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if s.CAFile != "" {
		pool, err := loadCAs(s.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientOptions converts the settings for client.New
func (c Client) ClientOptions(log logrus.FieldLogger) (client.Options, error) {
	opts := client.Options{
		Timeout: c.Timeout,
		Proxy:   c.Proxy,
		Logger:  log,
	}
	if c.Proxy == "" && c.ProxyFromEnvironment {
		proxy, err := client.ProxyFromEnvironment(c.Target, c.Secure)
		if err != nil {
			return opts, errors.Wrap(err, "proxy from environment")
		}
		opts.Proxy = proxy
	}
	if c.Secure {
		cfg, err := c.TLSConfig()
		if err != nil {
			return opts, err
		}
		opts.TLS = cfg
	}
	return opts, nil
}

// TLSConfig builds the client TLS settings
func (c Client) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: c.Verify == VerifyNone, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client certificate")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CAFile != "" {
		pool, err := loadCAs(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func loadCAs(file string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "read CA file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificates in %s", file)
	}
	return pool, nil
}

// Apply sets level and formatter on log
func (l Logging) Apply(log *logrus.Logger) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	log.SetLevel(level)
	if l.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
