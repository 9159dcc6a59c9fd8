package core

import "errors"

// HTTP header constants
const (
	HeaderContentType      = "Content-Type"
	HeaderContentLength    = "Content-Length"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderHost             = "Host"
	HeaderConnection       = "Connection"
)

// Error definitions
var (
	ErrServerClosed  = errors.New("server closed")
	ErrNotListening  = errors.New("server is not listening")
	ErrAlreadyServed = errors.New("server already listening")
)
