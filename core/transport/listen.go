package transport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/searchktools/webpp/core/errs"
)

// Listen opens a TCP listener on addr. reuseAddr controls SO_REUSEADDR on
// the listening socket; an empty host listens on every interface.
func Listen(ctx context.Context, addr string, reuseAddr bool) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, rc syscall.RawConn) error {
			value := 0
			if reuseAddr {
				value = 1
			}
			var serr error
			if err := rc.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, value)
			}); err != nil {
				return err
			}
			return serr
		},
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.E(errs.Transport, "listen "+addr, err)
	}
	return ln, nil
}
