package transport

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/searchktools/webpp/core/errs"
)

// Shutdowner is what a Guard forces closed on expiry.
type Shutdowner interface {
	Shutdown() error
}

// Guard bounds one I/O phase. If it is not cancelled within its duration
// it shuts its target down, which makes the pending operation fail.
// A nil *Guard is a disabled guard.
type Guard struct {
	timer *time.Timer
	fired atomic.Bool
}

// Arm starts a guard on target. A non-positive d disables it.
func Arm(target Shutdowner, d time.Duration) *Guard {
	if d <= 0 || target == nil {
		return nil
	}
	g := &Guard{}
	g.timer = time.AfterFunc(d, func() {
		g.fired.Store(true)
		_ = target.Shutdown()
	})
	return g
}

// Cancel stops the guard. It is safe to call more than once and after
// the guard fired.
func (g *Guard) Cancel() {
	if g == nil {
		return
	}
	g.timer.Stop()
}

// Fired reports whether the guard expired.
func (g *Guard) Fired() bool {
	return g != nil && g.fired.Load()
}

// Classify turns an I/O error from a guarded phase into a classified
// error. Errors that are already classified keep their kind, unless the
// guard fired, in which case the failure is a timeout.
func Classify(op string, err error, g *Guard) error {
	if err == nil {
		return nil
	}
	if g.Fired() {
		return errs.E(errs.Timeout, op, err)
	}
	if errs.KindOf(err) != errs.Unknown {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errs.E(errs.Timeout, op, err)
	}
	return errs.E(errs.Transport, op, err)
}
