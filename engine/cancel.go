// cancel.go - cooperative cancellation flag
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import "sync/atomic"

// CancelToken is the engine's one legitimate piece of global-shaped
// state, modeled as an explicit shared atomic passed into the engine at
// construction rather than a package-level singleton - so tests can run
// multiple independent engines concurrently without interference.
type CancelToken struct {
	flag atomic.Bool

	// Reason distinguishes SIGINT (130) from SIGTERM (143) from a
	// Quit prompt reply (also 130, per InterruptedByUser) for the
	// exit-code mapping in ExitCode.
	reason atomic.Int32
}

const (
	ReasonNone int32 = iota
	ReasonSigint
	ReasonSigterm
	ReasonQuit
	ReasonError
)

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the flag. Idempotent - only the first reason sticks.
func (c *CancelToken) Cancel(reason int32) {
	if c.flag.CompareAndSwap(false, true) {
		c.reason.Store(reason)
	}
}

// Cancelled reports whether cancellation has fired. Workers poll this
// at task boundaries and between write batches in long copy loops.
func (c *CancelToken) Cancelled() bool {
	return c.flag.Load()
}

func (c *CancelToken) Reason() int32 {
	return c.reason.Load()
}

// ExitCode maps the cancellation reason to the process exit code the
// spec requires: 130 for SIGINT (and for a Quit prompt reply, which is
// InterruptedByUser), 143 for SIGTERM, 1 when the run aborted itself
// because of a task error under fatal-on-first-error. An un-cancelled
// token (ReasonNone, the zero value) exits 0.
func (c *CancelToken) ExitCode() int {
	switch c.reason.Load() {
	case ReasonSigterm:
		return 143
	case ReasonSigint, ReasonQuit:
		return 130
	case ReasonError:
		return 1
	default:
		return 0
	}
}
