// Package reactor implements a single-threaded, epoll-backed event multiplexer: one goroutine
// registers file descriptors by interest mask, blocks on readiness, and dispatches callbacks
// synchronously, one at a time, to completion.
package reactor

import "time"

// Mask is a bitset of the readiness conditions a registration is interested in.
type Mask uint8

const (
	Read Mask = 1 << iota
	Write
)

// Callback is invoked when fd becomes ready for at least one condition in ready.
type Callback func(fd int, ready Mask)

// TimerHandle identifies a timer previously armed with AddTimeout, for later cancellation.
type TimerHandle uint64

// Reactor multiplexes readiness events across many file descriptors on a single goroutine.
// Implementations are not safe for concurrent use — every method other than Stop, including
// Run, must be called from the same goroutine. Stop may be called from any goroutine.
type Reactor interface {
	// Add registers fd for the given interest mask; cb fires on the reactor's own goroutine
	// whenever fd becomes ready. At most one registration exists per fd.
	Add(fd int, mask Mask, cb Callback) error
	// Modify replaces fd's interest mask.
	Modify(fd int, mask Mask) error
	// Remove unregisters fd. It is not an error to remove an fd that was already removed.
	Remove(fd int) error
	// Run blocks, dispatching ready callbacks and expired timers until Stop is called.
	Run() error
	// Stop causes a blocked Run to return nil once the current dispatch round completes.
	Stop()
	// AddTimeout arms a one-shot timer that invokes cb at or after deadline, on the reactor
	// goroutine, interleaved with readiness dispatch.
	AddTimeout(deadline time.Time, cb func()) TimerHandle
	// RemoveTimeout disarms a timer before it fires. Removing an already-fired or
	// already-removed handle is a no-op.
	RemoveTimeout(h TimerHandle)
	// Close releases the reactor's own resources (its epoll instance and wakeup pipe). Call
	// only after Run has returned.
	Close() error
}
