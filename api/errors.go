// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the relay, its transports and its pollers.

package api

import "errors"

// Common errors used across the relay.
var (
	// ErrWouldBlock marks the transient "try again later" outcome of a
	// non-blocking send, receive or accept. It is never a failure.
	ErrWouldBlock = errors.New("operation would block")

	// ErrCapacityExceeded is returned by the registry when every client slot is in use.
	ErrCapacityExceeded = errors.New("client capacity exceeded")

	// ErrNotFound is returned by lookups for handles that have no live entry.
	ErrNotFound = errors.New("resource not found")

	// ErrSourceLost reports that the single producer is gone and the hub must stop.
	ErrSourceLost = errors.New("source lost")

	// ErrReassemblyOverflow reports a producer whose reads never align to packet boundaries.
	ErrReassemblyOverflow = errors.New("reassembly buffer overflow")

	ErrClosed          = errors.New("handle is closed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
)

// IsTransient reports whether err only means the operation should be retried later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
