// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the readiness-multiplexing contract used by the relay's event loop.

package api

import "time"

// Interest selects the readiness conditions a registration reports.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
	HangUp
	// EdgeTriggered reports a condition once per transition instead of while it holds.
	EdgeTriggered
)

// Event is one readiness notification returned by Poller.Wait.
type Event struct {
	FD       uintptr // descriptor the event belongs to
	Tag      uint32  // value supplied at registration
	Readable bool
	Writable bool
	Failed   bool // error or full hang-up

	// PeerClosed reports that the peer shut down its sending side. The
	// connection may still accept writes.
	PeerClosed bool
}

// Poller multiplexes readiness over registered descriptors.
type Poller interface {
	// Add registers fd with the given interest. tag is echoed back in every
	// Event for fd so callers can detect descriptor reuse.
	Add(fd uintptr, interest Interest, tag uint32) error

	// Modify replaces the interest and tag of a registered fd.
	Modify(fd uintptr, interest Interest, tag uint32) error

	// Remove unregisters fd.
	Remove(fd uintptr) error

	// Wait blocks for at most timeout and fills events. A timeout is (0, nil).
	Wait(timeout time.Duration, events []Event) (int, error)

	Close() error
}
