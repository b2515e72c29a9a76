// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the non-blocking connection and listener contracts the relay is
// built on. Implementations wrap OS descriptors (internal/transport) or
// in-memory doubles (fake).

package api

import "time"

// Conn is a non-blocking, full-duplex stream connection.
type Conn interface {
	// FD returns the descriptor registered with the Poller.
	FD() uintptr

	// Recv reads into p. It returns ErrWouldBlock when no data is pending
	// and io.EOF when the peer closed the stream.
	Recv(p []byte) (n int, err error)

	// Send writes from p and may accept fewer bytes than len(p).
	// It returns ErrWouldBlock when the kernel buffer is full.
	Send(p []byte) (n int, err error)

	// Configure applies per-connection buffer and latency options.
	Configure(opts ConnOptions) error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// Close releases the descriptor. Calling it more than once is a no-op.
	Close() error
}

// Listener accepts Conns without blocking.
type Listener interface {
	FD() uintptr

	// Accept returns the next pending connection or ErrWouldBlock.
	Accept() (Conn, error)

	Addr() string
	Close() error
}

// ConnOptions carries per-connection socket tuning.
type ConnOptions struct {
	SendBuffer int           // SO_SNDBUF bytes, 0 keeps the default
	RecvBuffer int           // SO_RCVBUF bytes, 0 keeps the default
	Latency    time.Duration // delivery latency budget, 0 keeps the default
	NoDelay    bool
}
