// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport contracts.

package fake

import (
	"bytes"
	"io"
	"sync"

	"github.com/momentics/tsrelay/api"
)

// Network allocates descriptor numbers and links fakes to a Poller.
type Network struct {
	mu     sync.Mutex
	nextFD uintptr
	objs   map[uintptr]pollable
}

// pollable is implemented by every fake the Poller can report on.
type pollable interface {
	readiness() readiness
}

type readiness struct {
	readable, writable, failed, peerClosed, closed bool
}

// NewNetwork creates an empty fake network. Descriptors start at 100.
func NewNetwork() *Network {
	return &Network{nextFD: 100, objs: make(map[uintptr]pollable)}
}

func (n *Network) allocFD() uintptr {
	n.mu.Lock()
	defer n.mu.Unlock()
	fd := n.nextFD
	n.nextFD++
	return fd
}

func (n *Network) bind(fd uintptr, p pollable) {
	n.mu.Lock()
	n.objs[fd] = p
	n.mu.Unlock()
}

func (n *Network) lookup(fd uintptr) (pollable, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.objs[fd]
	return p, ok
}

// NewConn creates a connection with a fresh descriptor.
func (n *Network) NewConn(remote string) *Conn {
	return n.NewConnFD(n.allocFD(), remote)
}

// NewConnFD creates a connection with an explicit descriptor, replacing any
// earlier fake bound to it. Used to simulate kernel descriptor reuse.
func (n *Network) NewConnFD(fd uintptr, remote string) *Conn {
	c := &Conn{fd: fd, remote: remote}
	n.bind(fd, c)
	return c
}

// NewListener creates a listener with a fresh descriptor.
func (n *Network) NewListener(addr string) *Listener {
	l := &Listener{fd: n.allocFD(), addr: addr, net: n}
	n.bind(l.fd, l)
	return l
}

// Conn is a fake api.Conn. Inbound data is queued with Feed; outbound data
// is captured and returned by Sent.
type Conn struct {
	mu         sync.Mutex
	fd         uintptr
	remote     string
	inbound    [][]byte
	eof        bool
	recvErr    error
	sendErr    error
	blocked    bool
	sendLimit  int
	hangup     bool
	halfClosed bool
	sent       bytes.Buffer
	sendCalls  int
	opts       api.ConnOptions
	configured bool
	closeCount int
}

var _ api.Conn = (*Conn)(nil)

// FD implements api.Conn.
func (c *Conn) FD() uintptr { return c.fd }

// RemoteAddr implements api.Conn.
func (c *Conn) RemoteAddr() string { return c.remote }

// Recv implements api.Conn. Each queued chunk is delivered in order, split
// across calls when p is shorter than the chunk.
func (c *Conn) Recv(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCount > 0 {
		return 0, api.ErrClosed
	}
	if len(c.inbound) > 0 {
		n := copy(p, c.inbound[0])
		if n == len(c.inbound[0]) {
			c.inbound = c.inbound[1:]
		} else {
			c.inbound[0] = c.inbound[0][n:]
		}
		return n, nil
	}
	if c.recvErr != nil {
		return 0, c.recvErr
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, api.ErrWouldBlock
}

// Send implements api.Conn.
func (c *Conn) Send(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	if c.closeCount > 0 {
		return 0, api.ErrClosed
	}
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	if c.blocked {
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if c.sendLimit > 0 && n > c.sendLimit {
		n = c.sendLimit
	}
	c.sent.Write(p[:n])
	return n, nil
}

// Configure implements api.Conn.
func (c *Conn) Configure(opts api.ConnOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCount > 0 {
		return api.ErrClosed
	}
	c.opts = opts
	c.configured = true
	return nil
}

// Close implements api.Conn and counts every call so tests can detect
// double closes.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	return nil
}

func (c *Conn) readiness() readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readiness{
		readable:   len(c.inbound) > 0 || c.eof || c.recvErr != nil,
		writable:   !c.blocked,
		failed:     c.hangup,
		peerClosed: c.halfClosed || c.eof,
		closed:     c.closeCount > 0,
	}
}

// Feed queues inbound bytes for Recv.
func (c *Conn) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, append([]byte(nil), p...))
}

// CloseRemote simulates an orderly peer close: Recv returns io.EOF once
// queued data is drained.
func (c *Conn) CloseRemote() {
	c.mu.Lock()
	c.eof = true
	c.mu.Unlock()
}

// HangUp makes the Poller report an error/hang-up condition.
func (c *Conn) HangUp() {
	c.mu.Lock()
	c.hangup = true
	c.mu.Unlock()
}

// HalfClose simulates a peer that shut down its sending side but still
// reads: the Poller reports PeerClosed while sends keep succeeding.
func (c *Conn) HalfClose() {
	c.mu.Lock()
	c.halfClosed = true
	c.mu.Unlock()
}

// SetRecvError makes Recv fail with err once queued data is drained.
func (c *Conn) SetRecvError(err error) {
	c.mu.Lock()
	c.recvErr = err
	c.mu.Unlock()
}

// SetSendError makes every Send fail with err.
func (c *Conn) SetSendError(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// SetBlocked makes Send report api.ErrWouldBlock while b is true.
func (c *Conn) SetBlocked(b bool) {
	c.mu.Lock()
	c.blocked = b
	c.mu.Unlock()
}

// SetSendLimit caps the bytes accepted per Send call; 0 removes the cap.
func (c *Conn) SetSendLimit(n int) {
	c.mu.Lock()
	c.sendLimit = n
	c.mu.Unlock()
}

// Sent returns a copy of everything accepted by Send.
func (c *Conn) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sent.Bytes()...)
}

// SendCalls returns how many times Send was invoked.
func (c *Conn) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

// Options returns the last options passed to Configure.
func (c *Conn) Options() (api.ConnOptions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts, c.configured
}

// CloseCount returns how many times Close was called.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// Listener is a fake api.Listener fed by Dial.
type Listener struct {
	mu         sync.Mutex
	fd         uintptr
	addr       string
	net        *Network
	pending    []*Conn
	acceptErr  error
	closeCount int
}

var _ api.Listener = (*Listener)(nil)

// FD implements api.Listener.
func (l *Listener) FD() uintptr { return l.fd }

// Addr implements api.Listener.
func (l *Listener) Addr() string { return l.addr }

// Accept implements api.Listener.
func (l *Listener) Accept() (api.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeCount > 0 {
		return nil, api.ErrClosed
	}
	if l.acceptErr != nil {
		return nil, l.acceptErr
	}
	if len(l.pending) == 0 {
		return nil, api.ErrWouldBlock
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

// Close implements api.Listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeCount++
	return nil
}

func (l *Listener) readiness() readiness {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readiness{
		readable: len(l.pending) > 0 || l.acceptErr != nil,
		closed:   l.closeCount > 0,
	}
}

// Dial queues a new server-side connection for Accept and returns it so the
// test can drive the peer side.
func (l *Listener) Dial(remote string) *Conn {
	return l.Enqueue(l.net.NewConn(remote))
}

// Enqueue queues an existing connection for Accept.
func (l *Listener) Enqueue(c *Conn) *Conn {
	l.mu.Lock()
	l.pending = append(l.pending, c)
	l.mu.Unlock()
	return c
}

// SetAcceptError makes Accept fail with err.
func (l *Listener) SetAcceptError(err error) {
	l.mu.Lock()
	l.acceptErr = err
	l.mu.Unlock()
}

// CloseCount returns how many times Close was called.
func (l *Listener) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCount
}
