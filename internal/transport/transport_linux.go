// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux transport: raw non-blocking sockets via golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/momentics/tsrelay/api"
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP listening socket.
type Listener struct {
	fd     int
	addr   string
	closed bool
}

// Conn is a non-blocking TCP stream socket.
type Conn struct {
	fd     int
	remote string
	closed bool
}

func listen(port, backlog int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen port %d: %w", port, err)
	}
	ln := &Listener{fd: fd}
	if sa, err := unix.Getsockname(fd); err == nil {
		ln.addr = sockaddrString(sa)
	}
	return ln, nil
}

// FD returns the listening descriptor.
func (l *Listener) FD() uintptr { return uintptr(l.fd) }

// Addr returns the bound address, e.g. "0.0.0.0:9000".
func (l *Listener) Addr() string { return l.addr }

// Port returns the bound port.
func (l *Listener) Port() int {
	_, port, err := net.SplitHostPort(l.addr)
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(port)
	return p
}

// Accept takes one pending connection. The returned Conn is non-blocking.
func (l *Listener) Accept() (api.Conn, error) {
	if l.closed {
		return nil, api.ErrClosed
	}
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if transient(err) || errors.Is(err, unix.ECONNABORTED) {
			return nil, api.ErrWouldBlock
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	return &Conn{fd: nfd, remote: sockaddrString(sa)}, nil
}

// Close closes the listening socket once.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.fd)
}

// FD returns the connection descriptor.
func (c *Conn) FD() uintptr { return uintptr(c.fd) }

// RemoteAddr returns the peer address captured at accept time.
func (c *Conn) RemoteAddr() string { return c.remote }

// Recv reads what is available without blocking.
func (c *Conn) Recv(p []byte) (int, error) {
	if c.closed {
		return 0, api.ErrClosed
	}
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if transient(err) {
			return 0, api.ErrWouldBlock
		}
		return 0, fmt.Errorf("recv fd=%d: %w", c.fd, err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Send writes as much of p as the kernel accepts. MSG_NOSIGNAL keeps a
// vanished peer from raising SIGPIPE.
func (c *Conn) Send(p []byte) (int, error) {
	if c.closed {
		return 0, api.ErrClosed
	}
	n, err := unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	if err != nil {
		if transient(err) {
			return 0, api.ErrWouldBlock
		}
		return 0, fmt.Errorf("send fd=%d: %w", c.fd, err)
	}
	return n, nil
}

// Configure applies buffer sizing, Nagle and the latency budget. TCP has no
// receiver playout delay, so Latency bounds how long written data may stay
// unacknowledged before the kernel drops the connection (TCP_USER_TIMEOUT).
func (c *Conn) Configure(opts api.ConnOptions) error {
	if c.closed {
		return api.ErrClosed
	}
	if opts.SendBuffer > 0 {
		if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); err != nil {
			return fmt.Errorf("set SO_SNDBUF: %w", err)
		}
	}
	if opts.RecvBuffer > 0 {
		if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer); err != nil {
			return fmt.Errorf("set SO_RCVBUF: %w", err)
		}
	}
	if opts.NoDelay {
		if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return fmt.Errorf("set TCP_NODELAY: %w", err)
		}
	}
	if ms := opts.Latency.Milliseconds(); ms > 0 {
		if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(ms)); err != nil {
			return fmt.Errorf("set TCP_USER_TIMEOUT: %w", err)
		}
	}
	return nil
}

// Close closes the socket once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

func transient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	default:
		return "unknown"
	}
}
