//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
//
// Stub transport for platforms without a raw-socket backend.

package transport

import (
	"fmt"

	"github.com/momentics/tsrelay/api"
)

// Listener is unavailable on this platform.
type Listener struct{}

// Conn is unavailable on this platform.
type Conn struct{}

func listen(int, int) (*Listener, error) {
	return nil, fmt.Errorf("transport: %w on this platform", api.ErrNotSupported)
}

func (*Listener) FD() uintptr { return 0 }
func (*Listener) Addr() string { return "" }
func (*Listener) Port() int { return 0 }
func (*Listener) Accept() (api.Conn, error) { return nil, api.ErrNotSupported }
func (*Listener) Close() error { return nil }
func (*Conn) FD() uintptr { return 0 }
func (*Conn) RemoteAddr() string { return "" }
func (*Conn) Recv([]byte) (int, error) { return 0, api.ErrNotSupported }
func (*Conn) Send([]byte) (int, error) { return 0, api.ErrNotSupported }
func (*Conn) Configure(api.ConnOptions) error { return api.ErrNotSupported }
func (*Conn) Close() error { return nil }
