// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent facade for the relay's socket layer.

package transport

import "github.com/momentics/tsrelay/api"

// Compile-time interface compliance.
var (
	_ api.Listener = (*Listener)(nil)
	_ api.Conn     = (*Conn)(nil)
)

// DefaultBacklog is the listen queue length used when the caller passes 0.
const DefaultBacklog = 512

// Listen opens a non-blocking TCP listener on every IPv4 interface at port.
// Port 0 selects an ephemeral port; Addr reports the bound address.
func Listen(port, backlog int) (*Listener, error) {
	if port < 0 || port > 65535 {
		return nil, api.ErrInvalidArgument
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return listen(port, backlog)
}
