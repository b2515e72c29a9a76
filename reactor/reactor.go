// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral entry point for the readiness poller.

package reactor

import "github.com/momentics/tsrelay/api"

// NewPoller constructs the platform-specific api.Poller. sizeHint is the
// number of descriptors the caller expects to register; Wait callers should
// pass an events slice at least that large so a wait never truncates.
func NewPoller(sizeHint int) (api.Poller, error) {
	return newPoller(sizeHint)
}
