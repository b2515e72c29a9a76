// File: relay/source.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/momentics/tsrelay/api"
)

// AwaitSource waits for the single producer to connect on ln. The wait is
// driven by poller readiness in steps of pollTimeout so cancelling ctx
// interrupts it. The listener is unregistered again before returning.
func AwaitSource(ctx context.Context, ln api.Listener, poller api.Poller, pollTimeout time.Duration) (api.Conn, error) {
	if err := poller.Add(ln.FD(), api.Readable, 0); err != nil {
		return nil, fmt.Errorf("register source listener: %w", err)
	}
	defer poller.Remove(ln.FD())

	events := make([]api.Event, 1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := poller.Wait(pollTimeout, events)
		if err != nil {
			return nil, fmt.Errorf("wait for source: %w", err)
		}
		if n == 0 {
			continue
		}
		conn, err := ln.Accept()
		if err == nil {
			return conn, nil
		}
		if !api.IsTransient(err) {
			return nil, fmt.Errorf("accept source: %w", err)
		}
	}
}
