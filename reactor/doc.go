// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness poller behind the relay's event
// loop. Linux uses epoll(7); other platforms report ErrNotSupported.
package reactor
