// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package relay implements the one-to-many live stream hub.
//
// A single source pushes a continuous stream of fixed-size packets. The Hub
// reassembles packets from arbitrary read boundaries, broadcasts every packet
// into the bounded outbound queue of each connected client and drains those
// queues with non-blocking sends. Everything runs on one goroutine: the only
// suspension point is the readiness wait, so no state here is locked.
//
// Slow clients lose their oldest queued packets rather than stalling the
// source. Clients that hang up or fail a send are evicted without affecting
// anyone else. Losing the source stops the hub.
package relay
