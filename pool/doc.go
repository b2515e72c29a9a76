// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for the relay: the bounded drop-oldest ring used as each
// client's outbound queue, and the slab that carves immutable fixed-size
// packets out of larger allocations. Neither type locks; both are owned by
// the event-loop goroutine.
package pool
