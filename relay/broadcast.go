// File: relay/broadcast.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

// Broadcast enqueues pkt into the queue of every active client, whatever its
// fill level. It performs no I/O. pkt is shared, not copied, so it must not
// be modified afterwards. It returns the number of clients reached and the
// number of older packets evicted by drop-oldest.
func Broadcast(reg *Registry, pkt []byte) (reached, dropped int) {
	reg.ForEachActive(func(c *Client) {
		reached++
		if c.Queue.Push(pkt) {
			c.Dropped++
			dropped++
		}
	})
	return reached, dropped
}
