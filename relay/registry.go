// File: relay/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection registry: an arena of client slots with a free list of
// reclaimed indices and a reverse map from descriptor to slot.

package relay

import (
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/tsrelay/api"
	"github.com/momentics/tsrelay/pool"
)

// Client is one connected consumer. The registry owns Conn and Queue until
// the slot is evicted.
type Client struct {
	Slot     int
	Session  uuid.UUID
	Tag      uint32 // echoed by the poller, distinguishes reuses of one descriptor
	Conn     api.Conn
	Queue    *pool.RingBuffer[[]byte]
	Admitted time.Time
	Sent     uint64 // packets fully delivered
	Dropped  uint64 // packets lost to drop-oldest

	// inflight is the unsent remainder of a packet already taken off Queue.
	inflight []byte
	fd       uintptr
	active   bool
}

// Pending returns queued packets plus the partially sent one, if any.
func (c *Client) Pending() int {
	n := c.Queue.Len()
	if len(c.inflight) > 0 {
		n++
	}
	return n
}

// Registry tracks active clients. Slot indices stay stable for the
// lifetime of a connection; evicting never moves another client.
type Registry struct {
	slots   []*Client
	free    *queue.Queue // reclaimed slot indices
	byFD    map[uintptr]int
	max     int
	depth   int
	active  int
	nextTag uint32
}

// NewRegistry creates a registry for at most maxClients clients, each with
// a queue of queueDepth packets.
func NewRegistry(maxClients, queueDepth int) *Registry {
	return &Registry{
		slots: make([]*Client, 0, min(maxClients, 64)),
		free:  queue.New(),
		byFD:  make(map[uintptr]int),
		max:   maxClients,
		depth: queueDepth,
	}
}

// Admit assigns conn to a reclaimed or new slot with an empty queue. When
// every slot is taken it returns api.ErrCapacityExceeded and the caller
// keeps ownership of conn.
func (r *Registry) Admit(conn api.Conn) (*Client, error) {
	var c *Client
	switch {
	case r.free.Length() > 0:
		c = r.slots[r.free.Remove().(int)]
	case len(r.slots) < r.max:
		c = &Client{
			Slot:  len(r.slots),
			Queue: pool.NewRingBuffer[[]byte](r.depth),
		}
		r.slots = append(r.slots, c)
	default:
		return nil, api.ErrCapacityExceeded
	}

	r.nextTag++
	if r.nextTag == 0 {
		r.nextTag = 1
	}
	c.Session = uuid.New()
	c.Tag = r.nextTag
	c.Conn = conn
	c.fd = conn.FD()
	c.Admitted = time.Now()
	c.Sent, c.Dropped = 0, 0
	c.inflight = nil
	c.Queue.Reset()
	c.active = true

	r.byFD[c.fd] = c.Slot
	r.active++
	return c, nil
}

// Lookup maps a descriptor back to its live client.
func (r *Registry) Lookup(fd uintptr) (*Client, error) {
	slot, ok := r.byFD[fd]
	if !ok {
		return nil, api.ErrNotFound
	}
	return r.slots[slot], nil
}

// Get returns the client in slot, live or not.
func (r *Registry) Get(slot int) (*Client, bool) {
	if slot < 0 || slot >= len(r.slots) {
		return nil, false
	}
	return r.slots[slot], true
}

// Evict closes the client's connection and reclaims its slot. It reports
// whether anything was evicted: a second call for the same slot is a no-op
// and never closes the connection twice.
func (r *Registry) Evict(slot int) (bool, error) {
	c, ok := r.Get(slot)
	if !ok || !c.active {
		return false, nil
	}
	c.active = false
	if cur, ok := r.byFD[c.fd]; ok && cur == slot {
		delete(r.byFD, c.fd)
	}
	err := c.Conn.Close()
	c.Conn = nil
	c.inflight = nil
	c.Queue.Reset()
	r.free.Add(slot)
	r.active--
	return true, err
}

// ForEachActive calls fn for every live client. fn may evict the client it
// is given; evicted slots are skipped and none is visited twice.
func (r *Registry) ForEachActive(fn func(c *Client)) {
	for i := 0; i < len(r.slots); i++ {
		if c := r.slots[i]; c.active {
			fn(c)
		}
	}
}

// Len returns the number of live clients.
func (r *Registry) Len() int { return r.active }

// Cap returns the configured client ceiling.
func (r *Registry) Cap() int { return r.max }

// Full reports whether Admit would fail.
func (r *Registry) Full() bool { return r.active >= r.max }
