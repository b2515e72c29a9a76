// File: relay/hub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event loop: wait for readiness, dispatch each event, sweep client queues.

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/tsrelay/api"
)

// ErrPollerFailed is returned by Run when the readiness wait keeps failing.
var ErrPollerFailed = errors.New("readiness wait keeps failing")

// Metric keys published through MetricsSink.
const (
	MetricClientsActive   = "clients.active"
	MetricClientsAdmitted = "clients.admitted"
	MetricClientsRefused  = "clients.refused"
	MetricClientsEvicted  = "clients.evicted"
	MetricSourceBytes     = "source.bytes"
	MetricPacketsIn       = "packets.in"
	MetricPacketsDropped  = "packets.dropped"
	MetricPacketsSent     = "packets.sent"
	MetricBytesSent       = "bytes.sent"
	MetricWaitErrors      = "poll.errors"
)

// Endpoints are the handles a Hub takes ownership of. SourceListener may be
// nil; it is only kept so shutdown can close it.
type Endpoints struct {
	SourceListener api.Listener
	Source         api.Conn
	ClientListener api.Listener
}

// Stats is a snapshot of the hub counters.
type Stats struct {
	ClientsActive   int
	ClientsAdmitted uint64
	ClientsRefused  uint64
	ClientsEvicted  uint64
	SourceBytes     uint64
	PacketsIn       uint64
	PacketsDropped  uint64
	PacketsSent     uint64
	BytesSent       uint64
	WaitErrors      uint64
}

// Hub is the single-threaded relay dispatcher. All methods must be called
// from the goroutine that runs it.
type Hub struct {
	cfg     Config
	poller  api.Poller
	ep      Endpoints
	reg     *Registry
	reasm   *Reassembler
	events  []api.Event
	log     *slog.Logger
	metrics MetricsSink
	sleep   func(time.Duration)

	stats        Stats
	waitFailures int
	lastPublish  time.Time
	closed       bool
	lost         error // set once the source is gone
}

// New builds a Hub and registers the source and client listener with
// poller. On error nothing is closed and the caller keeps the endpoints; on
// success the Hub owns them and releases them in Close.
func New(cfg Config, poller api.Poller, ep Endpoints, opts ...Option) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if poller == nil || ep.Source == nil || ep.ClientListener == nil {
		return nil, fmt.Errorf("hub endpoints: %w", api.ErrInvalidArgument)
	}
	h := &Hub{
		cfg:    cfg,
		poller: poller,
		ep:     ep,
		reg:    NewRegistry(cfg.MaxClients, cfg.QueueDepth),
		reasm:  NewReassembler(cfg.PacketSize, cfg.FragmentFactor),
		// every client plus the source and the client listener
		events: make([]api.Event, cfg.MaxClients+2),
		log:    slog.Default(),
		sleep:  time.Sleep,
	}
	for _, o := range opts {
		o(h)
	}

	if err := ep.Source.Configure(cfg.Conn); err != nil {
		h.log.Warn("source socket options not applied", "error", err)
	}
	if err := poller.Add(ep.Source.FD(), api.Readable|api.HangUp, 0); err != nil {
		return nil, fmt.Errorf("register source: %w", err)
	}
	if err := poller.Add(ep.ClientListener.FD(), api.Readable, 0); err != nil {
		_ = poller.Remove(ep.Source.FD())
		return nil, fmt.Errorf("register client listener: %w", err)
	}
	h.lastPublish = time.Now()
	return h, nil
}

// Run drives the loop until ctx is cancelled or the source is lost, then
// releases every handle exactly once. Cancellation returns nil; losing the
// source returns an error wrapping api.ErrSourceLost.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		if cerr := h.Close(); cerr != nil {
			h.log.Warn("shutdown finished with errors", "error", cerr)
		}
	}()
	h.log.Info("hub running",
		"clients_max", h.reg.Cap(),
		"queue_depth", h.cfg.QueueDepth,
		"packet_size", h.cfg.PacketSize)
	for {
		if ctx.Err() != nil {
			h.log.Info("shutdown requested")
			return nil
		}
		if err := h.Iterate(); err != nil {
			return err
		}
		if h.cfg.IdlePause > 0 {
			h.sleep(h.cfg.IdlePause)
		}
	}
}

// Iterate performs one wait, dispatch and send sweep. Losing the source
// does not cut the iteration short: the remaining events are dispatched and
// the sweep still runs, then the loss is returned.
func (h *Hub) Iterate() error {
	if h.closed {
		return api.ErrClosed
	}
	n, err := h.poller.Wait(h.cfg.PollTimeout, h.events)
	if err != nil {
		h.stats.WaitErrors++
		h.waitFailures++
		h.log.Warn("readiness wait failed", "error", err, "consecutive", h.waitFailures)
		if h.cfg.MaxWaitFailures > 0 && h.waitFailures >= h.cfg.MaxWaitFailures {
			return fmt.Errorf("%w: %w", ErrPollerFailed, err)
		}
		n = 0
	} else {
		h.waitFailures = 0
	}

	for i := 0; i < n; i++ {
		h.dispatch(h.events[i])
	}
	h.sweep()
	h.maybePublish(false)
	return h.lost
}

func (h *Hub) dispatch(ev api.Event) {
	switch ev.FD {
	case h.ep.ClientListener.FD():
		if ev.Readable || ev.Failed {
			h.acceptClient()
		}
	case h.ep.Source.FD():
		if h.lost == nil {
			h.lost = h.readSource(ev.Failed)
		}
	default:
		c, err := h.reg.Lookup(ev.FD)
		if err != nil || c.Tag != ev.Tag {
			return // already evicted, or the descriptor now belongs to someone else
		}
		// A client that only shut down its sending side can still receive.
		if ev.Failed {
			h.dropClient(c, "peer closed", nil)
		}
	}
}

func (h *Hub) acceptClient() {
	conn, err := h.ep.ClientListener.Accept()
	if err != nil {
		if !api.IsTransient(err) {
			h.log.Warn("client accept failed", "error", err)
		}
		return
	}
	c, err := h.reg.Admit(conn)
	if err != nil {
		h.stats.ClientsRefused++
		h.log.Warn("client refused", "remote", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}
	if err := conn.Configure(h.cfg.Conn); err != nil {
		h.log.Warn("client socket options not applied", "slot", c.Slot, "error", err)
	}
	if err := h.poller.Add(conn.FD(), api.Writable|api.HangUp|api.EdgeTriggered, c.Tag); err != nil {
		h.log.Warn("client registration failed", "slot", c.Slot, "error", err)
		_, _ = h.reg.Evict(c.Slot)
		h.stats.ClientsRefused++
		return
	}
	h.stats.ClientsAdmitted++
	h.log.Info("client connected",
		"slot", c.Slot,
		"session", c.Session,
		"remote", conn.RemoteAddr(),
		"clients", h.reg.Len())
}

// readSource drains a bounded number of reads from the source and
// broadcasts every complete packet.
func (h *Hub) readSource(failed bool) error {
	for i := 0; i < defaultSourceReadsPerEv; i++ {
		n, err := h.ep.Source.Recv(h.reasm.Free())
		if err != nil {
			if api.IsTransient(err) {
				if failed && i == 0 {
					return fmt.Errorf("%w: error condition on source", api.ErrSourceLost)
				}
				return nil
			}
			return fmt.Errorf("%w: %w", api.ErrSourceLost, err)
		}
		h.stats.SourceBytes += uint64(n)
		pkts, err := h.reasm.Commit(n)
		if err != nil {
			return fmt.Errorf("%w: %w", api.ErrSourceLost, err)
		}
		for _, pkt := range pkts {
			h.stats.PacketsIn++
			_, dropped := Broadcast(h.reg, pkt)
			h.stats.PacketsDropped += uint64(dropped)
		}
	}
	return nil
}

func (h *Hub) sweep() {
	h.reg.ForEachActive(h.drain)
}

// drain sends queued packets to c until its queue is empty, the transport
// would block, or the send fails.
func (h *Hub) drain(c *Client) {
	for {
		if len(c.inflight) == 0 {
			pkt, ok := c.Queue.Pop()
			if !ok {
				return
			}
			c.inflight = pkt
		}
		n, err := c.Conn.Send(c.inflight)
		if n > 0 {
			h.stats.BytesSent += uint64(n)
			c.inflight = c.inflight[n:]
			if len(c.inflight) == 0 {
				c.inflight = nil
				c.Sent++
				h.stats.PacketsSent++
			}
		}
		if err != nil {
			if !api.IsTransient(err) {
				h.dropClient(c, "send failed", err)
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

// dropClient unregisters c from the poller, then closes and reclaims it.
func (h *Hub) dropClient(c *Client, reason string, cause error) {
	fd := c.fd
	remote := c.Conn.RemoteAddr()
	pending := c.Pending()
	if err := h.poller.Remove(fd); err != nil {
		h.log.Debug("client unregister failed", "slot", c.Slot, "error", err)
	}
	evicted, err := h.reg.Evict(c.Slot)
	if !evicted {
		return
	}
	h.stats.ClientsEvicted++
	attrs := []any{
		"slot", c.Slot,
		"session", c.Session,
		"remote", remote,
		"reason", reason,
		"sent", c.Sent,
		"dropped", c.Dropped,
		"pending", pending,
		"clients", h.reg.Len(),
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	if err != nil {
		attrs = append(attrs, "close_error", err)
	}
	h.log.Info("client removed", attrs...)
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	s := h.stats
	s.ClientsActive = h.reg.Len()
	return s
}

// Registry exposes the client registry for inspection.
func (h *Hub) Registry() *Registry { return h.reg }

func (h *Hub) maybePublish(force bool) {
	if h.metrics == nil {
		return
	}
	now := time.Now()
	if !force && (h.cfg.StatsInterval == 0 || now.Sub(h.lastPublish) < h.cfg.StatsInterval) {
		return
	}
	h.lastPublish = now
	s := h.Stats()
	h.metrics.Set(MetricClientsActive, s.ClientsActive)
	h.metrics.Set(MetricClientsAdmitted, s.ClientsAdmitted)
	h.metrics.Set(MetricClientsRefused, s.ClientsRefused)
	h.metrics.Set(MetricClientsEvicted, s.ClientsEvicted)
	h.metrics.Set(MetricSourceBytes, s.SourceBytes)
	h.metrics.Set(MetricPacketsIn, s.PacketsIn)
	h.metrics.Set(MetricPacketsDropped, s.PacketsDropped)
	h.metrics.Set(MetricPacketsSent, s.PacketsSent)
	h.metrics.Set(MetricBytesSent, s.BytesSent)
	h.metrics.Set(MetricWaitErrors, s.WaitErrors)
}

// Close evicts every client and closes the source, both listeners and the
// poller. Only the first call does anything.
func (h *Hub) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	h.reg.ForEachActive(func(c *Client) {
		_ = h.poller.Remove(c.fd)
		if _, err := h.reg.Evict(c.Slot); err != nil {
			errs = append(errs, fmt.Errorf("close client %d: %w", c.Slot, err))
		}
	})
	_ = h.poller.Remove(h.ep.Source.FD())
	_ = h.poller.Remove(h.ep.ClientListener.FD())
	if err := h.ep.Source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if h.ep.SourceListener != nil {
		if err := h.ep.SourceListener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source listener: %w", err))
		}
	}
	if err := h.ep.ClientListener.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close client listener: %w", err))
	}
	if err := h.poller.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close poller: %w", err))
	}
	h.maybePublish(true)
	s := h.Stats()
	h.log.Info("hub terminated",
		"packets_in", s.PacketsIn,
		"packets_sent", s.PacketsSent,
		"packets_dropped", s.PacketsDropped,
		"clients_admitted", s.ClientsAdmitted,
		"clients_evicted", s.ClientsEvicted)
	return errors.Join(errs...)
}
