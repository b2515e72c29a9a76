// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/momentics/tsrelay/api"
)

type registration struct {
	interest api.Interest
	tag      uint32
}

// Poller is a fake api.Poller deriving readiness from the fakes of its
// Network. Wait never sleeps; events come out in descriptor order.
type Poller struct {
	mu         sync.Mutex
	net        *Network
	regs       map[uintptr]registration
	injected   []api.Event
	waitErr    error
	waits      int
	removed    []uintptr
	closeCount int
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates a poller bound to net.
func NewPoller(net *Network) *Poller {
	return &Poller{net: net, regs: make(map[uintptr]registration)}
}

// Add implements api.Poller.
func (p *Poller) Add(fd uintptr, interest api.Interest, tag uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[fd]; ok {
		return api.ErrInvalidArgument
	}
	p.regs[fd] = registration{interest: interest, tag: tag}
	return nil
}

// Modify implements api.Poller.
func (p *Poller) Modify(fd uintptr, interest api.Interest, tag uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotFound
	}
	p.regs[fd] = registration{interest: interest, tag: tag}
	return nil
}

// Remove implements api.Poller.
func (p *Poller) Remove(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, fd)
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotFound
	}
	delete(p.regs, fd)
	return nil
}

// Wait implements api.Poller. Injected events are delivered first.
func (p *Poller) Wait(_ time.Duration, events []api.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	if p.waitErr != nil {
		err := p.waitErr
		p.waitErr = nil
		return 0, err
	}
	n := copy(events, p.injected)
	p.injected = p.injected[n:]

	fds := make([]uintptr, 0, len(p.regs))
	for fd := range p.regs {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })

	for _, fd := range fds {
		if n == len(events) {
			break
		}
		obj, ok := p.net.lookup(fd)
		if !ok {
			continue
		}
		r := obj.readiness()
		if r.closed {
			continue
		}
		reg := p.regs[fd]
		ev := api.Event{
			FD:         fd,
			Tag:        reg.tag,
			Readable:   r.readable && reg.interest&api.Readable != 0,
			Writable:   r.writable && reg.interest&api.Writable != 0,
			Failed:     r.failed,
			PeerClosed: r.peerClosed && reg.interest&api.HangUp != 0,
		}
		if ev.Readable || ev.Writable || ev.Failed || ev.PeerClosed {
			events[n] = ev
			n++
		}
	}
	return n, nil
}

// Close implements api.Poller.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return nil
}

// Inject queues a raw event for the next Wait, bypassing readiness.
func (p *Poller) Inject(ev api.Event) {
	p.mu.Lock()
	p.injected = append(p.injected, ev)
	p.mu.Unlock()
}

// FailNextWait makes the next Wait return err.
func (p *Poller) FailNextWait(err error) {
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
}

// Registered reports whether fd is registered and with which interest.
func (p *Poller) Registered(fd uintptr) (api.Interest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.regs[fd]
	return r.interest, ok
}

// Len returns the number of registered descriptors.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

// Waits returns how many times Wait was called.
func (p *Poller) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// CloseCount returns how many times Close was called.
func (p *Poller) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}
