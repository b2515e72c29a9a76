//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/tsrelay/api"
	"golang.org/x/sys/unix"
)

// epollPoller is an epoll-based api.Poller. The registration tag travels in
// the epoll user-data slot next to the descriptor.
type epollPoller struct {
	epfd   int
	raw    []unix.EpollEvent
	closed bool
}

func newPoller(sizeHint int) (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	if sizeHint <= 0 {
		sizeHint = 128
	}
	return &epollPoller{
		epfd: epfd,
		raw:  make([]unix.EpollEvent, sizeHint),
	}, nil
}

func epollEvent(fd uintptr, interest api.Interest, tag uint32) *unix.EpollEvent {
	var mask uint32
	if interest&api.Readable != 0 {
		mask |= unix.EPOLLIN
	}
	if interest&api.Writable != 0 {
		mask |= unix.EPOLLOUT
	}
	if interest&api.HangUp != 0 {
		mask |= unix.EPOLLRDHUP
	}
	if interest&api.EdgeTriggered != 0 {
		mask |= unix.EPOLLET
	}
	return &unix.EpollEvent{
		Events: mask,
		Fd:     int32(fd),
		Pad:    int32(tag),
	}
}

// Add registers fd with epoll.
func (p *epollPoller) Add(fd uintptr, interest api.Interest, tag uint32) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), epollEvent(fd, interest, tag)); err != nil {
		return fmt.Errorf("epoll ctl add fd=%d: %w", fd, err)
	}
	return nil
}

// Modify replaces the interest set of fd.
func (p *epollPoller) Modify(fd uintptr, interest api.Interest, tag uint32) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), epollEvent(fd, interest, tag)); err != nil {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

// Remove unregisters fd. A descriptor that was never added, or already
// closed, yields an error the caller may ignore.
func (p *epollPoller) Remove(fd uintptr) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wait blocks up to timeout. timeout < 0 blocks indefinitely.
func (p *epollPoller) Wait(timeout time.Duration, events []api.Event) (int, error) {
	if p.closed {
		return 0, api.ErrClosed
	}
	if len(events) == 0 {
		return 0, api.ErrInvalidArgument
	}
	if len(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, p.raw[:len(events)], ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, same as a timeout
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := p.raw[i]
		events[i] = api.Event{
			FD:       uintptr(ev.Fd),
			Tag:      uint32(ev.Pad),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Failed:   ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,

			PeerClosed: ev.Events&unix.EPOLLRDHUP != 0,
		}
	}
	return n, nil
}

// Close releases the epoll instance.
func (p *epollPoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}
