//go:build linux
// +build linux

// File: internal/ipcreactor/epoll_linux.go
// Linux epoll implementation: EpollCreate1/EpollCtl/EpollWait via
// golang.org/x/sys/unix, with panic-recovering callback dispatch and a
// PollInterval bound so the loop also re-checks the outbound write queue
// on a schedule.
package ipcreactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

type epollReactor struct {
	epfd      int
	callbacks sync.Map // map[int]func(EventType)
}

// NewReactor constructs the Linux epoll-backed Reactor.
func NewReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("ipcreactor: epoll create: %w", err)
	}
	return &epollReactor{epfd: epfd}, nil
}

func (r *epollReactor) Register(fd int, cb func(EventType)) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("ipcreactor: epoll ctl add: %w", err)
	}
	r.callbacks.Store(fd, cb)
	return nil
}

func (r *epollReactor) Unregister(fd int) error {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.callbacks.Delete(fd)
	return nil
}

func (r *epollReactor) Run(stop <-chan struct{}, onTick func()) error {
	const maxEvents = 64
	var events [maxEvents]unix.EpollEvent
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epfd, events[:], int(PollInterval.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("ipcreactor: epoll wait: %w", err)
		}
		if onTick != nil {
			onTick()
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			val, ok := r.callbacks.Load(fd)
			if !ok {
				continue
			}
			cb := val.(func(EventType))
			et := EventType(0)
			if events[i].Events&unix.EPOLLIN != 0 {
				et |= EventRead
			}
			if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				et |= EventError
			}
			r.dispatch(cb, et)
		}
	}
}

func (r *epollReactor) dispatch(cb func(EventType), et EventType) {
	defer func() { _ = recover() }()
	cb(et)
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
