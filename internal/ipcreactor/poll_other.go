//go:build !linux
// +build !linux

// File: internal/ipcreactor/poll_other.go
// Non-Linux fallback: a plain ticker-driven poll with the same external
// contract as the epoll reactor.
package ipcreactor

import (
	"sync"
	"time"
)

type tickerReactor struct {
	mu        sync.Mutex
	callbacks map[int]func(EventType)
}

func NewReactor() (Reactor, error) {
	return &tickerReactor{callbacks: make(map[int]func(EventType))}, nil
}

func (r *tickerReactor) Register(fd int, cb func(EventType)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[fd] = cb
	return nil
}

func (r *tickerReactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, fd)
	return nil
}

// Run invokes every registered callback with EventRead on each tick; the
// caller (internal/ipcmux) does a non-blocking check and no-ops if nothing
// is actually available, so this over-invokes safely.
func (r *tickerReactor) Run(stop <-chan struct{}, onTick func()) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if onTick != nil {
				onTick()
			}
			r.mu.Lock()
			cbs := make([]func(EventType), 0, len(r.callbacks))
			for _, cb := range r.callbacks {
				cbs = append(cbs, cb)
			}
			r.mu.Unlock()
			for _, cb := range cbs {
				cb(EventRead)
			}
		}
	}
}

func (r *tickerReactor) Close() error { return nil }
