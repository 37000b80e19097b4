//go:build linux
// +build linux

// File: internal/ipcmux/pool_linux.go
// Multi-socket IPC pool: N independent Multiplexers, each owning its own
// browser child process, selected round-robin per Send call. Gated to
// Linux because its only reason to exist is amortizing epoll_wait across
// more browser instances on a box with spare cores; on other platforms
// NewAuto (pool_other.go) ignores Config.IPC.SocketPoolSize and a plain
// Multiplexer is used instead.
package ipcmux

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Pool round-robins Send calls across a fixed set of Multiplexers, each an
// independent browser process with its own pending table and reactor.
type Pool struct {
	members []*Multiplexer
	next    uint64
}

// NewPool constructs size independent Multiplexers from opts. size must be
// >= 1; size == 1 degenerates to a single-member pool, identical in
// behavior to using Multiplexer directly.
func NewPool(opts Options, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{members: make([]*Multiplexer, size)}
	for i := range p.members {
		p.members[i] = New(opts)
	}
	return p
}

// Start launches every member in sequence; if any fails the already-started
// members are stopped and the error is returned.
func (p *Pool) Start(ctx context.Context) error {
	for i, m := range p.members {
		if err := m.Start(ctx); err != nil {
			for j := 0; j < i; j++ {
				p.members[j].Stop()
			}
			return fmt.Errorf("ipcmux: pool member %d: %w", i, err)
		}
	}
	return nil
}

// Stop stops every member.
func (p *Pool) Stop() {
	for _, m := range p.members {
		m.Stop()
	}
}

func (p *Pool) pick() *Multiplexer {
	n := atomic.AddUint64(&p.next, 1)
	return p.members[n%uint64(len(p.members))]
}

func (p *Pool) Send(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (*Future, uint64, error) {
	return p.pick().Send(ctx, method, params, timeout)
}

func (p *Pool) SendSync(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	return p.pick().SendSync(ctx, method, params, timeout)
}

// Cancel tries every member, since the caller does not know which member an
// id was issued from.
func (p *Pool) Cancel(id uint64) bool {
	for _, m := range p.members {
		if m.Cancel(id) {
			return true
		}
	}
	return false
}

// State reports Ready only when every member is Ready; otherwise it reports
// the state of the last member, in member order, that is not Ready.
func (p *Pool) State() State {
	worst := Ready
	for _, m := range p.members {
		if s := m.State(); s != Ready {
			worst = s
		}
	}
	return worst
}

func (p *Pool) StatsSnapshot() any {
	snaps := make([]Stats, len(p.members))
	for i, m := range p.members {
		snaps[i] = m.StatsSnapshot().(Stats)
	}
	agg := Stats{}
	for _, s := range snaps {
		agg.CommandsSent += s.CommandsSent
		agg.CommandsCompleted += s.CommandsCompleted
		agg.CommandsFailed += s.CommandsFailed
		agg.CommandsTimeout += s.CommandsTimeout
		agg.PendingCount += s.PendingCount
		if s.MaxPending > agg.MaxPending {
			agg.MaxPending = s.MaxPending
		}
	}
	return agg
}

var _ IPC = (*Pool)(nil)

// NewAuto builds a single Multiplexer when poolSize <= 1 and a multi-socket
// Pool otherwise; internal/gateway calls this instead of choosing between
// New and NewPool itself so the platform gate lives in one place.
func NewAuto(opts Options, poolSize int) IPC {
	if poolSize > 1 {
		return NewPool(opts, poolSize)
	}
	return New(opts)
}
