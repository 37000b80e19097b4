// File: internal/ipcmux/pending.go
// The pending-request table: {id, submit_time, deadline, completion}
// keyed by id, mutex-guarded, with the invariant that every entry is
// removed exactly once.
package ipcmux

import (
	"sync"
	"time"
)

type pendingEntry struct {
	submitTime time.Time
	deadline   time.Time
	future     *Future
}

type pendingTable struct {
	mu      sync.Mutex
	entries map[uint64]*pendingEntry

	maxPending int
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint64]*pendingEntry)}
}

func (t *pendingTable) insert(id uint64, deadline time.Time) *Future {
	f := newFuture()
	t.mu.Lock()
	t.entries[id] = &pendingEntry{submitTime: time.Now(), deadline: deadline, future: f}
	if n := len(t.entries); n > t.maxPending {
		t.maxPending = n
	}
	t.mu.Unlock()
	return f
}

// complete looks up id and, if present, removes and completes it exactly
// once. A miss (already removed by timeout/cancel/drain, or an unmatched
// id) returns false so the caller can count it.
func (t *pendingTable) complete(id uint64, result []byte, err error) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.future.complete(result, err)
	return true
}

// cancel removes id (if present) and completes it with ErrCancelled.
func (t *pendingTable) cancel(id uint64) bool {
	return t.complete(id, nil, ErrCancelled)
}

// sweepTimeouts removes and completes every entry whose deadline has
// passed, returning the count. Called by the reactor on its poll tick.
func (t *pendingTable) sweepTimeouts(now time.Time) int {
	t.mu.Lock()
	var expired []*pendingEntry
	for id, e := range t.entries {
		if now.After(e.deadline) {
			expired = append(expired, e)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()
	for _, e := range expired {
		e.future.complete(nil, ErrTimeout)
	}
	return len(expired)
}

// drain removes and completes every remaining entry with err. Called when
// the browser process dies, so every pending request is resolved with a
// browser-crashed error before the table is cleared.
func (t *pendingTable) drain(err error) int {
	t.mu.Lock()
	all := t.entries
	t.entries = make(map[uint64]*pendingEntry)
	t.mu.Unlock()
	for _, e := range all {
		e.future.complete(nil, err)
	}
	return len(all)
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
