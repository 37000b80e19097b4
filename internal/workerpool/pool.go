package workerpool

import (
	"errors"
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Submit when the bounded queue is at capacity.
var ErrQueueFull = errors.New("workerpool: queue full")

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("workerpool: closed")

// Task is one unit of work executed by a worker goroutine.
type Task func()

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Pending  int64
	Active   int64
	Rejected int64
}

// Pool is a bounded FIFO queue of Tasks executed by N worker goroutines.
// Submission above Depth returns ErrQueueFull immediately; it never blocks
// the caller. Idle workers block on a sync.Cond instead of busy-polling.
type Pool struct {
	log *logrus.Entry

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	depth  int
	closed bool

	wg sync.WaitGroup

	pending  int64
	active   int64
	rejected int64
}

// New starts a Pool with n workers (when n<=0, the CPU count clamped to
// [2,64]) and a queue bounded at depth (default 1024 when depth<=0).
func New(n, depth int, log *logrus.Entry) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
		if n < 2 {
			n = 2
		}
		if n > 64 {
			n = 64
		}
	}
	if depth <= 0 {
		depth = 1024
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	p := &Pool{
		log:   log.WithField("component", "workerpool"),
		q:     queue.New(),
		depth: depth,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.runWorker()
	}
	return p
}

// Submit enqueues task. It never blocks: if the queue is at depth it
// returns ErrQueueFull immediately.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.q.Length() >= p.depth {
		p.rejected++
		p.mu.Unlock()
		return ErrQueueFull
	}
	p.q.Add(task)
	p.pending++
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.q.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.q.Length() == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		item := p.q.Peek()
		p.q.Remove()
		p.pending--
		p.active++
		p.mu.Unlock()

		p.runTask(item.(Task))

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

// runTask executes task with panic recovery so a single misbehaving task
// never brings down a worker goroutine.
func (p *Pool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("workerpool: task panicked")
		}
	}()
	task()
}

// Snapshot returns a coherent copy of the pool's counters.
func (p *Pool) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Pending: p.pending, Active: p.active, Rejected: p.rejected}
}

// Close signals shutdown, wakes every waiting worker, and joins them once
// the queue drains. It does not accept new work while draining.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}
