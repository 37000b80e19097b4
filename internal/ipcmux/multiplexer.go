// File: internal/ipcmux/multiplexer.go
package ipcmux

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/ipcreactor"
	"github.com/owlhq/owl-gateway/internal/wire"
)

// Stats is a point-in-time snapshot of a Multiplexer's counters.
type Stats struct {
	CommandsSent      int64
	CommandsCompleted int64
	CommandsFailed    int64
	CommandsTimeout   int64
	TotalLatencyMs    int64
	PendingCount      int
	MaxPending        int
}

// Options configures a Multiplexer.
type Options struct {
	BrowserBinaryPath string
	BrowserArgs       []string
	ReadyTimeout      time.Duration
	DefaultTimeout    time.Duration
	GraceTimeout      time.Duration
	Log               *logrus.Entry
}

// Multiplexer owns a single browser child process and implements a
// send(method, params, timeout) -> Future<Result> contract. There is no
// separate synchronous IPC path: SendSync is a thin blocking wrapper over
// Send.
type Multiplexer struct {
	opts Options
	log  *logrus.Entry

	mu    sync.Mutex
	state State
	proc  *process
	lic   *LicenseError

	nextID  uint64
	pending *pendingTable

	outbox   chan []byte
	stopCh   chan struct{}
	wakeR    *os.File
	wakeW    *os.File
	reactor  ipcreactor.Reactor
	doneWG   sync.WaitGroup

	sent, completed, failed, timedOut int64
	latencySumMs                      int64
}

// New constructs an unstarted Multiplexer.
func New(opts Options) *Multiplexer {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 60 * time.Second
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = 5 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Multiplexer{
		opts:    opts,
		log:     opts.Log.WithField("component", "ipcmux"),
		state:   Stopped,
		pending: newPendingTable(),
	}
}

// State returns the current lifecycle state.
func (m *Multiplexer) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LicenseFailure returns the observed license error, if the multiplexer
// entered LicenseErrorState.
func (m *Multiplexer) LicenseFailure() *LicenseError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lic
}

// Start spawns the browser process and begins the reactor/stderr-reader
// goroutines. It blocks until READY, LICENSE_ERROR, or ReadyTimeout.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Stopped {
		m.mu.Unlock()
		return fmt.Errorf("ipcmux: start called in state %s", m.state)
	}
	m.state = Starting
	m.mu.Unlock()

	proc, err := startProcess(ctx, m.opts.BrowserBinaryPath, m.opts.BrowserArgs)
	if err != nil {
		m.mu.Lock()
		m.state = Error
		m.mu.Unlock()
		return err
	}

	wakeR, wakeW, err := os.Pipe()
	if err != nil {
		return err
	}
	reactor, err := ipcreactor.NewReactor()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.proc = proc
	m.outbox = make(chan []byte, 256)
	m.stopCh = make(chan struct{})
	m.wakeR, m.wakeW = wakeR, wakeW
	m.reactor = reactor
	m.mu.Unlock()

	_ = reactor.Register(int(wakeR.Fd()), func(ipcreactor.EventType) {})

	readyCh := make(chan struct{})
	m.doneWG.Add(3)
	go func() { defer m.doneWG.Done(); m.runStderrReader(readyCh) }()
	go func() { defer m.doneWG.Done(); m.runStdoutReader() }()
	go func() { defer m.doneWG.Done(); _ = reactor.Run(m.stopCh, m.onTick) }()

	select {
	case <-readyCh:
	case <-time.After(m.opts.ReadyTimeout):
		m.mu.Lock()
		if m.state == Starting {
			m.state = Error
		}
		m.mu.Unlock()
		return fmt.Errorf("ipcmux: browser did not become ready within %s", m.opts.ReadyTimeout)
	}

	m.mu.Lock()
	final := m.state
	m.mu.Unlock()
	if final == LicenseErrorState {
		return m.lic
	}
	return nil
}

func (m *Multiplexer) runStderrReader(readyCh chan struct{}) {
	closed := false
	m.proc.readStderrLines(func(s *wire.StderrSentinel) {
		if s.License != nil {
			m.mu.Lock()
			m.state = LicenseErrorState
			m.lic = &LicenseError{Status: s.License.Status, Message: s.License.Message, Fingerprint: s.License.Fingerprint}
			m.mu.Unlock()
			if !closed {
				closed = true
				close(readyCh)
			}
			return
		}
		if s.Ready {
			m.mu.Lock()
			if m.state == Starting {
				m.state = Ready
			}
			m.mu.Unlock()
			if !closed {
				closed = true
				close(readyCh)
			}
		}
	})
	// stderr closed: browser process has exited.
	m.onBrowserExit()
}

func (m *Multiplexer) runStdoutReader() {
	m.proc.readStdoutLines(func(line []byte) {
		reply, err := wire.DecodeReply(line)
		if err != nil {
			m.log.WithError(err).Warn("ipcmux: malformed reply line dropped")
			return
		}
		var result []byte
		var completionErr error
		if reply.Error != nil {
			completionErr = fmt.Errorf("%w: %s", ErrProtocol, reply.Error.Message)
		} else {
			result = reply.Result
		}
		if m.pending.complete(reply.ID, result, completionErr) {
			atomic.AddInt64(&m.completed, 1)
		}
	})
}

// onTick runs on the reactor thread every ipcreactor.PollInterval: it
// drains the outbound write queue to stdin in order, then runs the
// timeout sweep.
func (m *Multiplexer) onTick() {
	for {
		select {
		case b := <-m.outbox:
			if err := m.proc.write(b); err != nil {
				m.log.WithError(err).Warn("ipcmux: write to browser stdin failed")
			}
		default:
			goto sweep
		}
	}
sweep:
	n := m.pending.sweepTimeouts(time.Now())
	if n > 0 {
		atomic.AddInt64(&m.timedOut, int64(n))
	}
}

func (m *Multiplexer) onBrowserExit() {
	m.mu.Lock()
	if m.state == Stopped {
		m.mu.Unlock()
		return
	}
	if m.state != LicenseErrorState {
		m.state = Error
	}
	m.mu.Unlock()
	drained := m.pending.drain(ErrBrowserCrashed)
	if drained > 0 {
		atomic.AddInt64(&m.failed, int64(drained))
	}
}

// Send submits method/params and returns a Future that completes with the
// browser's reply, a timeout, a cancellation, or a browser-crashed error.
func (m *Multiplexer) Send(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (*Future, uint64, error) {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state == LicenseErrorState {
		return nil, 0, m.lic
	}
	if state != Ready {
		return nil, 0, ErrNotReady
	}
	if timeout <= 0 {
		timeout = m.opts.DefaultTimeout
	}

	id := atomic.AddUint64(&m.nextID, 1)
	f := m.pending.insert(id, time.Now().Add(timeout))

	cmd := &wire.IPCCommand{ID: id, Method: method, Params: params}
	encoded, err := wire.EncodeCommand(cmd)
	if err != nil {
		m.pending.complete(id, nil, err)
		return nil, id, err
	}

	select {
	case m.outbox <- encoded:
	case <-ctx.Done():
		m.pending.cancel(id)
		return f, id, ctx.Err()
	}
	atomic.AddInt64(&m.sent, 1)
	return f, id, nil
}

// SendSync blocks until Send's future completes; it is a blocking
// convenience wrapper over Send, not a second IPC path.
func (m *Multiplexer) SendSync(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	f, _, err := m.Send(ctx, method, params, timeout)
	if err != nil {
		return nil, err
	}
	select {
	case <-f.Done():
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel removes id from the pending table and fires its future with
// ErrCancelled; a later reply for the same id is silently dropped.
func (m *Multiplexer) Cancel(id uint64) bool {
	return m.pending.cancel(id)
}

// Stop closes stdin, waits up to GraceTimeout for exit, then kills the
// process.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	if m.state == Stopped {
		m.mu.Unlock()
		return
	}
	m.state = Stopped
	proc := m.proc
	m.mu.Unlock()

	close(m.stopCh)
	_ = m.wakeW.Close()
	if proc != nil {
		proc.stop(m.opts.GraceTimeout)
	}
	m.doneWG.Wait()
	_ = m.reactor.Close()
	_ = m.wakeR.Close()
	m.pending.drain(ErrBrowserCrashed)
}

// Restart stops then starts the multiplexer; all pending requests are
// drained with browser-crashed first.
func (m *Multiplexer) Restart(ctx context.Context) error {
	m.Stop()
	m.mu.Lock()
	m.state = Stopped
	m.mu.Unlock()
	return m.Start(ctx)
}

// StatsSnapshot implements internal/stats.ComponentProvider.
func (m *Multiplexer) StatsSnapshot() any {
	return Stats{
		CommandsSent:      atomic.LoadInt64(&m.sent),
		CommandsCompleted: atomic.LoadInt64(&m.completed),
		CommandsFailed:    atomic.LoadInt64(&m.failed),
		CommandsTimeout:   atomic.LoadInt64(&m.timedOut),
		PendingCount:      m.pending.len(),
		MaxPending:        m.pending.maxPending,
	}
}
