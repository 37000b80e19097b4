// File: internal/listener/listener.go
package listener

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/router"
	"github.com/owlhq/owl-gateway/internal/wire"
	"github.com/owlhq/owl-gateway/internal/workerpool"
)

// Options configures a Listener's request and shutdown timeouts.
type Options struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Log             *logrus.Entry
}

// Listener owns the TCP socket and hands every accepted connection to the
// worker pool, never blocking Accept on a slow request.
type Listener struct {
	addr string
	rt   *router.Router
	pool *workerpool.Pool
	log  *logrus.Entry

	requestTimeout  time.Duration
	shutdownTimeout time.Duration

	mu   sync.Mutex
	ln   net.Listener
	ctx  context.Context
	stop context.CancelFunc

	wg sync.WaitGroup
}

// New builds a Listener bound to addr; Serve actually opens the socket.
func New(addr string, rt *router.Router, pool *workerpool.Pool, opts Options) *Listener {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		addr:            addr,
		rt:              rt,
		pool:            pool,
		log:             opts.Log.WithField("component", "listener"),
		requestTimeout:  opts.RequestTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		ctx:             ctx,
		stop:            cancel,
	}
}

// Serve opens the listening socket and runs the accept loop until Shutdown
// closes it. It returns nil on a clean shutdown.
func (l *Listener) Serve() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	l.log.WithField("addr", l.addr).Info("listener: accepting connections")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return nil
			default:
				l.log.WithError(err).Warn("listener: accept error")
				return err
			}
		}
		l.wg.Add(1)
		submitErr := l.pool.Submit(func() {
			defer l.wg.Done()
			l.handleConn(conn)
		})
		if submitErr != nil {
			l.log.WithError(submitErr).Warn("listener: worker pool saturated, dropping connection")
			l.wg.Done()
			_ = conn.Close()
		}
	}
}

// handleConn drives one TCP connection's keep-alive request loop, handing
// off to the router for either a buffered request/response or a hijacked
// upgrade (WebSocket, MJPEG stream).
func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	for {
		req, err := wire.ReadRequest(conn, br, l.requestTimeout)
		if err != nil {
			return
		}

		name := l.rt.RouteName(req)
		if name == "ws" || name == "video_stream" {
			handled, resp := l.rt.Hijack(l.ctx, conn, req)
			if resp != nil {
				_, _ = resp.WriteTo(conn)
			}
			if handled {
				return
			}
		}

		resp := l.rt.Handle(l.ctx, req)
		if _, err := resp.WriteTo(conn); err != nil {
			return
		}
		if !req.KeepAlive {
			return
		}
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish, up to the configured shutdown timeout or ctx,
// whichever is shorter.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.stop()

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	deadline, cancel := context.WithTimeout(ctx, l.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-deadline.Done():
		return errors.New("listener: shutdown timed out with connections still active")
	}
}
